package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taply/backend/internal/models"
)

type recordingSaver struct {
	mu    sync.Mutex
	saves []models.Profile
	names []string
	err   error
}

func (r *recordingSaver) SaveProfile(_ context.Context, p models.Profile, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, p)
	r.names = append(r.names, username)
	return r.err
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingSaver) last() (models.Profile, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1], r.names[len(r.names)-1]
}

func newTestSession(saver Saver) *Session {
	return NewSession(models.DefaultProfile(), "alex", saver, SessionConfig{SaveDelay: time.Hour})
}

func TestSession_MutationsCoalesceIntoOneSave(t *testing.T) {
	saver := &recordingSaver{}
	s := newTestSession(saver)

	require.NoError(t, s.SetTheme("sunset"))
	require.NoError(t, s.SetDisplayName("  Alex  "))
	require.NoError(t, s.SetBio("hello"))
	assert.Zero(t, saver.count())

	s.Flush()
	require.Equal(t, 1, saver.count())
	p, name := saver.last()
	assert.Equal(t, "sunset", p.Theme)
	assert.Equal(t, "Alex", p.DisplayName)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, "alex", name)
	assert.EqualValues(t, 3, s.Revision())
}

func TestSession_DebouncedSaveFires(t *testing.T) {
	saver := &recordingSaver{}
	s := NewSession(models.DefaultProfile(), "alex", saver, SessionConfig{SaveDelay: 20 * time.Millisecond})
	defer s.Close()

	require.NoError(t, s.SetBio("a"))
	require.NoError(t, s.SetBio("ab"))
	assert.Eventually(t, func() bool { return saver.count() == 1 }, time.Second, 5*time.Millisecond)
	p, _ := saver.last()
	assert.Equal(t, "ab", p.Bio)
}

func TestSession_RejectedMutationChangesNothing(t *testing.T) {
	s := newTestSession(&recordingSaver{})

	assert.ErrorIs(t, s.SetTheme("neon"), ErrUnknownTheme)
	assert.ErrorIs(t, s.DeleteLink("missing"), ErrLinkNotFound)
	assert.ErrorIs(t, s.ZoomBy(1), ErrNoBackground)
	_, err := s.AddLink(LinkInput{Title: " ", URL: "https://x"})
	assert.ErrorIs(t, err, ErrInvalidLink)
	_, err = s.AddImageLink("", "https://x", false)
	assert.ErrorIs(t, err, ErrInvalidImageLink)

	assert.Equal(t, models.DefaultTheme, s.Profile().Theme)
	assert.Zero(t, s.Revision())
}

func TestSession_Links(t *testing.T) {
	s := newTestSession(&recordingSaver{})

	id, err := s.AddLink(LinkInput{Title: "Blog", URL: "https://blog.example", Icon: "rss"})
	require.NoError(t, err)
	imgID, err := s.AddImageLink("https://img.example/a.png", "https://shop.example", true)
	require.NoError(t, err)
	assert.NotEqual(t, id, imgID)

	links := s.Profile().Links
	require.Len(t, links, 2)
	assert.Equal(t, models.LinkTypeLink, links[0].Type)
	assert.Equal(t, models.LinkTypeImage, links[1].Type)
	assert.Equal(t, imageLinkTitle, links[1].Title)
	assert.True(t, links[1].Highlight)

	require.NoError(t, s.ToggleHighlight(id))
	require.NoError(t, s.SetLinkURL(id, "https://blog2.example"))
	require.NoError(t, s.SetLinkURL(id, "   "))
	require.NoError(t, s.UpdateLink(imgID, LinkInput{Title: "Shop", URL: "https://shop.example/new"}))

	links = s.Profile().Links
	assert.True(t, links[0].Highlight)
	assert.Equal(t, "https://blog2.example", links[0].URL)
	assert.Equal(t, "Shop", links[1].Title)
	assert.Equal(t, models.LinkTypeLink, links[1].Type)
	assert.Empty(t, links[1].ImageURL)

	require.NoError(t, s.DeleteLink(id))
	links = s.Profile().Links
	require.Len(t, links, 1)
	assert.Equal(t, imgID, links[0].ID)
}

func TestSession_SocialLinks(t *testing.T) {
	s := newTestSession(&recordingSaver{})

	for i := 0; i < models.MaxSocialLinks; i++ {
		require.NoError(t, s.AddSocialLink("instagram"))
	}
	assert.ErrorIs(t, s.AddSocialLink("tiktok"), ErrTooManySocial)

	require.NoError(t, s.SetSocialURL(0, " https://instagram.com/alex "))
	assert.ErrorIs(t, s.SetSocialURL(99, "x"), ErrSocialIndex)
	require.NoError(t, s.RemoveSocialLink(1))

	social := s.Profile().SocialLinks
	assert.Len(t, social, models.MaxSocialLinks-1)
	assert.Equal(t, "https://instagram.com/alex", social[0].URL)
	assert.ErrorIs(t, s.RemoveSocialLink(-1), ErrSocialIndex)
}

func TestSession_Background(t *testing.T) {
	s := newTestSession(&recordingSaver{})

	require.NoError(t, s.SetBackgroundImage("data:image/png;base64,AAAA"))
	require.NoError(t, s.ZoomBy(2))
	assert.Equal(t, 120, *s.Profile().CustomBackgroundZoom)
	require.NoError(t, s.ZoomBy(10))
	assert.Equal(t, models.MaxBackgroundZoom, *s.Profile().CustomBackgroundZoom)
	require.NoError(t, s.ZoomBy(-20))
	assert.Equal(t, models.MinBackgroundZoom, *s.Profile().CustomBackgroundZoom)

	require.NoError(t, s.SetBackgroundPosition(12.4, 140))
	assert.Equal(t, "12% 100%", s.Profile().CustomBackgroundPosition)

	require.NoError(t, s.ClearBackground())
	p := s.Profile()
	assert.Nil(t, p.CustomBackgroundImage)
	assert.Equal(t, models.DefaultBackgroundPosition, p.CustomBackgroundPosition)
	assert.Equal(t, models.DefaultBackgroundZoom, *p.CustomBackgroundZoom)
}

func TestSession_Username(t *testing.T) {
	saver := &recordingSaver{}
	s := newTestSession(saver)

	assert.ErrorIs(t, s.SetUsername("!!!"), ErrInvalidUsername)
	assert.Zero(t, s.Revision())
	assert.False(t, s.debounce.Pending(), "a rejected username schedules no save")
	assert.Equal(t, "alex", s.Username())

	require.NoError(t, s.SetUsername("Alex Smith"))
	assert.Equal(t, uint64(1), s.Revision())
	assert.True(t, s.debounce.Pending())
	assert.Equal(t, "alex-smith", s.Username())
	assert.Equal(t, "alex-smith", s.Profile().Username)

	s.Flush()
	_, name := saver.last()
	assert.Equal(t, "alex-smith", name)
}

func TestSession_UsernameAndProfileChangesShareOneSave(t *testing.T) {
	saver := &recordingSaver{}
	s := newTestSession(saver)

	require.NoError(t, s.SetUsername("Sam"))
	require.NoError(t, s.SetBio("hi"))
	assert.Equal(t, uint64(2), s.Revision())

	s.Flush()
	require.Equal(t, 1, saver.count())
	p, name := saver.last()
	assert.Equal(t, "sam", name)
	assert.Equal(t, "sam", p.Username)
	assert.Equal(t, "hi", p.Bio)
}

// gatedSaver holds every save until release is closed.
type gatedSaver struct {
	recordingSaver
	entered chan string
	release chan struct{}
}

func (g *gatedSaver) SaveProfile(ctx context.Context, p models.Profile, username string) error {
	g.entered <- p.Bio
	<-g.release
	return g.recordingSaver.SaveProfile(ctx, p, username)
}

func TestSession_SavesDoNotOverlap(t *testing.T) {
	saver := &gatedSaver{entered: make(chan string, 2), release: make(chan struct{})}
	s := newTestSession(saver)

	require.NoError(t, s.SetBio("old"))
	first := make(chan struct{})
	go func() {
		s.Flush()
		close(first)
	}()
	select {
	case bio := <-saver.entered:
		require.Equal(t, "old", bio)
	case <-time.After(time.Second):
		t.Fatal("first save never started")
	}

	require.NoError(t, s.SetBio("new"))
	second := make(chan struct{})
	go func() {
		s.Flush()
		close(second)
	}()
	select {
	case bio := <-saver.entered:
		t.Fatalf("save of %q started while another was in flight", bio)
	case <-time.After(50 * time.Millisecond):
	}

	close(saver.release)
	<-first
	<-second

	require.Equal(t, 2, saver.count())
	p, _ := saver.last()
	assert.Equal(t, "new", p.Bio)
}

func TestSession_SaveErrorsGoToCallback(t *testing.T) {
	saver := &recordingSaver{err: errors.New("offline")}
	var got error
	s := NewSession(models.DefaultProfile(), "alex", saver, SessionConfig{
		SaveDelay: time.Hour,
		OnError:   func(err error) { got = err },
	})

	require.NoError(t, s.SetBio("x"))
	assert.NotPanics(t, s.Flush)
	assert.EqualError(t, got, "offline")
}

func TestSession_ProfileIsACopy(t *testing.T) {
	s := newTestSession(&recordingSaver{})
	_, err := s.AddLink(LinkInput{Title: "A", URL: "https://a"})
	require.NoError(t, err)

	p := s.Profile()
	p.Links[0].Title = "mutated"
	assert.Equal(t, "A", s.Profile().Links[0].Title)
}
