package editor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/profile"
)

const (
	DefaultSaveDelay   = 600 * time.Millisecond
	DefaultSaveTimeout = 15 * time.Second
	ZoomStep           = 10
	imageLinkTitle     = "Image"
)

var (
	ErrUnknownTheme     = errors.New("unknown theme")
	ErrLinkNotFound     = errors.New("link not found")
	ErrInvalidLink      = errors.New("title and URL are required")
	ErrInvalidImageLink = errors.New("image URL and link are required")
	ErrTooManySocial    = errors.New("too many social links")
	ErrSocialIndex      = errors.New("social link index out of range")
	ErrInvalidUsername  = errors.New("username is empty after normalisation")
	ErrNoBackground     = errors.New("no custom background set")
)

// Saver persists a profile document and the account username.
type Saver interface {
	SaveProfile(ctx context.Context, p models.Profile, username string) error
}

// LinkInput is what the link form submits.
type LinkInput struct {
	Title     string `validate:"required"`
	URL       string `validate:"required"`
	Highlight bool
	Icon      string
}

type imageLinkInput struct {
	ImageURL string `validate:"required"`
	URL      string `validate:"required"`
}

type SessionConfig struct {
	// SaveDelay is the quiet period before a save. Zero means DefaultSaveDelay.
	SaveDelay time.Duration
	// SaveTimeout bounds one save call. Zero means DefaultSaveTimeout.
	SaveTimeout time.Duration
	// OnError receives failed saves. Nil logs them.
	OnError func(error)
}

// Session holds the profile being edited. Every mutation goes through commit,
// which updates the in-memory document and schedules a debounced save.
type Session struct {
	mu       sync.Mutex
	profile  models.Profile
	username string
	revision uint64

	// saveMu keeps one save in flight at a time, so the snapshot taken last
	// is also written last.
	saveMu sync.Mutex

	saver    Saver
	debounce *Debouncer
	timeout  time.Duration
	onError  func(error)
	validate *validator.Validate
}

func NewSession(p models.Profile, username string, saver Saver, cfg SessionConfig) *Session {
	if cfg.SaveDelay <= 0 {
		cfg.SaveDelay = DefaultSaveDelay
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultSaveTimeout
	}
	if cfg.OnError == nil {
		cfg.OnError = func(err error) {
			log.WithError(err).Warn("profile save failed")
		}
	}
	p = profile.Normalize(p)
	p.Username = username
	return &Session{
		profile:  p,
		username: username,
		saver:    saver,
		debounce: NewDebouncer(cfg.SaveDelay),
		timeout:  cfg.SaveTimeout,
		onError:  cfg.OnError,
		validate: validator.New(),
	}
}

// Profile returns a copy of the current document.
func (s *Session) Profile() models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProfile(s.profile)
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Revision counts successful mutations.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Flush saves any pending change now.
func (s *Session) Flush() {
	s.debounce.Flush()
}

// Close drops any pending save.
func (s *Session) Close() {
	s.debounce.Stop()
}

func (s *Session) SetTheme(theme string) error {
	return s.commit(func(p *models.Profile) error {
		if !models.IsTheme(theme) {
			return ErrUnknownTheme
		}
		p.Theme = theme
		return nil
	})
}

// AddLink appends a regular link and returns its id.
func (s *Session) AddLink(in LinkInput) (string, error) {
	in.Title, in.URL = strings.TrimSpace(in.Title), strings.TrimSpace(in.URL)
	if err := s.validate.Struct(in); err != nil {
		return "", ErrInvalidLink
	}
	id := newLinkID()
	err := s.commit(func(p *models.Profile) error {
		p.Links = append(p.Links, models.Link{
			ID:        id,
			Title:     in.Title,
			URL:       in.URL,
			Highlight: in.Highlight,
			Icon:      in.Icon,
			Type:      models.LinkTypeLink,
		})
		return nil
	})
	return id, err
}

// AddImageLink appends a link rendered as an image and returns its id.
func (s *Session) AddImageLink(imageURL, url string, highlight bool) (string, error) {
	in := imageLinkInput{ImageURL: strings.TrimSpace(imageURL), URL: strings.TrimSpace(url)}
	if err := s.validate.Struct(in); err != nil {
		return "", ErrInvalidImageLink
	}
	id := newLinkID()
	err := s.commit(func(p *models.Profile) error {
		p.Links = append(p.Links, models.Link{
			ID:        id,
			Title:     imageLinkTitle,
			URL:       in.URL,
			Highlight: highlight,
			Type:      models.LinkTypeImage,
			ImageURL:  in.ImageURL,
		})
		return nil
	})
	return id, err
}

// UpdateLink rewrites a regular link. An image link becomes a regular one.
func (s *Session) UpdateLink(id string, in LinkInput) error {
	in.Title, in.URL = strings.TrimSpace(in.Title), strings.TrimSpace(in.URL)
	if err := s.validate.Struct(in); err != nil {
		return ErrInvalidLink
	}
	return s.commit(func(p *models.Profile) error {
		l := findLink(p, id)
		if l == nil {
			return ErrLinkNotFound
		}
		l.Title = in.Title
		l.URL = in.URL
		l.Highlight = in.Highlight
		l.Icon = in.Icon
		l.Type = models.LinkTypeLink
		l.ImageURL = ""
		return nil
	})
}

// SetLinkURL changes only the target of a link. Blank URLs are ignored.
func (s *Session) SetLinkURL(id, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	return s.commit(func(p *models.Profile) error {
		l := findLink(p, id)
		if l == nil {
			return ErrLinkNotFound
		}
		l.URL = url
		return nil
	})
}

func (s *Session) ToggleHighlight(id string) error {
	return s.commit(func(p *models.Profile) error {
		l := findLink(p, id)
		if l == nil {
			return ErrLinkNotFound
		}
		l.Highlight = !l.Highlight
		return nil
	})
}

func (s *Session) DeleteLink(id string) error {
	return s.commit(func(p *models.Profile) error {
		for i := range p.Links {
			if p.Links[i].ID == id {
				p.Links = append(p.Links[:i], p.Links[i+1:]...)
				return nil
			}
		}
		return ErrLinkNotFound
	})
}

// AddSocialLink appends an empty entry for platform.
func (s *Session) AddSocialLink(platform string) error {
	platform = strings.TrimSpace(platform)
	return s.commit(func(p *models.Profile) error {
		if len(p.SocialLinks) >= models.MaxSocialLinks {
			return ErrTooManySocial
		}
		p.SocialLinks = append(p.SocialLinks, models.SocialLink{Platform: platform})
		return nil
	})
}

func (s *Session) SetSocialURL(index int, url string) error {
	return s.commit(func(p *models.Profile) error {
		if index < 0 || index >= len(p.SocialLinks) {
			return ErrSocialIndex
		}
		p.SocialLinks[index].URL = strings.TrimSpace(url)
		return nil
	})
}

func (s *Session) RemoveSocialLink(index int) error {
	return s.commit(func(p *models.Profile) error {
		if index < 0 || index >= len(p.SocialLinks) {
			return ErrSocialIndex
		}
		p.SocialLinks = append(p.SocialLinks[:index], p.SocialLinks[index+1:]...)
		return nil
	})
}

// SetBackgroundImage sets the custom background. An empty value clears it.
func (s *Session) SetBackgroundImage(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return s.ClearBackground()
	}
	return s.commit(func(p *models.Profile) error {
		p.CustomBackgroundImage = &src
		return nil
	})
}

// ClearBackground removes the custom background and resets its framing.
func (s *Session) ClearBackground() error {
	return s.commit(func(p *models.Profile) error {
		zoom := models.DefaultBackgroundZoom
		p.CustomBackgroundImage = nil
		p.CustomBackgroundPosition = models.DefaultBackgroundPosition
		p.CustomBackgroundZoom = &zoom
		return nil
	})
}

// SetBackgroundPosition stores the focal point as percentages, clamped to [0,100].
func (s *Session) SetBackgroundPosition(x, y float64) error {
	return s.commit(func(p *models.Profile) error {
		p.CustomBackgroundPosition = profile.FormatPosition(x, y)
		return nil
	})
}

// ZoomBy changes the background zoom by steps of ZoomStep, within the allowed range.
func (s *Session) ZoomBy(steps int) error {
	return s.commit(func(p *models.Profile) error {
		if p.CustomBackgroundImage == nil || *p.CustomBackgroundImage == "" {
			return ErrNoBackground
		}
		zoom := models.DefaultBackgroundZoom
		if p.CustomBackgroundZoom != nil {
			zoom = *p.CustomBackgroundZoom
		}
		zoom = profile.ClampZoom(zoom + steps*ZoomStep)
		p.CustomBackgroundZoom = &zoom
		return nil
	})
}

func (s *Session) SetDisplayName(name string) error {
	return s.commit(func(p *models.Profile) error {
		p.DisplayName = strings.TrimSpace(name)
		return nil
	})
}

func (s *Session) SetBio(bio string) error {
	return s.commit(func(p *models.Profile) error {
		p.Bio = bio
		return nil
	})
}

func (s *Session) SetAvatar(src string) error {
	src = strings.TrimSpace(src)
	return s.commit(func(p *models.Profile) error {
		if src == "" {
			p.Avatar = nil
		} else {
			p.Avatar = &src
		}
		return nil
	})
}

// SetUsername slugs name and uses it as the new public username.
func (s *Session) SetUsername(name string) error {
	return s.commitAccount(func(p *models.Profile, username *string) error {
		slug := profile.SlugifyOrEmpty(name)
		if slug == "" {
			return ErrInvalidUsername
		}
		*username = slug
		p.Username = slug
		return nil
	})
}

// commit applies mutate to a copy of the document and keeps it only when
// mutate succeeds.
func (s *Session) commit(mutate func(p *models.Profile) error) error {
	return s.commitAccount(func(p *models.Profile, _ *string) error {
		return mutate(p)
	})
}

// commitAccount is commit for mutations that may also change the username.
func (s *Session) commitAccount(mutate func(p *models.Profile, username *string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cloneProfile(s.profile)
	username := s.username
	if err := mutate(&next, &username); err != nil {
		return err
	}
	s.profile = next
	s.username = username
	s.changed()
	return nil
}

// changed must be called with mu held.
func (s *Session) changed() {
	s.revision++
	s.debounce.Trigger(s.save)
}

func (s *Session) save() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	p := cloneProfile(s.profile)
	username := s.username
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.saver.SaveProfile(ctx, p, username); err != nil {
		s.onError(err)
	}
}

func findLink(p *models.Profile, id string) *models.Link {
	for i := range p.Links {
		if p.Links[i].ID == id {
			return &p.Links[i]
		}
	}
	return nil
}

func newLinkID() string {
	return "id_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func cloneProfile(p models.Profile) models.Profile {
	data, err := json.Marshal(p)
	if err != nil {
		return p
	}
	var out models.Profile
	if err := json.Unmarshal(data, &out); err != nil {
		return p
	}
	return out
}
