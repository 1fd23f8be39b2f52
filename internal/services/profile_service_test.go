package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/storage"
)

// failingStore wraps a real store and fails the selected operations.
type failingStore struct {
	storage.AccountStore
	failFind      bool
	failAnalytics bool
}

var errBoom = errors.New("boom")

func (f *failingStore) FindAccount(ctx context.Context, l storage.Lookup) (*models.Account, error) {
	if f.failFind {
		return nil, errBoom
	}
	return f.AccountStore.FindAccount(ctx, l)
}

func (f *failingStore) UpdateAnalytics(ctx context.Context, username string, ev models.AnalyticsEvent) error {
	if f.failAnalytics {
		return errBoom
	}
	return f.AccountStore.UpdateAnalytics(ctx, username, ev)
}

func TestProfileService_Public(t *testing.T) {
	store := newTestStore(t)
	accounts := newTestAccountService(t, store)
	ctx := context.Background()
	reg := register(t, accounts, "a@x.com", "secret1", "A User")
	acc, err := accounts.Authenticate(ctx, reg.Token)
	require.NoError(t, err)

	_, err = accounts.UpdateMe(ctx, acc, models.UpdateMeRequest{Profile: map[string]json.RawMessage{
		"platforms":  json.RawMessage(`["instagram"]`),
		"socialUrls": json.RawMessage(`{"instagram":"https://ig"}`),
	}})
	require.NoError(t, err)

	svc := NewProfileService(store)
	pub, err := svc.Public(ctx, "A-USER")
	require.NoError(t, err)
	assert.Equal(t, "a-user", pub.Username)
	assert.Equal(t, "a-user", pub.DisplayName)
	assert.True(t, pub.Branding)
	assert.Equal(t, []models.SocialLink{{Platform: "instagram", URL: "https://ig"}}, pub.SocialLinks)
}

func TestProfileService_PremiumHidesBranding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, &models.Account{
		ID: "p", Email: "p@x.com", Username: "pro", Plan: models.PlanPremium, Profile: models.DefaultProfile(),
	}))

	pub, err := NewProfileService(store).Public(ctx, "pro")
	require.NoError(t, err)
	assert.False(t, pub.Branding)
}

func TestProfileService_NotFound(t *testing.T) {
	svc := NewProfileService(newTestStore(t))

	_, err := svc.Public(context.Background(), "ghost")
	assertKind(t, err, ErrNotFound, MsgProfileNotFound)

	_, err = svc.Public(context.Background(), "  ")
	assertKind(t, err, ErrNotFound, MsgProfileNotFound)
}

func TestProfileService_BackendFailureReadsAsNotFound(t *testing.T) {
	svc := NewProfileService(&failingStore{AccountStore: newTestStore(t), failFind: true})

	_, err := svc.Public(context.Background(), "anyone")
	assertKind(t, err, ErrNotFound, MsgProfileNotFound)
	assert.ErrorIs(t, err, errBoom)
}

func TestProfileService_ShortLink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := models.DefaultProfile()
	p.ShortLinks = map[string]string{"cv": "https://example.com/cv", "bad": "ftp://x"}
	require.NoError(t, store.CreateAccount(ctx, &models.Account{ID: "1", Email: "a@x.com", Username: "alex", Profile: p}))

	svc := NewProfileService(store)

	target, ok := svc.ShortLink(ctx, "Alex", "CV")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/cv", target)

	_, ok = svc.ShortLink(ctx, "alex", "bad")
	assert.False(t, ok)
	_, ok = svc.ShortLink(ctx, "alex", "missing")
	assert.False(t, ok)
	_, ok = svc.ShortLink(ctx, "ghost", "cv")
	assert.False(t, ok)
	_, ok = svc.ShortLink(ctx, "alex", "%%%")
	assert.False(t, ok)
}
