package services

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/profile"
	"github.com/taply/backend/internal/storage"
)

// ProfileService serves the anonymous, read-only profile endpoints.
type ProfileService struct {
	store storage.AccountStore
}

func NewProfileService(store storage.AccountStore) *ProfileService {
	return &ProfileService{store: store}
}

// Public returns the public document for username. Backend failures are
// reported as not found so anonymous readers never see internal errors.
func (s *ProfileService) Public(ctx context.Context, username string) (*models.PublicProfile, error) {
	acc, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	pub := profile.Public(acc)
	return &pub, nil
}

// ShortLink resolves /go/{username}/{slug}. ok is false when the account or
// the slug is unknown, or when the target is not an http(s) URL.
func (s *ProfileService) ShortLink(ctx context.Context, username, slug string) (string, bool) {
	slug = profile.SlugifyOrEmpty(slug)
	if slug == "" {
		return "", false
	}
	acc, err := s.find(ctx, username)
	if err != nil {
		return "", false
	}
	return profile.ShortLinkTarget(acc.Profile, slug)
}

func (s *ProfileService) find(ctx context.Context, username string) (*models.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, notFoundError(MsgProfileNotFound)
	}
	acc, err := s.store.FindAccount(ctx, storage.ByUsername(username))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).WithField("username", username).Warn("profile lookup failed")
		}
		return nil, newError(ErrNotFound, MsgProfileNotFound, err)
	}
	return acc, nil
}
