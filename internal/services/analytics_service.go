package services

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/metrics"
	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/storage"
)

const MsgLinkIDRequired = "linkId is required."

// AnalyticsService counts public page views and link clicks.
type AnalyticsService struct {
	store storage.AccountStore
}

func NewAnalyticsService(store storage.AccountStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

func (s *AnalyticsService) RecordView(ctx context.Context, username string) error {
	if err := s.record(ctx, username, models.PageView()); err != nil {
		return err
	}
	metrics.ProfileViewsTotal.Inc()
	return nil
}

func (s *AnalyticsService) RecordClick(ctx context.Context, username, linkID string) error {
	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return validationError(MsgLinkIDRequired)
	}
	if err := s.record(ctx, username, models.LinkClick(linkID)); err != nil {
		return err
	}
	metrics.LinkClicksTotal.Inc()
	return nil
}

// record returns a NotFoundError for unknown usernames. Other backend
// failures are logged and dropped; a lost count never fails the caller.
func (s *AnalyticsService) record(ctx context.Context, username string, ev models.AnalyticsEvent) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return notFoundError(MsgProfileNotFound)
	}

	err := s.store.UpdateAnalytics(ctx, username, ev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFoundError(MsgProfileNotFound)
	case errors.Is(err, storage.ErrInvalid):
		return validationError("Invalid linkId.")
	default:
		log.WithError(err).WithFields(log.Fields{"username": username, "kind": ev.Kind, "link_id": ev.LinkID}).Warn("analytics update dropped")
		return nil
	}
}
