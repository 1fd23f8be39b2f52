package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
)

const DefaultSupabaseTable = "profiles"

// accountRow is the table layout shared by the PostgREST and SQL backends.
type accountRow struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"password_hash"`
	Username     string           `json:"username"`
	Token        string           `json:"token"`
	Profile      models.Profile   `json:"profile"`
	Analytics    models.Analytics `json:"analytics"`
	Plan         string           `json:"plan"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func rowFromAccount(acc *models.Account) accountRow {
	return accountRow{
		ID:           acc.ID,
		Email:        strings.ToLower(acc.Email),
		PasswordHash: acc.PasswordHash,
		Username:     strings.ToLower(acc.Username),
		Token:        acc.Token,
		Profile:      acc.Profile,
		Analytics:    acc.Analytics,
		Plan:         acc.Plan,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}
}

// accountChanges is the PATCH body of SaveAccount. It leaves the analytics
// column alone.
type accountChanges struct {
	Email        string         `json:"email"`
	PasswordHash string         `json:"password_hash"`
	Username     string         `json:"username"`
	Token        string         `json:"token"`
	Profile      models.Profile `json:"profile"`
	Plan         string         `json:"plan"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func changesFromAccount(acc *models.Account) accountChanges {
	r := rowFromAccount(acc)
	return accountChanges{
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Username:     r.Username,
		Token:        r.Token,
		Profile:      r.Profile,
		Plan:         r.Plan,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r accountRow) account() *models.Account {
	acc := &models.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Username:     r.Username,
		Token:        r.Token,
		Profile:      r.Profile,
		Analytics:    r.Analytics,
		Plan:         r.Plan,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if acc.Analytics.LinkClicks == nil {
		acc.Analytics.LinkClicks = map[string]int64{}
	}
	return acc
}

// postgrestError is the error body PostgREST returns.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// SupabaseStore talks to a Supabase project through its PostgREST endpoint
// using the service role key.
type SupabaseStore struct {
	client *resty.Client
	table  string
	now    func() time.Time
}

// NewSupabaseStore builds a client for baseURL (the project URL, without /rest/v1).
func NewSupabaseStore(baseURL, serviceKey, table string) *SupabaseStore {
	if table == "" {
		table = DefaultSupabaseTable
	}
	cl := resty.New().SetBaseURL(strings.TrimRight(baseURL, "/") + "/rest/v1").SetTimeout(10 * time.Second)
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetHeader("apikey", serviceKey)
	cl.SetAuthToken(serviceKey)
	return &SupabaseStore{client: cl, table: table, now: time.Now}
}

// Client exposes the underlying resty client, mainly for httpmock in tests.
func (s *SupabaseStore) Client() *resty.Client {
	return s.client
}

func handlePostgrestError(resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusConflict:
		return ErrDuplicate
	case http.StatusNotFound:
		log.WithField("url", resp.Request.URL).Warn("supabase: table endpoint returned 404, check SUPABASE_TABLE")
		return ErrNotFound
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalid, errorMessage(resp))
	}
	if resp.IsError() {
		return fmt.Errorf("supabase: status %d: %s", resp.StatusCode(), errorMessage(resp))
	}
	return nil
}

func errorMessage(resp *resty.Response) string {
	var pe postgrestError
	if err := json.Unmarshal(resp.Body(), &pe); err == nil && pe.Message != "" {
		return pe.Message
	}
	return resp.Status()
}

func (s *SupabaseStore) FindAccount(ctx context.Context, lookup Lookup) (*models.Account, error) {
	if lookup.Value == "" {
		return nil, ErrNotFound
	}
	var rows []accountRow
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam(lookup.Field.String(), "eq."+lookup.Value).
		SetQueryParam("limit", "1").
		SetResult(&rows).
		Get(s.table)
	if err != nil {
		return nil, err
	}
	if err := handlePostgrestError(resp); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0].account(), nil
}

func (s *SupabaseStore) CreateAccount(ctx context.Context, acc *models.Account) error {
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(rowFromAccount(acc)).
		Post(s.table)
	if err != nil {
		return err
	}
	return handlePostgrestError(resp)
}

func (s *SupabaseStore) SaveAccount(ctx context.Context, acc *models.Account) error {
	acc.UpdatedAt = s.now()

	var updated []accountRow
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("id", "eq."+acc.ID).
		SetBody(changesFromAccount(acc)).
		SetResult(&updated).
		Patch(s.table)
	if err != nil {
		return err
	}
	if err := handlePostgrestError(resp); err != nil {
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAnalytics reads the counters, applies ev and writes them back.
// PostgREST has no atomic increment on jsonb, so concurrent events on
// different processes may overwrite each other.
func (s *SupabaseStore) UpdateAnalytics(ctx context.Context, username string, ev models.AnalyticsEvent) error {
	lookup := ByUsername(username)
	return s.rewriteAnalytics(ctx, lookup, func(a *models.Analytics) { a.Apply(ev) })
}

func (s *SupabaseStore) SetAnalytics(ctx context.Context, id string, patch models.AnalyticsPatch) error {
	return s.rewriteAnalytics(ctx, ByID(id), func(a *models.Analytics) { a.ApplyPatch(patch) })
}

func (s *SupabaseStore) rewriteAnalytics(ctx context.Context, lookup Lookup, fn func(*models.Analytics)) error {
	if lookup.Value == "" {
		return ErrNotFound
	}
	column := lookup.Field.String()

	var rows []struct {
		Analytics models.Analytics `json:"analytics"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("select", "analytics").
		SetQueryParam(column, "eq."+lookup.Value).
		SetQueryParam("limit", "1").
		SetResult(&rows).
		Get(s.table)
	if err != nil {
		return err
	}
	if err := handlePostgrestError(resp); err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}

	analytics := rows[0].Analytics
	fn(&analytics)

	resp, err = s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=minimal").
		SetQueryParam(column, "eq."+lookup.Value).
		SetBody(map[string]interface{}{"analytics": analytics}).
		Patch(s.table)
	if err != nil {
		return err
	}
	return handlePostgrestError(resp)
}

func (s *SupabaseStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var rows []accountRow
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", "created_at.asc").
		SetResult(&rows).
		Get(s.table)
	if err != nil {
		return nil, err
	}
	if err := handlePostgrestError(resp); err != nil {
		return nil, err
	}
	out := make([]*models.Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.account())
	}
	log.WithField("count", len(out)).Debug("supabase: listed accounts")
	return out, nil
}

func (s *SupabaseStore) Close(context.Context) error { return nil }
