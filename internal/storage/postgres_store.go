package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taply/backend/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore keeps accounts in a single table with jsonb profile and
// analytics columns. Analytics increments are single UPDATE statements.
type PostgresStore struct {
	db    *sqlx.DB
	table string
	now   func() time.Time
}

// pgRow is the scan target for one account row. The jsonb columns travel as
// text so lib/pq does not send them as bytea.
type pgRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Username     string    `db:"username"`
	Token        string    `db:"token"`
	Profile      string    `db:"profile"`
	Analytics    string    `db:"analytics"`
	Plan         string    `db:"plan"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r pgRow) account() (*models.Account, error) {
	acc := &models.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Username:     r.Username,
		Token:        r.Token,
		Plan:         r.Plan,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Analytics:    models.NewAnalytics(),
	}
	if len(r.Profile) > 0 {
		if err := json.Unmarshal([]byte(r.Profile), &acc.Profile); err != nil {
			return nil, fmt.Errorf("decode profile of %s: %w", r.ID, err)
		}
	}
	if len(r.Analytics) > 0 {
		if err := json.Unmarshal([]byte(r.Analytics), &acc.Analytics); err != nil {
			return nil, fmt.Errorf("decode analytics of %s: %w", r.ID, err)
		}
		if acc.Analytics.LinkClicks == nil {
			acc.Analytics.LinkClicks = map[string]int64{}
		}
	}
	return acc, nil
}

func pgRowFromAccount(acc *models.Account) (pgRow, error) {
	profile, err := json.Marshal(acc.Profile)
	if err != nil {
		return pgRow{}, err
	}
	analytics, err := json.Marshal(acc.Analytics)
	if err != nil {
		return pgRow{}, err
	}
	return pgRow{
		ID:           acc.ID,
		Email:        strings.ToLower(acc.Email),
		PasswordHash: acc.PasswordHash,
		Username:     strings.ToLower(acc.Username),
		Token:        acc.Token,
		Profile:      string(profile),
		Analytics:    string(analytics),
		Plan:         acc.Plan,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}, nil
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgresStoreFromDB(db, table), nil
}

// NewPostgresStoreFromDB wraps an existing connection pool.
func NewPostgresStoreFromDB(db *sqlx.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultSupabaseTable
	}
	return &PostgresStore{db: db, table: table, now: time.Now}
}

func (s *PostgresStore) quoted() string {
	return pq.QuoteIdentifier(s.table)
}

// Migrate creates the accounts table and its indexes when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	t := s.quoted()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			username      TEXT NOT NULL,
			token         TEXT NOT NULL DEFAULT '',
			profile       JSONB NOT NULL DEFAULT '{}'::jsonb,
			analytics     JSONB NOT NULL DEFAULT '{"pageViews":0,"linkClicks":{}}'::jsonb,
			plan          TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (lower(email))`, pq.QuoteIdentifier(s.table+"_email_key"), t),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (lower(username))`, pq.QuoteIdentifier(s.table+"_username_key"), t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (token)`, pq.QuoteIdentifier(s.table+"_token_idx"), t),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}

const pgColumns = `id, email, password_hash, username, token, profile, analytics, plan, created_at, updated_at`

func lookupClause(l Lookup) string {
	switch l.Field {
	case FieldEmail:
		return "lower(email) = lower($1)"
	case FieldUsername:
		return "lower(username) = lower($1)"
	case FieldToken:
		return "token = $1"
	default:
		return "id = $1"
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) FindAccount(ctx context.Context, lookup Lookup) (*models.Account, error) {
	if lookup.Value == "" {
		return nil, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s LIMIT 1`, pgColumns, s.quoted(), lookupClause(lookup))

	var row pgRow
	if err := s.db.GetContext(ctx, &row, query, lookup.Value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find account by %s: %w", lookup.Field, err)
	}
	return row.account()
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *models.Account) error {
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	row, err := pgRowFromAccount(acc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (
			:id, :email, :password_hash, :username, :token, :profile, :analytics, :plan, :created_at, :updated_at
		)`, s.quoted(), pgColumns)

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acc *models.Account) error {
	acc.UpdatedAt = s.now()

	row, err := pgRowFromAccount(acc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET
			email = :email, password_hash = :password_hash, username = :username, token = :token,
			profile = :profile, plan = :plan, updated_at = :updated_at
		WHERE id = :id`, s.quoted())

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("save account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAnalytics(ctx context.Context, username string, ev models.AnalyticsEvent) error {
	var (
		query string
		args  []interface{}
	)
	switch ev.Kind {
	case models.EventPageView:
		query = fmt.Sprintf(`
			UPDATE %s SET analytics = jsonb_set(
				coalesce(analytics, '{}'::jsonb),
				'{pageViews}',
				to_jsonb(coalesce((analytics->>'pageViews')::bigint, 0) + 1))
			WHERE lower(username) = lower($1)`, s.quoted())
		args = []interface{}{username}
	case models.EventLinkClick:
		query = fmt.Sprintf(`
			UPDATE %s SET analytics = jsonb_set(
				jsonb_set(coalesce(analytics, '{}'::jsonb), '{linkClicks}', coalesce(analytics->'linkClicks', '{}'::jsonb)),
				ARRAY['linkClicks', $2::text],
				to_jsonb(coalesce((analytics->'linkClicks'->>($2::text))::bigint, 0) + 1))
			WHERE lower(username) = lower($1)`, s.quoted())
		args = []interface{}{username, ev.LinkID}
	default:
		return ErrInvalid
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update analytics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetAnalytics(ctx context.Context, id string, patch models.AnalyticsPatch) error {
	if id == "" {
		return ErrNotFound
	}
	doc := map[string]interface{}{}
	if patch.PageViews != nil {
		doc["pageViews"] = *patch.PageViews
	}
	if patch.LinkClicks != nil {
		doc["linkClicks"] = patch.LinkClicks
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET analytics = coalesce(analytics, '{}'::jsonb) || $2::jsonb WHERE id = $1`, s.quoted())

	res, err := s.db.ExecContext(ctx, query, id, string(body))
	if err != nil {
		return fmt.Errorf("set analytics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var rows []pgRow
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at`, pgColumns, s.quoted())
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]*models.Account, 0, len(rows))
	for _, r := range rows {
		acc, err := r.account()
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

func (s *PostgresStore) Close(context.Context) error {
	return s.db.Close()
}
