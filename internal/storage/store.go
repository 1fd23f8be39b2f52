// Package storage persists account records. Every backend implements
// AccountStore and exactly one is opened per process.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/taply/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("account not found")
	ErrDuplicate = errors.New("email or username already exists")
	ErrInvalid   = errors.New("invalid input")
)

// AccountStore is the persistence capability shared by the file and hosted backends.
type AccountStore interface {
	// FindAccount returns ErrNotFound when nothing matches.
	FindAccount(ctx context.Context, lookup Lookup) (*models.Account, error)
	// CreateAccount returns ErrDuplicate when the email or username is taken.
	CreateAccount(ctx context.Context, acc *models.Account) error
	// SaveAccount overwrites the record with the same id. The stored analytics
	// are kept; counters only change through UpdateAnalytics and SetAnalytics.
	SaveAccount(ctx context.Context, acc *models.Account) error
	// UpdateAnalytics applies one view or click to the account with the given username.
	UpdateAnalytics(ctx context.Context, username string, ev models.AnalyticsEvent) error
	// SetAnalytics replaces the counters named in patch on the account with the given id.
	SetAnalytics(ctx context.Context, id string, patch models.AnalyticsPatch) error
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	Close(ctx context.Context) error
}

// LookupField names the column an account is looked up by.
type LookupField int

const (
	FieldID LookupField = iota
	FieldEmail
	FieldUsername
	FieldToken
)

func (f LookupField) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldEmail:
		return "email"
	case FieldUsername:
		return "username"
	case FieldToken:
		return "token"
	}
	return "unknown"
}

// Lookup addresses a single account. Email and username match case-insensitively.
type Lookup struct {
	Field LookupField
	Value string
}

func ByID(id string) Lookup             { return Lookup{Field: FieldID, Value: id} }
func ByEmail(email string) Lookup       { return Lookup{Field: FieldEmail, Value: strings.ToLower(strings.TrimSpace(email))} }
func ByUsername(username string) Lookup { return Lookup{Field: FieldUsername, Value: strings.ToLower(strings.TrimSpace(username))} }
func ByToken(token string) Lookup       { return Lookup{Field: FieldToken, Value: token} }

// Matches reports whether acc satisfies the lookup.
func (l Lookup) Matches(acc *models.Account) bool {
	if l.Value == "" {
		return false
	}
	switch l.Field {
	case FieldID:
		return acc.ID == l.Value
	case FieldEmail:
		return strings.EqualFold(acc.Email, l.Value)
	case FieldUsername:
		return strings.EqualFold(acc.Username, l.Value)
	case FieldToken:
		return acc.Token == l.Value
	}
	return false
}

// conflicts reports whether a and b would violate email or username uniqueness.
func conflicts(a, b *models.Account) bool {
	return strings.EqualFold(a.Email, b.Email) || strings.EqualFold(a.Username, b.Username)
}
