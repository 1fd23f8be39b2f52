package models

import (
	"encoding/json"
	"time"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Account is the server-side record for one user. JSON names follow the
// users.json layout so existing files load unchanged.
type Account struct {
	ID           string    `json:"id" bson:"_id" db:"id"`
	Email        string    `json:"email" bson:"email" db:"email"`
	PasswordHash string    `json:"passwordHash" bson:"password_hash" db:"password_hash"`
	Username     string    `json:"username" bson:"username" db:"username"`
	Token        string    `json:"token" bson:"token" db:"token"`
	Profile      Profile   `json:"profile" bson:"-" db:"-"`
	Analytics    Analytics `json:"analytics" bson:"analytics" db:"-"`
	Plan         string    `json:"plan,omitempty" bson:"plan" db:"plan"`
	CreatedAt    time.Time `json:"createdAt,omitempty" bson:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty" bson:"updated_at" db:"updated_at"`
}

// IsPremium reports whether branding is suppressed for this account.
func (a *Account) IsPremium() bool {
	return a.Plan == PlanPremium
}

// Clone returns a deep copy, so stores can hand out records without sharing state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Analytics = a.Analytics.Clone()
	if data, err := json.Marshal(a.Profile); err == nil {
		var p Profile
		if json.Unmarshal(data, &p) == nil {
			out.Profile = p
		}
	}
	return &out
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Email          string `json:"email" validate:"required"`
	Password       string `json:"password" validate:"required,min=6"`
	Username       string `json:"username"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`
	RemoteIP       string `json:"-"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// UpdateMeRequest is the body of PUT /api/me. Profile keys overwrite the stored
// top-level keys one for one.
type UpdateMeRequest struct {
	Profile   map[string]json.RawMessage `json:"profile,omitempty"`
	Username  *string                    `json:"username,omitempty"`
	Analytics map[string]json.RawMessage `json:"analytics,omitempty"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Profile   Profile   `json:"profile"`
	Analytics Analytics `json:"analytics"`
}

// UpdateMeResponse is returned by PUT /api/me.
type UpdateMeResponse struct {
	Username string  `json:"username"`
	Profile  Profile `json:"profile"`
}
