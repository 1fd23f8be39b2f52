package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/metrics"
	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/profile"
	"github.com/taply/backend/internal/storage"
)

// legacyTokenPattern matches the opaque random tokens issued before signed tokens.
var legacyTokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// AccountService owns registration, login and the authenticated profile endpoints.
type AccountService struct {
	store    storage.AccountStore
	hasher   *PasswordHasher
	tokens   *TokenIssuer
	captcha  CaptchaVerifier
	validate *validator.Validate
	locks    *keyedMutex
}

// NewAccountService wires the service. captcha may be nil to skip verification.
func NewAccountService(store storage.AccountStore, hasher *PasswordHasher, tokens *TokenIssuer, captcha CaptchaVerifier) *AccountService {
	return &AccountService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		captcha:  captcha,
		validate: validator.New(),
		locks:    newKeyedMutex(),
	}
}

func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validateCredentials(req); err != nil {
		return nil, err
	}

	if s.captcha != nil {
		ok, reason, err := s.captcha.VerifyV2(ctx, req.RecaptchaToken, req.RemoteIP)
		if err != nil {
			return nil, backendError(err)
		}
		if !ok {
			log.WithField("reason", reason).Info("registration captcha rejected")
			return nil, validationError(MsgCaptchaFailed)
		}
	}

	source := req.Username
	if source == "" {
		source = strings.SplitN(req.Email, "@", 2)[0]
	}
	username := profile.Slugify(source)

	if err := s.ensureFree(ctx, storage.ByEmail(req.Email), "", MsgEmailTaken); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, storage.ByUsername(username), "", MsgUsernameTaken); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, backendError(err)
	}
	acc := &models.Account{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Username:     username,
		Profile:      models.DefaultProfile(),
		Analytics:    models.NewAnalytics(),
		Plan:         models.PlanFree,
	}
	if acc.Token, err = s.tokens.Issue(acc.ID); err != nil {
		return nil, backendError(err)
	}

	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// Lost a race with a concurrent registration.
			return nil, s.duplicateMessage(ctx, acc)
		}
		return nil, backendError(err)
	}

	metrics.RegistrationsTotal.Inc()
	log.WithFields(log.Fields{"account_id": acc.ID, "username": acc.Username}).Info("account registered")
	return &models.AuthResponse{Token: acc.Token, Username: acc.Username}, nil
}

func (s *AccountService) validateCredentials(req models.RegisterRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(MsgCredentialsRequired)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return validationError(MsgCredentialsRequired)
		}
	}
	return validationError(MsgPasswordTooShort)
}

// ensureFree fails with a ConflictError when lookup matches an account other than selfID.
func (s *AccountService) ensureFree(ctx context.Context, lookup storage.Lookup, selfID, message string) error {
	existing, err := s.store.FindAccount(ctx, lookup)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return backendError(err)
	case existing.ID == selfID:
		return nil
	default:
		return conflictError(message)
	}
}

func (s *AccountService) duplicateMessage(ctx context.Context, acc *models.Account) error {
	if existing, err := s.store.FindAccount(ctx, storage.ByEmail(acc.Email)); err == nil && existing.ID != acc.ID {
		return conflictError(MsgEmailTaken)
	}
	return conflictError(MsgUsernameTaken)
}

// Login verifies the credentials and rotates the account token. Any token
// issued before stops working.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(MsgCredentialsRequired)
	}

	acc, err := s.store.FindAccount(ctx, storage.ByEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, authError(MsgInvalidLogin)
		}
		return nil, backendError(err)
	}

	unlock := s.locks.Lock(acc.ID)
	defer unlock()

	// Re-read under the lock so a concurrent profile write is not undone.
	if acc, err = s.store.FindAccount(ctx, storage.ByID(acc.ID)); err != nil {
		return nil, backendError(err)
	}

	ok, upgrade := s.hasher.Verify(req.Password, acc.PasswordHash)
	if !ok {
		return nil, authError(MsgInvalidLogin)
	}
	if upgrade {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			acc.PasswordHash = hash
		}
	}

	if acc.Token, err = s.tokens.Issue(acc.ID); err != nil {
		return nil, backendError(err)
	}
	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return nil, backendError(err)
	}

	log.WithFields(log.Fields{"account_id": acc.ID, "rehashed": upgrade}).Info("login")
	return &models.AuthResponse{Token: acc.Token, Username: acc.Username}, nil
}

// Authenticate resolves a bearer token to its account. Only the token stored
// by the latest login is accepted.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, authError(MsgUnauthorized)
	}

	lookup := storage.ByToken(token)
	if id, err := s.tokens.Parse(token); err == nil {
		lookup = storage.ByID(id)
	} else if !legacyTokenPattern.MatchString(token) {
		return nil, authError(MsgUnauthorized)
	}

	acc, err := s.store.FindAccount(ctx, lookup)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, authError(MsgUnauthorized)
		}
		return nil, backendError(err)
	}
	if acc.Token == "" || acc.Token != token {
		return nil, authError(MsgUnauthorized)
	}
	return acc, nil
}

// Me returns the private view of acc.
func (s *AccountService) Me(acc *models.Account) *models.MeResponse {
	analytics := acc.Analytics.Clone()
	return &models.MeResponse{
		ID:        acc.ID,
		Email:     acc.Email,
		Username:  acc.Username,
		Profile:   acc.Profile,
		Analytics: analytics,
	}
}

// UpdateMe applies a partial update. Profile keys overwrite stored keys one
// for one; a username in the body or in the profile is re-slugged, and an
// empty slug keeps the current username.
func (s *AccountService) UpdateMe(ctx context.Context, acc *models.Account, req models.UpdateMeRequest) (*models.UpdateMeResponse, error) {
	unlock := s.locks.Lock(acc.ID)
	defer unlock()

	current, err := s.store.FindAccount(ctx, storage.ByID(acc.ID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, authError(MsgUnauthorized)
		}
		return nil, backendError(err)
	}

	username := current.Username
	if req.Profile != nil {
		if err := current.Profile.Merge(req.Profile); err != nil {
			return nil, validationError("Invalid profile.")
		}
		if raw, ok := req.Profile["username"]; ok {
			username = nextUsername(username, rawString(raw))
		}
	}
	if req.Username != nil {
		username = nextUsername(username, *req.Username)
	}
	analytics := models.ParseAnalyticsPatch(req.Analytics)

	if !strings.EqualFold(username, current.Username) {
		if err := s.ensureFree(ctx, storage.ByUsername(username), current.ID, MsgUsernameTaken); err != nil {
			return nil, err
		}
	}
	current.Username = username

	if err := s.store.SaveAccount(ctx, current); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, conflictError(MsgUsernameTaken)
		}
		if errors.Is(err, storage.ErrInvalid) {
			return nil, validationError("Invalid profile.")
		}
		return nil, backendError(err)
	}
	if !analytics.Empty() {
		if err := s.store.SetAnalytics(ctx, current.ID, analytics); err != nil {
			if errors.Is(err, storage.ErrInvalid) {
				return nil, validationError("Invalid analytics.")
			}
			return nil, backendError(err)
		}
	}

	return &models.UpdateMeResponse{Username: current.Username, Profile: current.Profile}, nil
}

func nextUsername(current, requested string) string {
	if slug := profile.SlugifyOrEmpty(requested); slug != "" {
		return slug
	}
	return current
}

// rawString decodes a JSON string, treating anything else as empty.
func rawString(raw json.RawMessage) string {
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return ""
	}
	return out
}
