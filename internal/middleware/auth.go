package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/services"
)

type contextKey string

const AccountKey contextKey = "account"

// Authenticator resolves a bearer token to its account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Account, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer <token>"
// header and stores the resolved account in the request context.
func BearerAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(services.MsgUnauthorized))
				return
			}

			acc, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, services.ErrBackend) {
					log.WithError(err).Error("token lookup failed")
					status = http.StatusInternalServerError
				}
				writeJSON(w, status, models.NewErrorResponse(services.Message(err)))
				return
			}

			ctx := context.WithValue(r.Context(), AccountKey, acc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccount extracts the authenticated account from context
func GetAccount(ctx context.Context) *models.Account {
	acc, ok := ctx.Value(AccountKey).(*models.Account)
	if !ok {
		return nil
	}
	return acc
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
