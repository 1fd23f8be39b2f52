package handlers

import (
	"net/http"

	"github.com/taply/backend/internal/middleware"
	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/services"
)

// AccountHandler serves the authenticated /api/me endpoints. Both routes sit
// behind middleware.BearerAuth.
type AccountHandler struct {
	accounts *services.AccountService
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.GetAccount(r.Context())
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(services.MsgUnauthorized))
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.Me(acc))
}

func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.GetAccount(r.Context())
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(services.MsgUnauthorized))
		return
	}

	var req models.UpdateMeRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	resp, err := h.accounts.UpdateMe(r.Context(), acc, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
