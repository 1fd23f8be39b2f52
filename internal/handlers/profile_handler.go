package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/services"
)

// reservedPaths are first path segments that never resolve to a profile.
var reservedPaths = map[string]bool{
	"api": true, "login": true, "register": true, "landing": true, "profile": true,
	"index": true, "privacy": true, "dashboard": true, "forgot-password": true,
	"reset-password": true, "confirm-email": true, "data": true, "assets": true,
	"go": true, "uploads": true, "health": true, "metrics": true,
}

type clickRequest struct {
	LinkID string `json:"linkId"`
}

// ProfileHandler serves the anonymous profile endpoints and redirects.
type ProfileHandler struct {
	profiles  *services.ProfileService
	analytics *services.AnalyticsService
}

func NewProfileHandler(profiles *services.ProfileService, analytics *services.AnalyticsService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, analytics: analytics}
}

func (h *ProfileHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	pub, err := h.profiles.Public(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

func (h *ProfileHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	if err := h.analytics.RecordView(r.Context(), chi.URLParam(r, "username")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

func (h *ProfileHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if err := h.analytics.RecordClick(r.Context(), chi.URLParam(r, "username"), req.LinkID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

// ShortLink redirects /go/{username}/{slug} to the profile's short link
// target, or to the profile page when there is none.
func (h *ProfileHandler) ShortLink(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if target, ok := h.profiles.ShortLink(r.Context(), username, chi.URLParam(r, "slug")); ok {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	http.Redirect(w, r, profilePageURL(username), http.StatusFound)
}

// Vanity redirects /{username} to the profile page.
func (h *ProfileHandler) Vanity(w http.ResponseWriter, r *http.Request) {
	seg := chi.URLParam(r, "username")
	if seg == "" || strings.Contains(seg, ".") || reservedPaths[strings.ToLower(seg)] {
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Not found"))
		return
	}
	http.Redirect(w, r, profilePageURL(seg), http.StatusFound)
}

func profilePageURL(username string) string {
	return "/profile?u=" + url.QueryEscape(username)
}
