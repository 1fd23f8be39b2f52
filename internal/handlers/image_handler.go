package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/middleware"
	"github.com/taply/backend/internal/models"
	"github.com/taply/backend/internal/services"
)

type ImageHandler struct {
	imageService *services.ImageService
	maxSizeMB    int64
}

func NewImageHandler(imageService *services.ImageService, maxSizeMB int64) *ImageHandler {
	return &ImageHandler{
		imageService: imageService,
		maxSizeMB:    maxSizeMB,
	}
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	acc := middleware.GetAccount(r.Context())
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(services.MsgUnauthorized))
		return
	}

	// Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeMB*1024*1024)

	if err := r.ParseMultipartForm(h.maxSizeMB * 1024 * 1024); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("File too large or invalid form data"))
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("No image file provided"))
		return
	}
	defer file.Close()

	response, err := h.imageService.Upload(acc.ID, file)
	if err != nil {
		if errors.Is(err, services.ErrInvalidImage) {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid image type. Allowed: JPEG, PNG, GIF, WebP"))
			return
		}
		log.WithError(err).WithField("account_id", acc.ID).Error("image upload failed")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload image"))
		return
	}

	writeJSON(w, http.StatusCreated, response)
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	acc := middleware.GetAccount(r.Context())
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(services.MsgUnauthorized))
		return
	}

	err := h.imageService.Delete(acc.ID, chi.URLParam(r, "imageId"))
	if err != nil {
		if errors.Is(err, services.ErrImageNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Image not found"))
			return
		}
		log.WithError(err).WithField("account_id", acc.ID).Error("image delete failed")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete image"))
		return
	}

	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}
