package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrInvalidImage  = errors.New("invalid image file")
)

// imageExtensions maps sniffed content types to the stored extension.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageService stores avatar and background uploads on disk, one directory
// per account, so ownership survives restarts without an index.
type ImageService struct {
	mu        sync.Mutex
	uploadDir string
	urlPrefix string
}

func NewImageService(uploadDir string) (*ImageService, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, err
	}
	return &ImageService{uploadDir: uploadDir, urlPrefix: "/uploads/"}, nil
}

// Dir is the directory served at /uploads/.
func (s *ImageService) Dir() string {
	return s.uploadDir
}

// Upload sniffs the content, rejects anything that is not a supported image
// and writes it under the account's directory.
func (s *ImageService) Upload(accountID string, file io.Reader) (*models.ImageUploadResponse, error) {
	if !safeSegment(accountID) {
		return nil, ErrInvalidImage
	}

	br := bufio.NewReaderSize(file, 512)
	head, _ := br.Peek(512)
	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return nil, ErrInvalidImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.uploadDir, accountID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	imageID := uuid.New().String()
	filename := imageID + ext
	path := filepath.Join(dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, br); err != nil {
		dst.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	log.WithFields(log.Fields{"account_id": accountID, "image_id": imageID}).Debug("image stored")
	return &models.ImageUploadResponse{
		ID:       imageID,
		URL:      s.urlPrefix + accountID + "/" + filename,
		Filename: filename,
	}, nil
}

// Delete removes one of the account's images. Images owned by other
// accounts are reported as not found.
func (s *ImageService) Delete(accountID, imageID string) error {
	if !safeSegment(accountID) || !safeSegment(imageID) {
		return ErrImageNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.uploadDir, accountID, imageID+".*"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return ErrImageNotFound
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return nil
}

// safeSegment rejects anything that could escape the upload directory or act as a glob.
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\*?[]`)
}
