package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taply/backend/internal/models"
)

// JSONStore provides JSON file-based persistence with atomic writes.
// It does no locking of its own; FileStore serializes access.
type JSONStore struct {
	filePath string
}

// NewJSONStore creates a new JSON store at the specified path
func NewJSONStore(dataDir, filename string) (*JSONStore, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	return &JSONStore{
		filePath: filepath.Join(dataDir, filename),
	}, nil
}

// Path returns the backing file.
func (s *JSONStore) Path() string {
	return s.filePath
}

// Load reads data from the JSON file into the provided interface.
// A missing file is not an error and leaves data untouched.
func (s *JSONStore) Load(data interface{}) error {
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(data)
}

// Save writes data to the JSON file
func (s *JSONStore) Save(data interface{}) error {
	// Write to temp file first, then rename (atomic operation)
	tempFile := s.filePath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	// Atomic rename
	return os.Rename(tempFile, s.filePath)
}

// Exists checks if the storage file exists
func (s *JSONStore) Exists() bool {
	_, err := os.Stat(s.filePath)
	return err == nil
}

// usersFile is the on-disk layout: { "users": [ ... ] }.
type usersFile struct {
	Users []*models.Account `json:"users"`
}

// FileStore keeps every account in one JSON document. All operations hold a
// process-wide mutex for the whole read-modify-write cycle, so writers in the
// same process never drop each other's updates. Separate processes sharing
// the file still race.
type FileStore struct {
	mu   sync.Mutex
	json *JSONStore
	now  func() time.Time
}

// NewFileStore opens (or prepares) dataDir/users.json.
func NewFileStore(dataDir string) (*FileStore, error) {
	return NewFileStoreAt(filepath.Join(dataDir, "users.json"))
}

// NewFileStoreAt opens a users file at an explicit path.
func NewFileStoreAt(path string) (*FileStore, error) {
	js, err := NewJSONStore(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return &FileStore{json: js, now: time.Now}, nil
}

// loadAll returns every stored account. A file that does not parse as JSON
// yields an empty dataset and the next write replaces it. Any other read
// failure is returned so nothing gets written over the file.
func (s *FileStore) loadAll() ([]*models.Account, error) {
	var data usersFile
	if err := s.json.Load(&data); err != nil {
		if !isCorrupt(err) {
			return nil, fmt.Errorf("read %s: %w", s.json.Path(), err)
		}
		log.WithError(err).WithField("path", s.json.Path()).Warn("users file corrupt, starting from an empty dataset")
		return []*models.Account{}, nil
	}
	out := make([]*models.Account, 0, len(data.Users))
	for _, u := range data.Users {
		if u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func isCorrupt(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (s *FileStore) saveAll(users []*models.Account) error {
	return s.json.Save(usersFile{Users: users})
}

func (s *FileStore) FindAccount(_ context.Context, lookup Lookup) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, acc := range users {
		if lookup.Matches(acc) {
			return acc, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) CreateAccount(_ context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadAll()
	if err != nil {
		return err
	}
	for _, existing := range users {
		if conflicts(existing, acc) || existing.ID == acc.ID {
			return ErrDuplicate
		}
	}
	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	return s.saveAll(append(users, acc))
}

func (s *FileStore) SaveAccount(_ context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadAll()
	if err != nil {
		return err
	}
	idx := -1
	for i, existing := range users {
		if existing.ID == acc.ID {
			idx = i
			continue
		}
		if conflicts(existing, acc) {
			return ErrDuplicate
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	acc.UpdatedAt = s.now()
	saved := *acc
	saved.Analytics = users[idx].Analytics
	users[idx] = &saved
	return s.saveAll(users)
}

func (s *FileStore) UpdateAnalytics(_ context.Context, username string, ev models.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadAll()
	if err != nil {
		return err
	}
	lookup := ByUsername(username)
	for _, acc := range users {
		if lookup.Matches(acc) {
			acc.Analytics.Apply(ev)
			return s.saveAll(users)
		}
	}
	return ErrNotFound
}

func (s *FileStore) SetAnalytics(_ context.Context, id string, patch models.AnalyticsPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadAll()
	if err != nil {
		return err
	}
	lookup := ByID(id)
	for _, acc := range users {
		if lookup.Matches(acc) {
			acc.Analytics.ApplyPatch(patch)
			return s.saveAll(users)
		}
	}
	return ErrNotFound
}

func (s *FileStore) ListAccounts(_ context.Context) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAll()
}

func (s *FileStore) Close(context.Context) error { return nil }
