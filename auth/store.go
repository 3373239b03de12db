package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Credentials is the persisted token pair. Both values are opaque bearer
// strings; nothing in this package inspects their contents.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// StorageError wraps a persisted read/write fault. Callers treat it as
// "no session" rather than propagating a crash.
type StorageError struct {
	Op    string // "load", "save", "clear"
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage %s failed: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// Store persists the credential pair plus a display-only email hint. The
// hint is never used for authorization decisions.
type Store interface {
	// Save persists both tokens and the hint, overwriting any prior value.
	Save(creds Credentials, emailHint string) error

	// Load returns the stored credentials, or nil if absent. Partial state
	// (only one of the two tokens present) is never trusted and loads as
	// nil. The email hint is returned whenever one was stored.
	Load() (*Credentials, string, error)

	// Clear removes everything. Idempotent; clearing an empty store is not
	// an error.
	Clear() error
}

// sessionFile is the on-disk layout: three flat string fields.
type sessionFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email"`
}

// FileStore keeps the session in a single JSON file, written atomically
// under an exclusive lock so concurrent processes cannot interleave a
// partial write.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by path. The file is created on
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(creds Credentials, emailHint string) error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return &StorageError{Op: "save", Cause: err}
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release session lock: %v\n", releaseErr)
		}
	}()

	data, err := json.MarshalIndent(sessionFile{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Email:        emailHint,
	}, "", "  ")
	if err != nil {
		return &StorageError{Op: "save", Cause: err}
	}

	// Write to temp file first (atomic write pattern)
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return &StorageError{Op: "save", Cause: err}
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return &StorageError{
				Op:    "save",
				Cause: fmt.Errorf("rename failed: %v; temp cleanup failed: %w", err, removeErr),
			}
		}
		return &StorageError{Op: "save", Cause: err}
	}
	return nil
}

func (s *FileStore) Load() (*Credentials, string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", &StorageError{Op: "load", Cause: err}
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", &StorageError{Op: "load", Cause: err}
	}

	// Only a complete pair is usable.
	if f.AccessToken == "" || f.RefreshToken == "" {
		return nil, f.Email, nil
	}
	return &Credentials{AccessToken: f.AccessToken, RefreshToken: f.RefreshToken}, f.Email, nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "clear", Cause: err}
	}
	return nil
}

// MemStore is an in-memory Store used in tests. The error fields, when
// set, are returned by the corresponding operation.
type MemStore struct {
	mu    sync.Mutex
	creds *Credentials
	email string

	SaveErr  error
	LoadErr  error
	ClearErr error
}

func (s *MemStore) Save(creds Credentials, emailHint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	c := creds
	s.creds = &c
	s.email = emailHint
	return nil
}

func (s *MemStore) Load() (*Credentials, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, "", s.LoadErr
	}
	if s.creds == nil || s.creds.AccessToken == "" || s.creds.RefreshToken == "" {
		return nil, s.email, nil
	}
	c := *s.creds
	return &c, s.email, nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ClearErr != nil {
		return s.ClearErr
	}
	s.creds = nil
	s.email = ""
	return nil
}

// Seed pre-populates the store, bypassing error injection. Test helper.
func (s *MemStore) Seed(creds Credentials, emailHint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := creds
	s.creds = &c
	s.email = emailHint
}
