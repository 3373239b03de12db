package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	saved := Credentials{AccessToken: "A1", RefreshToken: "R1"}
	if err := store.Save(saved, "a@b.com"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	creds, email, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if creds == nil {
		t.Fatal("Load() returned nil credentials")
	}
	if creds.AccessToken != "A1" || creds.RefreshToken != "R1" {
		t.Errorf("Load() = (%q, %q), want (A1, R1)", creds.AccessToken, creds.RefreshToken)
	}
	if email != "a@b.com" {
		t.Errorf("Load() email hint = %q, want a@b.com", email)
	}
}

func TestFileStore_LoadAbsent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	creds, email, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if creds != nil {
		t.Errorf("Load() on missing file = %+v, want nil", creds)
	}
	if email != "" {
		t.Errorf("Load() on missing file email = %q, want empty", email)
	}
}

func TestFileStore_PartialStateLoadsAsAbsent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "access token only",
			body: `{"access_token":"A1","refresh_token":"","email":"a@b.com"}`,
		},
		{
			name: "refresh token only",
			body: `{"access_token":"","refresh_token":"R1","email":"a@b.com"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o600); err != nil {
				t.Fatal(err)
			}

			creds, email, err := NewFileStore(path).Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if creds != nil {
				t.Errorf("partial state loaded as %+v, want nil", creds)
			}
			if email != "a@b.com" {
				t.Errorf("email hint = %q, want a@b.com (hint survives partial state)", email)
			}
		})
	}
}

func TestFileStore_CorruptFileIsStorageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewFileStore(path).Load()
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("Load() error = %v, want *StorageError", err)
	}
	if storageErr.Op != "load" {
		t.Errorf("StorageError.Op = %q, want load", storageErr.Op)
	}
}

func TestFileStore_ClearIdempotent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	// Clearing an empty store succeeds
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() on empty store error = %v", err)
	}

	if err := store.Save(Credentials{AccessToken: "A1", RefreshToken: "R1"}, "a@b.com"); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}

	creds, _, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("Load() after Clear() = %+v, want nil", creds)
	}
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	const goroutines = 10
	var wg sync.WaitGroup

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()

			creds := Credentials{
				AccessToken:  fmt.Sprintf("access-%d", id),
				RefreshToken: fmt.Sprintf("refresh-%d", id),
			}
			if err := store.Save(creds, fmt.Sprintf("admin-%d@unicash.test", id)); err != nil {
				t.Errorf("Goroutine %d: Save() error = %v", id, err)
			}
		}(i)
	}

	wg.Wait()

	// Last writer wins, but the file must always be a complete pair.
	creds, email, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after concurrent saves error = %v", err)
	}
	if creds == nil || creds.AccessToken == "" || creds.RefreshToken == "" || email == "" {
		t.Errorf("Load() after concurrent saves = (%+v, %q), want a complete record", creds, email)
	}

	// No lock file left behind
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after all saves completed")
	}
}
