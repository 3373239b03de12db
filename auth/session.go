// Package auth implements the authenticated client core for the UniCash
// admin console: persisted credential storage, the session state machine,
// single-flight token refresh, and the request pipeline that ties them
// together.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Timeout configuration for the auth endpoints.
const (
	loginTimeout   = 10 * time.Second
	refreshTimeout = 10 * time.Second
)

// Status is the session lifecycle state.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// Identity is the display identity of the logged-in admin.
type Identity struct {
	Email string
	Role  string
}

// Snapshot is a point-in-time view of the session. Consumers read
// snapshots; all mutation goes through Login, Logout and Expire.
type Snapshot struct {
	Status   Status
	Identity *Identity
}

// Navigate is the port through which the core reaches the login screen on
// session loss. The caller decides what "go to login" means.
type Navigate func()

// SessionConfig wires a Session.
type SessionConfig struct {
	Store    Store
	HTTP     *retry.Client
	BaseURL  string
	Navigate Navigate
	Logger   zerolog.Logger
}

// Session is the single source of truth for "is an admin logged in".
type Session struct {
	store    Store
	http     *retry.Client
	baseURL  string
	navigate Navigate
	log      zerolog.Logger

	mu       sync.RWMutex
	status   Status
	identity *Identity
}

// NewSession creates a Session in the uninitialized state. Call
// Initialize before reading from it.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		store:    cfg.Store,
		http:     cfg.HTTP,
		baseURL:  cfg.BaseURL,
		navigate: cfg.Navigate,
		log:      cfg.Logger,
		status:   StatusUninitialized,
	}
}

// Current returns a snapshot of the session state.
func (s *Session) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Status: s.status}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Initialize loads stored credentials and settles into Authenticated or
// Anonymous. Stored credentials are trusted without a server round trip;
// validity is discovered lazily by the first real request and recovered by
// the pipeline. Never makes a network call, always terminates.
func (s *Session) Initialize() {
	s.mu.Lock()
	s.status = StatusLoading
	s.mu.Unlock()

	creds, hint, err := s.store.Load()
	if err != nil {
		// A broken store means no session; the admin logs in again.
		s.log.Warn().Err(err).Msg("session storage unreadable, treating as logged out")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || creds == nil {
		s.status = StatusAnonymous
		s.identity = nil
		return
	}
	s.status = StatusAuthenticated
	s.identity = &Identity{Email: hint, Role: "admin"}
}

// loginResponse is the body of POST /auth/login/.
type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login exchanges email and password for a credential pair and persists
// it. On any failure the session state is left unchanged and the error is
// returned for the caller to display.
func (s *Session) Login(ctx context.Context, email, password string) error {
	reqCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		reqCtx,
		http.MethodPost,
		s.baseURL+"/auth/login/",
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.DoWithContext(reqCtx, req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &oauth2.RetrieveError{
			Response: resp,
			Body:     body,
		}
	}

	var tokens loginResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return errors.New("login response missing token pair")
	}

	if err := s.store.Save(Credentials{
		AccessToken:  tokens.Access,
		RefreshToken: tokens.Refresh,
	}, email); err != nil {
		return err
	}

	s.mu.Lock()
	s.status = StatusAuthenticated
	s.identity = &Identity{Email: email, Role: "admin"}
	s.mu.Unlock()

	s.log.Info().Str("email", email).Msg("logged in")
	return nil
}

// Logout clears stored credentials and resets the session. Safe to call
// repeatedly; a second call clears again (a no-op on an empty store) but
// does not re-navigate.
func (s *Session) Logout() {
	if err := s.store.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear session storage on logout")
	}

	s.mu.Lock()
	wasAnonymous := s.status == StatusAnonymous
	s.status = StatusAnonymous
	s.identity = nil
	s.mu.Unlock()

	if !wasAnonymous && s.navigate != nil {
		s.navigate()
	}
}

// Expire is the coordinator's terminal-failure path: the refresh token was
// missing or rejected, so no recovery is possible. Concurrent callers
// collapse to a single clear-and-navigate; an already-anonymous session is
// left alone.
func (s *Session) Expire() {
	s.mu.Lock()
	if s.status == StatusAnonymous {
		s.mu.Unlock()
		return
	}
	s.status = StatusAnonymous
	s.identity = nil
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear session storage on expiry")
	}
	s.log.Info().Msg("session expired")
	if s.navigate != nil {
		s.navigate()
	}
}
