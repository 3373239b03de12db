package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

// testBackend is an httptest server exposing the refresh endpoint plus a
// configurable resource handler, the way the real API does.
type testBackend struct {
	server       *httptest.Server
	refreshCalls atomic.Int32
	newAccess    string
	refreshFails bool
	resource     http.HandlerFunc
}

func newTestBackend(resource http.HandlerFunc) *testBackend {
	b := &testBackend{newAccess: "A2", resource: resource}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token/refresh/" {
			b.refreshCalls.Add(1)
			if b.refreshFails {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "token is blacklisted"})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"access": b.newAccess})
			return
		}
		b.resource(w, r)
	}))
	return b
}

func newTestPipeline(store Store, backend *testBackend) *Client {
	coordinator := newTestCoordinator(store, backend.server.URL, nil)
	return NewClient(ClientConfig{
		Store:     store,
		Refresher: coordinator,
		HTTP:      testHTTP,
		Logger:    zerolog.Nop(),
	})
}

func seededStore() *MemStore {
	store := &MemStore{}
	store.Seed(Credentials{AccessToken: "A1", RefreshToken: "R1"}, "a@b.com")
	return store
}

func TestDo_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID string
	backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	})
	defer backend.server.Close()

	pipeline := newTestPipeline(seededStore(), backend)

	req, _ := http.NewRequestWithContext(
		context.Background(), http.MethodGet, backend.server.URL+"/core/countries/", nil,
	)
	resp, err := pipeline.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer A1" {
		t.Errorf("Authorization = %q, want Bearer A1", gotAuth)
	}
	if gotRequestID == "" {
		t.Errorf("X-Request-ID header missing")
	}
	if backend.refreshCalls.Load() != 0 {
		t.Errorf("refresh called %d times on a 200, want 0", backend.refreshCalls.Load())
	}
}

func TestDo_RefreshAndReplayOnce(t *testing.T) {
	var attempts atomic.Int32
	backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.Header.Get("Authorization") != "Bearer A2" {
			http.Error(w, "token not valid", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer backend.server.Close()

	store := seededStore()
	pipeline := newTestPipeline(store, backend)

	req, _ := http.NewRequestWithContext(
		context.Background(), http.MethodGet, backend.server.URL+"/core/countries/", nil,
	)
	resp, err := pipeline.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("final status = %d, want 200 after refresh+replay", resp.StatusCode)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("resource hit %d times, want 2 (original + one replay)", got)
	}
	if got := backend.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh called %d times, want 1", got)
	}

	creds, email, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if creds == nil || creds.AccessToken != "A2" || creds.RefreshToken != "R1" || email != "a@b.com" {
		t.Errorf("store = (%+v, %q), want (A2, R1, a@b.com)", creds, email)
	}
}

func TestDo_RetryOnceGuard(t *testing.T) {
	var attempts atomic.Int32
	backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
		// The new token is rejected too; the pipeline must give up.
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer backend.server.Close()

	pipeline := newTestPipeline(seededStore(), backend)

	req, _ := http.NewRequestWithContext(
		context.Background(), http.MethodGet, backend.server.URL+"/core/countries/", nil,
	)
	resp, err := pipeline.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("final status = %d, want the terminal 401", resp.StatusCode)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("resource hit %d times, want 2 (never more than one replay)", got)
	}
	if got := backend.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh called %d times, want 1 (never loops)", got)
	}
}

func TestDo_RefreshLifecycleEvents(t *testing.T) {
	backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A2" {
			http.Error(w, "token not valid", http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer backend.server.Close()

	var refreshing, refreshed, unauthorized, retrying atomic.Int32
	store := seededStore()
	coordinator := NewCoordinator(CoordinatorConfig{
		Store:        store,
		HTTP:         testHTTP,
		BaseURL:      backend.server.URL,
		OnRefreshing: func() { refreshing.Add(1) },
		OnRefreshed:  func() { refreshed.Add(1) },
		Logger:       zerolog.Nop(),
	})
	pipeline := NewClient(ClientConfig{
		Store:          store,
		Refresher:      coordinator,
		HTTP:           testHTTP,
		OnUnauthorized: func() { unauthorized.Add(1) },
		OnRetrying:     func() { retrying.Add(1) },
		Logger:         zerolog.Nop(),
	})

	req, _ := http.NewRequestWithContext(
		context.Background(), http.MethodGet, backend.server.URL+"/core/countries/", nil,
	)
	resp, err := pipeline.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	events := map[string]*atomic.Int32{
		"unauthorized": &unauthorized,
		"refreshing":   &refreshing,
		"refreshed":    &refreshed,
		"retrying":     &retrying,
	}
	for name, count := range events {
		if got := count.Load(); got != 1 {
			t.Errorf("%s event fired %d times, want 1", name, got)
		}
	}
}

func TestDo_NonAuthErrorsPassThrough(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "bad request", status: http.StatusBadRequest},
		{name: "forbidden", status: http.StatusForbidden},
		{name: "not found", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			defer backend.server.Close()

			pipeline := newTestPipeline(seededStore(), backend)

			req, _ := http.NewRequestWithContext(
				context.Background(), http.MethodGet, backend.server.URL+"/core/countries/", nil,
			)
			resp, err := pipeline.Do(req)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d untouched", resp.StatusCode, tt.status)
			}
			if backend.refreshCalls.Load() != 0 {
				t.Errorf("refresh called %d times for a %d, want 0", backend.refreshCalls.Load(), tt.status)
			}
		})
	}
}

func TestDo_ReplayCarriesBody(t *testing.T) {
	var bodies [][]byte
	backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		if r.Header.Get("Authorization") != "Bearer A2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer backend.server.Close()

	pipeline := newTestPipeline(seededStore(), backend)

	payload := []byte(`{"is_active":false}`)
	req, _ := http.NewRequestWithContext(
		context.Background(),
		http.MethodPatch,
		backend.server.URL+"/core/networks/3/",
		bytes.NewReader(payload),
	)
	resp, err := pipeline.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("resource hit %d times, want 2", len(bodies))
	}
	for i, body := range bodies {
		if !bytes.Equal(body, payload) {
			t.Errorf("attempt %d body = %q, want %q", i+1, body, payload)
		}
	}
}

func TestDo_RefreshFailureTerminates(t *testing.T) {
	backend := newTestBackend(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	backend.refreshFails = true
	defer backend.server.Close()

	pipeline := newTestPipeline(seededStore(), backend)

	req, _ := http.NewRequestWithContext(
		context.Background(), http.MethodGet, backend.server.URL+"/core/countries/", nil,
	)
	_, err := pipeline.Do(req)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Do() error = %v, want ErrSessionExpired", err)
	}
	if got := backend.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh called %d times, want 1", got)
	}
}
