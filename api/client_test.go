package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"

	"github.com/codelabbj/unicash-admin-cli/auth"
)

var testHTTP *retry.Client

func init() {
	var err error
	testHTTP, err = retry.NewClient()
	if err != nil {
		panic(fmt.Sprintf("failed to create retry client: %v", err))
	}
}

// newTestClient builds the full stack against server: file-less store,
// coordinator, pipeline, resource client.
func newTestClient(serverURL string) (*Client, *auth.MemStore) {
	store := &auth.MemStore{}
	store.Seed(auth.Credentials{AccessToken: "A1", RefreshToken: "R1"}, "a@b.com")

	coordinator := auth.NewCoordinator(auth.CoordinatorConfig{
		Store:   store,
		HTTP:    testHTTP,
		BaseURL: serverURL,
		Logger:  zerolog.Nop(),
	})
	pipeline := auth.NewClient(auth.ClientConfig{
		Store:     store,
		Refresher: coordinator,
		HTTP:      testHTTP,
		Logger:    zerolog.Nop(),
	})
	return New(serverURL, pipeline), store
}

func TestListCountries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/core/countries/" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer A1" {
			t.Errorf("Authorization = %q, want Bearer A1", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q, want 2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":    3,
			"next":     "/core/countries/?limit=2&offset=2",
			"previous": nil,
			"results": []map[string]any{
				{"id": 1, "nom": "Bénin", "code": "BJ", "indicatif": "+229", "is_active": true},
				{"id": 2, "nom": "Togo", "code": "TG", "indicatif": "+228", "is_active": true},
			},
		})
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	page, err := client.ListCountries(context.Background(), ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListCountries() error = %v", err)
	}

	if page.Count != 3 {
		t.Errorf("Count = %d, want 3", page.Count)
	}
	if len(page.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(page.Results))
	}
	if page.Results[0].Name != "Bénin" || page.Results[0].Code != "BJ" {
		t.Errorf("Results[0] = %+v, want Bénin/BJ", page.Results[0])
	}
	if page.Next == nil {
		t.Errorf("Next = nil, want a next page link")
	}
}

func TestSetNetworkActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/core/networks/3/" {
			http.NotFound(w, r)
			return
		}
		var body map[string]bool
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if body["is_active"] != false {
			t.Errorf("body = %v, want is_active=false", body)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": 3, "nom": "MTN Bénin", "code": "MTN", "pays": 1, "is_active": false,
		})
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	network, err := client.SetNetworkActive(context.Background(), 3, false)
	if err != nil {
		t.Fatalf("SetNetworkActive() error = %v", err)
	}
	if network.IsActive {
		t.Errorf("IsActive = true, want false")
	}
	if network.Name != "MTN Bénin" {
		t.Errorf("Name = %q, want MTN Bénin", network.Name)
	}
}

func TestNonOKResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"not found"}`)
	}))
	defer server.Close()

	client, _ := newTestClient(server.URL)

	_, err := client.GetCountry(context.Background(), 99)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetCountry() error = %v, want *api.Error", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}
