package auth

import (
	"fmt"
	"io"
	"net/http"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ClientConfig wires a Client.
type ClientConfig struct {
	Store     Store
	Refresher *Coordinator
	HTTP      *retry.Client
	// OnUnauthorized fires when a 401 is intercepted, OnRetrying just
	// before the replay. Optional; main wires them to the status display.
	OnUnauthorized func()
	OnRetrying     func()
	Logger         zerolog.Logger
}

// Client is the authenticated request pipeline. It attaches the current
// bearer token immediately before send, intercepts the one signal it owns
// (HTTP 401), refreshes through the Coordinator and replays the request at
// most once. Every other outcome passes through untouched.
type Client struct {
	store          Store
	refresher      *Coordinator
	http           *retry.Client
	onUnauthorized func()
	onRetrying     func()
	log            zerolog.Logger
}

// NewClient creates the pipeline client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		store:          cfg.Store,
		refresher:      cfg.Refresher,
		http:           cfg.HTTP,
		onUnauthorized: cfg.OnUnauthorized,
		onRetrying:     cfg.OnRetrying,
		log:            cfg.Logger,
	}
}

// Do sends req with the current access token attached. On a 401 it asks
// the Coordinator for a fresh token (deduplicated across concurrent
// requests) and replays the request exactly once with the new token. The
// replay carries the same X-Request-ID so server logs correlate the pair.
//
// Requests with a body must be built with http.NewRequest/
// NewRequestWithContext or otherwise carry GetBody, or the replay fails.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	// Drain before closing so the keep-alive connection can be reused for
	// the replay.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Msg("access token rejected, refreshing")
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}

	token, err := c.refresher.FreshToken(req.Context())
	if err != nil {
		return nil, err
	}

	replay, err := cloneRequest(req)
	if err != nil {
		return nil, fmt.Errorf("cannot replay request: %w", err)
	}
	replay.Header.Set("Authorization", "Bearer "+token)
	if c.onRetrying != nil {
		c.onRetrying()
	}

	// Already retried once; whatever comes back now is final.
	return c.http.DoWithContext(replay.Context(), replay)
}

// send attaches the latest stored access token and dispatches. The token
// is read immediately before send so a refresh completed by an earlier
// request is always picked up. An unreadable store sends unauthenticated
// and lets the server's 401 drive recovery.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	creds, _, err := c.store.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("session storage unreadable, sending without token")
	} else if creds != nil {
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}
	return c.http.DoWithContext(req.Context(), req)
}

// cloneRequest duplicates req including a fresh copy of its body.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		if req.Body != nil {
			return nil, fmt.Errorf("request body is not replayable")
		}
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
