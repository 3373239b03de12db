package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	retry "github.com/appleboy/go-httpretry"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired indicates that the refresh token was missing, expired
// or rejected. The session has already been expired and the login screen
// navigation fired by the time a caller sees this error.
var ErrSessionExpired = errors.New("session expired: refresh token missing or rejected")

// CoordinatorConfig wires a Coordinator.
type CoordinatorConfig struct {
	Store   Store
	HTTP    *retry.Client
	BaseURL string
	// OnExpire is invoked exactly once per failed exchange, however many
	// callers were waiting on it. Normally Session.Expire.
	OnExpire func()
	// OnRefreshing and OnRefreshed fire once per flight, around the network
	// exchange. Optional; main wires them to the status display.
	OnRefreshing func()
	OnRefreshed  func()
	Logger       zerolog.Logger
}

// Coordinator serializes concurrent token-refresh attempts into a single
// network exchange. However many requests discover an expired access token
// at once, exactly one call to the refresh endpoint happens and every
// caller observes its outcome.
type Coordinator struct {
	store        Store
	http         *retry.Client
	baseURL      string
	onExpire     func()
	onRefreshing func()
	onRefreshed  func()
	log          zerolog.Logger

	group singleflight.Group
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		store:        cfg.Store,
		http:         cfg.HTTP,
		baseURL:      cfg.BaseURL,
		onExpire:     cfg.OnExpire,
		onRefreshing: cfg.OnRefreshing,
		onRefreshed:  cfg.OnRefreshed,
		log:          cfg.Logger,
	}
}

// FreshToken returns a newly exchanged access token. Callers that arrive
// while an exchange is in flight wait for that exchange instead of
// starting another. A waiter whose context is canceled returns early, but
// the exchange itself runs to completion on its own context so the store
// is never left mid-update.
func (c *Coordinator) FreshToken(ctx context.Context) (string, error) {
	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		return c.exchange()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refreshResponse is the body of POST /auth/token/refresh/.
type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// exchange performs the one refresh-token-for-access-token network call.
// Runs at most once per flight; any failure is terminal for the session.
func (c *Coordinator) exchange() (string, error) {
	creds, hint, err := c.store.Load()
	if err != nil || creds == nil || creds.RefreshToken == "" {
		if err != nil {
			c.log.Warn().Err(err).Msg("session storage unreadable during refresh")
		}
		return "", c.fail(errors.New("no refresh token stored"))
	}

	if c.onRefreshing != nil {
		c.onRefreshing()
	}

	// Deliberately not the waiter's context: a refresh in flight runs to
	// completion even if the caller that started it went away.
	reqCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh": creds.RefreshToken})
	if err != nil {
		return "", c.fail(fmt.Errorf("failed to encode refresh request: %w", err))
	}

	req, err := http.NewRequestWithContext(
		reqCtx,
		http.MethodPost,
		c.baseURL+"/auth/token/refresh/",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", c.fail(fmt.Errorf("failed to create refresh request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.DoWithContext(reqCtx, req)
	if err != nil {
		// Ambiguous transport failures are fail-closed: the UI must not be
		// left half-authenticated.
		return "", c.fail(fmt.Errorf("refresh request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.fail(fmt.Errorf("failed to read refresh response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.fail(&oauth2.RetrieveError{
			Response: resp,
			Body:     body,
		})
	}

	var tokens refreshResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return "", c.fail(fmt.Errorf("failed to parse refresh response: %w", err))
	}
	if tokens.Access == "" {
		return "", c.fail(errors.New("refresh response missing access token"))
	}

	// The server typically keeps the refresh token fixed; preserve the
	// stored one unless it rotated.
	newRefresh := tokens.Refresh
	if newRefresh == "" {
		newRefresh = creds.RefreshToken
	}

	if err := c.store.Save(Credentials{
		AccessToken:  tokens.Access,
		RefreshToken: newRefresh,
	}, hint); err != nil {
		// The new token is still valid for this process; only its
		// persistence failed. The next boot will just log in again.
		c.log.Warn().Err(err).Msg("failed to persist refreshed credentials")
	}

	c.log.Debug().Msg("access token refreshed")
	if c.onRefreshed != nil {
		c.onRefreshed()
	}
	return tokens.Access, nil
}

// fail expires the session and wraps the cause under ErrSessionExpired.
func (c *Coordinator) fail(cause error) error {
	c.log.Warn().Err(cause).Msg("token refresh failed, session is over")
	if c.onExpire != nil {
		c.onExpire()
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}
