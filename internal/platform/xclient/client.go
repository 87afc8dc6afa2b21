package xclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"repost_monitor/internal/domain"
)

// challengeStepUp is the challenge kind the platform raises when a login
// needs a manual verification step completed out of band.
const challengeStepUp = "step_up"

// Config holds platform API client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client talks to the platform's HTTP API. It holds the session token for
// one authenticated connection; read endpoints are retried with backoff,
// the repost action is attempted exactly once.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	mu    sync.Mutex
	token string
}

func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "xclient"),
	}
}

// Authenticate submits the identifier and password. A step-up challenge in
// the response means the session exists but is not usable until the
// verification clears.
func (c *Client) Authenticate(ctx context.Context, identifier, password string) (domain.AuthOutcome, error) {
	body, err := json.Marshal(sessionRequest{Identifier: identifier, Password: password})
	if err != nil {
		return "", fmt.Errorf("encode login: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/session", bytes.NewReader(body), false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected: %s", apiError(resp))
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}

	c.setToken(session.Token)

	switch session.Challenge {
	case "":
		return domain.AuthOK, nil
	case challengeStepUp:
		return domain.AuthNeedsStepUp, nil
	default:
		// The platform wants a different identifier; the session manager
		// resubmits with the secondary one.
		return "", fmt.Errorf("identifier rejected with challenge %q", session.Challenge)
	}
}

// StepUpCleared reports whether a pending verification has completed.
func (c *Client) StepUpCleared(ctx context.Context) (bool, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, "/session/verify")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return false, err
	}

	var verify verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verify); err != nil {
		return false, fmt.Errorf("decode verify response: %w", err)
	}
	return verify.Cleared, nil
}

// Logout tears down the session on the platform side and drops the token.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/session", nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.setToken("")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// ResolveAccount verifies the handle exists and is not suspended.
func (c *Client) ResolveAccount(ctx context.Context, handle string) error {
	resp, err := c.doWithRetry(ctx, http.MethodGet, "/users/"+url.PathEscape(handle))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrAccountMissing
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return fmt.Errorf("decode user response: %w", err)
	}
	if user.Suspended {
		return domain.ErrAccountMissing
	}
	return nil
}

// ListRecentItems returns up to limit of the handle's most recent items,
// newest first.
func (c *Client) ListRecentItems(ctx context.Context, handle string, limit int) ([]domain.ContentItem, error) {
	path := fmt.Sprintf("/users/%s/items?limit=%d", url.PathEscape(handle), limit)

	resp, err := c.doWithRetry(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrAccountMissing
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var list itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode items response: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(list.Items))
	for i, raw := range list.Items {
		items = append(items, domain.ContentItem{
			ID:              itemID(raw),
			URL:             raw.URL,
			DiscoveredOrder: i,
		})
	}
	return items, nil
}

// Repost publishes the item on the authenticated account with the
// annotation appended. A single attempt: retrying a repost that may have
// landed would duplicate it.
func (c *Client) Repost(ctx context.Context, item domain.ContentItem, annotation string) error {
	body, err := json.Marshal(repostRequest{Annotation: annotation})
	if err != nil {
		return fmt.Errorf("encode repost: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(item.ID)+"/repost", bytes.NewReader(body), true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("item %s no longer available", item.ID)
	}
	return checkStatus(resp)
}

// doWithRetry wraps do for idempotent reads, retrying transport and server
// errors with exponential backoff. Auth failures are never retried.
func (c *Client) doWithRetry(ctx context.Context, method, path string) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err = c.do(ctx, method, path, nil, true)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err == nil {
			err = fmt.Errorf("unexpected status: %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt == c.maxAttempts {
			break
		}

		backoff := c.calculateBackoff(attempt)
		c.logger.Warn("request failed, retrying",
			"method", method,
			"path", path,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, authed bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "RepostMonitor/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if token := c.getToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) getToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// checkStatus maps response codes to errors. A 401 means the session died
// under us and is surfaced as ErrSessionInvalid so the caller can
// re-authenticate.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrSessionInvalid
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiError(resp))
	}
}

func apiError(resp *http.Response) string {
	var apiErr errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return http.StatusText(resp.StatusCode)
}

// itemID derives a stable identifier for an item. The platform id wins;
// otherwise the status segment of the permalink is used; text-only items
// fall back to a digest of their text.
func itemID(raw apiItem) string {
	if raw.ID != "" {
		return raw.ID
	}
	if id := idFromURL(raw.URL); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(raw.Text))
	return fmt.Sprintf("text_%x", sum[:8])
}

func idFromURL(rawURL string) string {
	_, rest, ok := strings.Cut(rawURL, "/status/")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "?/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
