package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"repost_monitor/internal/domain"
)

// ErrAuthTimeout is returned when a manual step-up verification does not
// clear within the configured maximum wait.
var ErrAuthTimeout = errors.New("step-up verification wait timed out")

// SessionState is the authentication state of one platform connection.
type SessionState string

const (
	SessionLoggedOut      SessionState = "logged_out"
	SessionAuthenticating SessionState = "authenticating"
	SessionLoggedIn       SessionState = "logged_in"
)

// Credentials are the owning account's login material. Phone is the secondary
// identifier the platform may ask for instead of the username.
type Credentials struct {
	Username string
	Password string
	Phone    string
}

// SessionConfig tunes the step-up verification wait.
type SessionConfig struct {
	StepUpPollInterval time.Duration
	MaxStepUpWait      time.Duration
}

// SessionManager owns the authenticated connection for one monitoring run.
type SessionManager struct {
	platform Platform
	creds    Credentials
	cfg      SessionConfig
	logger   *slog.Logger

	mu    sync.Mutex
	state SessionState
}

func NewSessionManager(platform Platform, creds Credentials, cfg SessionConfig, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		platform: platform,
		creds:    creds,
		cfg:      cfg,
		logger:   logger.With("component", "session"),
		state:    SessionLoggedOut,
	}
}

// State returns the current session state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) setState(s SessionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Authenticate establishes a session. The primary identifier is submitted
// first; if the platform rejects it and a secondary identifier is configured,
// the submission is retried with it. A step-up challenge suspends
// authentication until the verification clears or the maximum wait elapses,
// in which case ErrAuthTimeout is returned.
func (m *SessionManager) Authenticate(ctx context.Context) error {
	m.setState(SessionAuthenticating)

	outcome, err := m.platform.Authenticate(ctx, m.creds.Username, m.creds.Password)
	if err != nil {
		if m.creds.Phone == "" {
			m.setState(SessionLoggedOut)
			return fmt.Errorf("primary login: %w", err)
		}
		m.logger.Warn("primary login rejected, retrying with secondary identifier", "error", err)
		outcome, err = m.platform.Authenticate(ctx, m.creds.Phone, m.creds.Password)
		if err != nil {
			m.setState(SessionLoggedOut)
			return fmt.Errorf("secondary login: %w", err)
		}
	}

	if outcome == domain.AuthNeedsStepUp {
		if err := m.waitForStepUp(ctx); err != nil {
			m.setState(SessionLoggedOut)
			return err
		}
	}

	m.setState(SessionLoggedIn)
	m.logger.Info("session established", "user", m.creds.Username)
	return nil
}

// waitForStepUp polls until the manual verification clears. The wait is a
// cooperative check-and-sleep cycle, never a busy loop.
func (m *SessionManager) waitForStepUp(ctx context.Context) error {
	deadline := time.Now().Add(m.cfg.MaxStepUpWait)

	for {
		cleared, err := m.platform.StepUpCleared(ctx)
		if err != nil {
			m.logger.Warn("step-up check failed", "error", err)
		} else if cleared {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrAuthTimeout
		}

		m.logger.Info("waiting for manual step-up verification", "poll_interval", m.cfg.StepUpPollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.StepUpPollInterval):
		}
	}
}

// Logout tears down the session. It is best-effort: a failed logout is
// logged and never propagated.
func (m *SessionManager) Logout(ctx context.Context) {
	if err := m.platform.Logout(ctx); err != nil {
		m.logger.Warn("logout not confirmed", "error", err)
	}
	m.setState(SessionLoggedOut)
}

// Reset performs a logout followed by a fresh authentication. Used by the
// account processor's bounded retry after a session error.
func (m *SessionManager) Reset(ctx context.Context) error {
	m.Logout(ctx)
	return m.Authenticate(ctx)
}
