package domain

import "errors"

// AuthOutcome is the result of submitting credentials to the platform.
type AuthOutcome string

const (
	// AuthOK means the session is established.
	AuthOK AuthOutcome = "ok"
	// AuthNeedsStepUp means the platform demands a manually completed
	// verification step before the session becomes usable.
	AuthNeedsStepUp AuthOutcome = "needs_step_up"
)

var (
	// ErrAccountMissing is reported by the platform when a monitored handle
	// does not exist or is suspended.
	ErrAccountMissing = errors.New("account missing or suspended")

	// ErrSessionInvalid is reported by the platform when the current session
	// is no longer accepted and a re-authentication is required.
	ErrSessionInvalid = errors.New("session invalid")
)
