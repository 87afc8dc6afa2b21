package monitor

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"repost_monitor/internal/domain"
)

// Platform is the remote content interface: one authenticated connection to
// the monitored platform. Implementations may try any number of strategies
// internally; callers only depend on this contract.
type Platform interface {
	// Authenticate submits one credential pair. A non-nil error means the
	// submission was rejected; AuthNeedsStepUp means the caller must wait for
	// a manual verification step to clear.
	Authenticate(ctx context.Context, identifier, password string) (domain.AuthOutcome, error)

	// StepUpCleared reports whether a pending manual verification has been
	// completed.
	StepUpCleared(ctx context.Context) (bool, error)

	// Logout tears down the session.
	Logout(ctx context.Context) error

	// ResolveAccount checks that a handle exists and is not suspended.
	// Returns domain.ErrAccountMissing when it is not usable.
	ResolveAccount(ctx context.Context, handle string) error

	// ListRecentItems returns up to limit items for the handle, newest first.
	ListRecentItems(ctx context.Context, handle string, limit int) ([]domain.ContentItem, error)

	// Repost performs the repost action with the annotation as the sole text
	// content of the repost.
	Repost(ctx context.Context, item domain.ContentItem, annotation string) error
}

// WatermarkStore persists, per account handle, the id of the newest item that
// was successfully reposted. Get returns an empty id for accounts that have
// never been seen; corrupt records degrade to absent, never to an error.
type WatermarkStore interface {
	Get(ctx context.Context, account string) (string, error)
	Set(ctx context.Context, account, itemID string) error
}

// ResultSink receives every processing result appended to a run's log.
type ResultSink interface {
	Publish(ctx context.Context, runID string, result domain.ProcessingResult) error
	Close() error
}
