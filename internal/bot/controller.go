package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"repost_monitor/internal/domain"
	"repost_monitor/internal/monitor"
	"repost_monitor/internal/scheduler"
)

// latestResultsWindow is how many of the most recent results a status
// snapshot carries.
const latestResultsWindow = 10

// Metrics receives pass and per-account outcomes. Satisfied by the
// prometheus collector; nil disables recording.
type Metrics interface {
	RecordPass(stats domain.PassStats)
	RecordResult(result domain.ProcessingResult)
}

// Controller owns one monitoring run: a session under one set of
// credentials, a fixed list of monitored handles and the result log
// accumulated over the run's passes.
type Controller struct {
	id      string
	owner   string
	handles []string
	tag     string

	session *monitor.SessionManager
	sched   *scheduler.Scheduler
	sink    monitor.ResultSink
	metrics Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	state   domain.RunState
	results []domain.ProcessingResult

	stopOnce sync.Once
	stop     chan struct{}
}

func New(
	id, owner string,
	handles []string,
	tag string,
	session *monitor.SessionManager,
	sched *scheduler.Scheduler,
	sink monitor.ResultSink,
	metrics Metrics,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		id:      id,
		owner:   owner,
		handles: handles,
		tag:     tag,
		session: session,
		sched:   sched,
		sink:    sink,
		metrics: metrics,
		logger:  logger.With("component", "controller", "run_id", id),
		state:   domain.RunStateIdle,
		stop:    make(chan struct{}),
	}
}

func (c *Controller) ID() string        { return c.id }
func (c *Controller) Owner() string     { return c.owner }
func (c *Controller) Handles() []string { return c.handles }

// Start authenticates and runs the initial pass over every monitored
// handle. With continuous set, it then keeps sweeping on the configured
// interval in the background until Stop is called.
func (c *Controller) Start(ctx context.Context, continuous bool) error {
	if err := c.session.Authenticate(ctx); err != nil {
		c.logger.Error("authentication failed", "error", err)
		c.appendAll(ctx, []domain.ProcessingResult{{
			Account:   c.owner,
			Status:    domain.StatusFailed,
			Message:   "authentication failed: " + err.Error(),
			Timestamp: time.Now().UTC(),
		}})
		c.setState(domain.RunStateStopped)
		return err
	}

	// Stop can land while authentication is blocked on a step-up wait. A
	// stopped run must not repost anything, so the refused transition ends
	// the start here; the logout Stop skipped (it saw an idle run) happens
	// now.
	if !c.setState(domain.RunStateLoggedIn) {
		c.session.Logout(ctx)
		return nil
	}

	results, stats := c.sched.InitialPass(ctx, c.handles, c.tag)
	c.appendAll(ctx, results)
	c.recordPass(stats)

	if !continuous {
		return nil
	}

	if !c.setState(domain.RunStateMonitoring) {
		return nil
	}
	go c.sched.Monitor(ctx, c.handles, c.tag, c.stop, func(results []domain.ProcessingResult, stats domain.PassStats) {
		c.appendAll(ctx, results)
		c.recordPass(stats)
	})
	return nil
}

// Stop signals the monitoring loop and logs the session out. An in-flight
// pass finishes first; the logout is best-effort. Safe to call more than
// once.
func (c *Controller) Stop(ctx context.Context) {
	c.stopOnce.Do(func() {
		close(c.stop)

		c.mu.Lock()
		loggedIn := c.state == domain.RunStateLoggedIn || c.state == domain.RunStateMonitoring
		c.state = domain.RunStateStopped
		c.mu.Unlock()

		if loggedIn {
			c.session.Logout(ctx)
		}
		c.logger.Info("run stopped")
	})
}

// Status returns a snapshot of the run: its state, how many results have
// accumulated and the most recent of them.
func (c *Controller) Status() domain.RunStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	latest := c.results
	if len(latest) > latestResultsWindow {
		latest = latest[len(latest)-latestResultsWindow:]
	}
	out := make([]domain.ProcessingResult, len(latest))
	copy(out, latest)

	return domain.RunStatus{
		State:         c.state,
		ResultCount:   len(c.results),
		LatestResults: out,
	}
}

// Info identifies the run for registry listings.
func (c *Controller) Info() domain.RunInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.RunInfo{
		RunID:            c.id,
		Account:          c.owner,
		MonitoredHandles: c.handles,
		State:            c.state,
	}
}

// setState transitions the run. Stopped is terminal: once Stop has set it,
// no in-flight Start may overwrite it, and the refusal tells the caller to
// abandon the rest of the start sequence.
func (c *Controller) setState(s domain.RunState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.RunStateStopped {
		return false
	}
	c.state = s
	return true
}

func (c *Controller) appendAll(ctx context.Context, results []domain.ProcessingResult) {
	c.mu.Lock()
	c.results = append(c.results, results...)
	c.mu.Unlock()

	for _, res := range results {
		if c.sink != nil {
			if err := c.sink.Publish(ctx, c.id, res); err != nil {
				c.logger.Error("failed to publish result", "account", res.Account, "error", err)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordResult(res)
		}
	}
}

func (c *Controller) recordPass(stats domain.PassStats) {
	if c.metrics != nil {
		c.metrics.RecordPass(stats)
	}
}
