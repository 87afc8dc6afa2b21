package scheduler

import (
	"context"
	"log/slog"
	"time"

	"repost_monitor/internal/domain"
)

// Processor runs one account through a single monitoring pass.
type Processor interface {
	ProcessOnce(ctx context.Context, account, tag string, limit int) domain.ProcessingResult
}

type Config struct {
	Interval          time.Duration
	InitialFetchLimit int
	MonitorFetchLimit int
}

// Scheduler drives full passes over a fixed set of monitored accounts,
// once on startup and then on a fixed interval until asked to stop.
type Scheduler struct {
	processor Processor
	cfg       Config
	logger    *slog.Logger
}

func New(processor Processor, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		processor: processor,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
	}
}

// InitialPass sweeps every account once with the small startup fetch window.
func (s *Scheduler) InitialPass(ctx context.Context, accounts []string, tag string) ([]domain.ProcessingResult, domain.PassStats) {
	return s.runPass(ctx, accounts, tag, s.cfg.InitialFetchLimit)
}

// Monitor sweeps the accounts on every tick until the stop channel closes or
// the context is cancelled. A sweep already in flight always completes; the
// stop signal is only observed between passes. Each completed pass is handed
// to onPass.
func (s *Scheduler) Monitor(ctx context.Context, accounts []string, tag string, stop <-chan struct{}, onPass func([]domain.ProcessingResult, domain.PassStats)) {
	s.logger.Info("monitoring started", "accounts", len(accounts), "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.logger.Info("monitoring stopped")
			return
		case <-ctx.Done():
			s.logger.Info("monitoring cancelled", "error", ctx.Err())
			return
		case <-ticker.C:
		}

		// A stop or cancellation requested during the wait wins over a tick
		// that raced it.
		select {
		case <-stop:
			s.logger.Info("monitoring stopped")
			return
		case <-ctx.Done():
			s.logger.Info("monitoring cancelled", "error", ctx.Err())
			return
		default:
		}

		results, stats := s.runPass(ctx, accounts, tag, s.cfg.MonitorFetchLimit)
		if onPass != nil {
			onPass(results, stats)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, accounts []string, tag string, limit int) ([]domain.ProcessingResult, domain.PassStats) {
	start := time.Now()
	results := make([]domain.ProcessingResult, 0, len(accounts))
	stats := domain.PassStats{}

	for _, account := range accounts {
		res := s.processor.ProcessOnce(ctx, account, tag, limit)
		results = append(results, res)

		stats.Processed++
		switch res.Status {
		case domain.StatusSuccess, domain.StatusNoNewItems:
			stats.Reposted += res.Reposted
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusAccountMissing:
			stats.Missing++
		}
	}

	stats.Duration = time.Since(start)
	s.logger.Info("pass completed",
		"processed", stats.Processed,
		"reposted", stats.Reposted,
		"failed", stats.Failed,
		"missing", stats.Missing,
		"duration", stats.Duration)

	return results, stats
}
