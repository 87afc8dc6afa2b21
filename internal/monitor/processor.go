package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"repost_monitor/internal/domain"
)

// AccountProcessor runs one account through a single pass: fetch recent
// items, filter them against the account's watermark, repost what is new and
// advance the watermark to the newest successfully reposted item.
type AccountProcessor struct {
	platform   Platform
	session    *SessionManager
	watermarks WatermarkStore
	locks      *AccountLocks
	logger     *slog.Logger
}

func NewAccountProcessor(
	platform Platform,
	session *SessionManager,
	watermarks WatermarkStore,
	locks *AccountLocks,
	logger *slog.Logger,
) *AccountProcessor {
	return &AccountProcessor{
		platform:   platform,
		session:    session,
		watermarks: watermarks,
		locks:      locks,
		logger:     logger.With("component", "processor"),
	}
}

// ProcessOnce processes a single account. A missing account is terminal for
// the pass. Any other interaction error triggers exactly one
// re-authentication cycle and one retry of the whole pass; a second failure
// yields a Failed result. Never returns an error: every outcome is a result.
func (p *AccountProcessor) ProcessOnce(ctx context.Context, account, tag string, limit int) domain.ProcessingResult {
	result, err := p.pass(ctx, account, tag, limit)
	if err == nil {
		return result
	}
	if errors.Is(err, domain.ErrAccountMissing) {
		return p.missing(account)
	}

	p.logger.Warn("account pass failed, re-authenticating for one retry",
		"account", account, "error", err)
	if rerr := p.session.Reset(ctx); rerr != nil {
		return p.result(account, domain.StatusFailed,
			fmt.Sprintf("re-authentication failed: %v", rerr), 0)
	}

	result, err = p.pass(ctx, account, tag, limit)
	if err != nil {
		if errors.Is(err, domain.ErrAccountMissing) {
			return p.missing(account)
		}
		return p.result(account, domain.StatusFailed, err.Error(), 0)
	}
	return result
}

// pass is one attempt at processing the account. It returns an error only
// for interaction failures that warrant the bounded retry; repost failures
// on individual items are handled inside the pass.
func (p *AccountProcessor) pass(ctx context.Context, account, tag string, limit int) (domain.ProcessingResult, error) {
	if err := p.platform.ResolveAccount(ctx, account); err != nil {
		return domain.ProcessingResult{}, err
	}

	items, err := p.platform.ListRecentItems(ctx, account, limit)
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("list recent items: %w", err)
	}

	// The watermark entry stays locked for the whole read-decide-write span
	// so no concurrent run can advance it mid-decision.
	unlock := p.locks.Lock(account)
	defer unlock()

	watermark, err := p.watermarks.Get(ctx, account)
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("read watermark: %w", err)
	}

	// Items are newest first; everything at or past the watermark has
	// already been processed.
	var fresh []domain.ContentItem
	for _, item := range items {
		if watermark != "" && item.ID == watermark {
			break
		}
		fresh = append(fresh, item)
	}

	if len(fresh) == 0 {
		p.logger.Debug("no new items", "account", account, "watermark", watermark)
		return p.result(account, domain.StatusNoNewItems, "no new items", 0), nil
	}

	var candidate string
	reposted := 0
	for _, item := range fresh {
		if err := p.platform.Repost(ctx, item, tag); err != nil {
			p.logger.Warn("repost failed", "account", account, "item_id", item.ID, "error", err)
			continue
		}
		if candidate == "" {
			// First success in a newest-first scan is the newest item
			// actually reposted.
			candidate = item.ID
		}
		reposted++
		p.logger.Info("reposted item", "account", account, "item_id", item.ID)
	}

	if reposted == 0 {
		return p.result(account, domain.StatusFailed,
			fmt.Sprintf("all %d repost attempts failed", len(fresh)), 0), nil
	}

	if err := p.watermarks.Set(ctx, account, candidate); err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("advance watermark: %w", err)
	}

	return p.result(account, domain.StatusSuccess,
		fmt.Sprintf("reposted %d new item(s)", reposted), reposted), nil
}

func (p *AccountProcessor) missing(account string) domain.ProcessingResult {
	return p.result(account, domain.StatusAccountMissing,
		"account does not exist or is suspended", 0)
}

func (p *AccountProcessor) result(account string, status domain.ResultStatus, msg string, reposted int) domain.ProcessingResult {
	return domain.ProcessingResult{
		Account:   account,
		Status:    status,
		Message:   msg,
		Reposted:  reposted,
		Timestamp: time.Now().UTC(),
	}
}
