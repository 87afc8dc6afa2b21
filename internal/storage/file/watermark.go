// Package file provides a single-file watermark store for deployments
// without a database.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// WatermarkStore keeps one "account: item id" line per monitored account
// in a plain text file. Reads load the whole file; writes rewrite it
// atomically through a temp file rename.
type WatermarkStore struct {
	mu   sync.Mutex
	path string
}

func NewWatermarkStore(path string) (*WatermarkStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &WatermarkStore{path: path}, nil
}

// Get returns the stored item id for the account, or "" when the account
// has no entry yet.
func (s *WatermarkStore) Get(_ context.Context, account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	return entries[account], nil
}

// Set stores the item id for the account and rewrites the file.
func (s *WatermarkStore) Set(_ context.Context, account, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries[account] = itemID
	return s.save(entries)
}

func (s *WatermarkStore) load() (map[string]string, error) {
	entries := make(map[string]string)

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open state file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		account, itemID, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			// Malformed lines are dropped on the next save.
			continue
		}
		account = strings.TrimSpace(account)
		itemID = strings.TrimSpace(itemID)
		if account == "" || itemID == "" {
			continue
		}
		entries[account] = itemID
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return entries, nil
}

func (s *WatermarkStore) save(entries map[string]string) error {
	accounts := make([]string, 0, len(entries))
	for account := range entries {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	var b strings.Builder
	for _, account := range accounts {
		fmt.Fprintf(&b, "%s: %s\n", account, entries[account])
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
