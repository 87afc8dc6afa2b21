package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// WatermarkStore persists the newest reposted item id per monitored
// account.
type WatermarkStore struct {
	db *sqlx.DB
}

func NewWatermarkStore(db *sqlx.DB) *WatermarkStore {
	return &WatermarkStore{db: db}
}

// Get returns the stored item id for the account, or "" when the account
// has never been processed.
func (s *WatermarkStore) Get(ctx context.Context, account string) (string, error) {
	var itemID string
	query := `
		SELECT last_item_id
		FROM watermarks
		WHERE account = $1`

	err := s.db.GetContext(ctx, &itemID, query, account)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return itemID, nil
}

// Set stores the item id for the account, creating the row on first use.
func (s *WatermarkStore) Set(ctx context.Context, account, itemID string) error {
	query := `
		INSERT INTO watermarks (account, last_item_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account) DO UPDATE SET
			last_item_id = EXCLUDED.last_item_id,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query, account, itemID)
	return err
}
