package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/solana-scanner/internal/types"
)

// SavedWalletRepository handles curated wallet metadata
type SavedWalletRepository struct {
	db *PostgresDB
}

// NewSavedWalletRepository creates a new saved wallet repository
func NewSavedWalletRepository(db *PostgresDB) *SavedWalletRepository {
	return &SavedWalletRepository{db: db}
}

// GetByAddress returns the saved wallet for address, or nil when none exists
func (r *SavedWalletRepository) GetByAddress(ctx context.Context, address string) (*types.SavedWallet, error) {
	query := `
		SELECT address, name, description, tags, x_account, created_at, updated_at
		FROM saved_wallets
		WHERE address = $1
	`

	var wallet types.SavedWallet
	err := r.db.Pool().QueryRow(ctx, query, address).Scan(
		&wallet.Address,
		&wallet.Name,
		&wallet.Description,
		&wallet.Tags,
		&wallet.XAccount,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get saved wallet: %w", err)
	}

	return &wallet, nil
}

// Upsert creates or replaces a saved wallet, keeping the original created_at
func (r *SavedWalletRepository) Upsert(ctx context.Context, wallet *types.SavedWallet) error {
	if wallet.Tags == nil {
		wallet.Tags = []string{}
	}
	now := time.Now().UTC()
	wallet.UpdatedAt = now

	query := `
		INSERT INTO saved_wallets (address, name, description, tags, x_account, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (address) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			x_account = EXCLUDED.x_account,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		wallet.Address,
		wallet.Name,
		wallet.Description,
		wallet.Tags,
		wallet.XAccount,
		now,
	).Scan(&wallet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert saved wallet: %w", err)
	}

	return nil
}

// Delete removes a saved wallet. It reports whether a row was removed.
func (r *SavedWalletRepository) Delete(ctx context.Context, address string) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM saved_wallets WHERE address = $1`, address)
	if err != nil {
		return false, fmt.Errorf("failed to delete saved wallet: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
