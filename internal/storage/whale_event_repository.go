package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/solana-scanner/internal/types"
)

// WhaleEventRepository persists parsed whale activity events
type WhaleEventRepository struct {
	db *PostgresDB
}

// NewWhaleEventRepository creates a new whale event repository
func NewWhaleEventRepository(db *PostgresDB) *WhaleEventRepository {
	return &WhaleEventRepository{db: db}
}

const whaleEventColumns = `id::text, token, buy_amount, market_cap_at_buy, token_contract_address,
	whale_label, impact, occurred_at, COALESCE(source_message_ref, '')`

// Insert stores an event. Event IDs are derived from the source message, so
// re-ingesting the same alert is a no-op; inserted reports whether a row was added.
func (r *WhaleEventRepository) Insert(ctx context.Context, event *types.WhaleActivityEvent) (bool, error) {
	query := `
		INSERT INTO whale_events (id, token, buy_amount, market_cap_at_buy, token_contract_address,
			whale_label, impact, occurred_at, source_message_ref)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		event.ID,
		event.Token,
		event.BuyAmount,
		event.MarketCapAtBuy,
		event.TokenContractAddress,
		event.WhaleLabel,
		string(event.Impact),
		event.OccurredAt,
		event.SourceMessageRef,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert whale event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByID returns one event, or nil when it does not exist
func (r *WhaleEventRepository) GetByID(ctx context.Context, id string) (*types.WhaleActivityEvent, error) {
	query := `SELECT ` + whaleEventColumns + ` FROM whale_events WHERE id = $1::uuid`

	event, err := scanWhaleEvent(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get whale event: %w", err)
	}
	return event, nil
}

// Recent returns the newest events first
func (r *WhaleEventRepository) Recent(ctx context.Context, limit int) ([]*types.WhaleActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + whaleEventColumns + `
		FROM whale_events
		ORDER BY occurred_at DESC, id
		LIMIT $1`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query whale events: %w", err)
	}
	defer rows.Close()

	events := make([]*types.WhaleActivityEvent, 0, limit)
	for rows.Next() {
		event, err := scanWhaleEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan whale event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating whale events: %w", err)
	}

	return events, nil
}

func scanWhaleEvent(row pgx.Row) (*types.WhaleActivityEvent, error) {
	var (
		event  types.WhaleActivityEvent
		impact string
	)
	err := row.Scan(
		&event.ID,
		&event.Token,
		&event.BuyAmount,
		&event.MarketCapAtBuy,
		&event.TokenContractAddress,
		&event.WhaleLabel,
		&impact,
		&event.OccurredAt,
		&event.SourceMessageRef,
	)
	if err != nil {
		return nil, err
	}
	event.Impact = types.Impact(impact)
	event.OccurredAt = event.OccurredAt.UTC()
	return &event, nil
}
