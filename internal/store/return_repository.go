package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// ReturnRepository implements contracts.ReturnStore and contracts.ReturnWriter
// ⭐ SSOT: factor.returns is only read and written here
type ReturnRepository struct {
	pool *pgxpool.Pool
}

// NewReturnRepository creates a new return repository
func NewReturnRepository(pool *pgxpool.Pool) *ReturnRepository {
	return &ReturnRepository{pool: pool}
}

// GetReturns retrieves the stored rows for a factor within [start, end].
// No rows is an empty slice, not an error.
func (r *ReturnRepository) GetReturns(ctx context.Context, factorID string, start, end time.Time) ([]contracts.ReturnRow, error) {
	query := `
		SELECT factor_id, date, return_value::text
		FROM factor.returns
		WHERE factor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, factorID, contracts.NormalizeDate(start), contracts.NormalizeDate(end))
	if err != nil {
		return nil, fmt.Errorf("query returns for %s: %w", factorID, err)
	}
	defer rows.Close()

	out := []contracts.ReturnRow{}
	for rows.Next() {
		var (
			row contracts.ReturnRow
			raw string
		)
		if err := rows.Scan(&row.FactorID, &row.Date, &raw); err != nil {
			return nil, fmt.Errorf("scan return row: %w", err)
		}
		if row.Value, err = parseReturn(raw); err != nil {
			return nil, fmt.Errorf("%s on %s: %w", factorID, row.Date.Format(contracts.DateLayout), err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertBatch appends rows, leaving existing (factor_id, date) rows untouched.
// Returns the number of rows actually inserted.
func (r *ReturnRepository) UpsertBatch(ctx context.Context, rows []contracts.ReturnRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO factor.returns (factor_id, date, return_value)
		VALUES ($1, $2, $3::text::numeric)
		ON CONFLICT (factor_id, date) DO NOTHING
	`

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, row.FactorID, contracts.NormalizeDate(row.Date), row.Value.StringFixed(contracts.ReturnScale))
	}

	results := tx.SendBatch(ctx, batch)
	var inserted int64
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("insert return row: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return inserted, nil
}

// LatestDate returns the most recent stored date for a factor
func (r *ReturnRepository) LatestDate(ctx context.Context, factorID string) (time.Time, bool, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(date) FROM factor.returns WHERE factor_id = $1`, factorID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest return date for %s: %w", factorID, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

func parseReturn(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse return value %q: %w", raw, err)
	}
	return d.Round(contracts.ReturnScale), nil
}
