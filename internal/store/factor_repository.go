package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// FactorRepository implements contracts.FactorCatalog
type FactorRepository struct {
	pool *pgxpool.Pool
}

// NewFactorRepository creates a new factor repository
func NewFactorRepository(pool *pgxpool.Pool) *FactorRepository {
	return &FactorRepository{pool: pool}
}

const factorColumns = `factor_id, factor_name, category, description, created_at, updated_at`

// List returns every factor in the library ordered by category then id
func (r *FactorRepository) List(ctx context.Context) ([]contracts.Factor, error) {
	query := `SELECT ` + factorColumns + ` FROM factor.factors ORDER BY category, factor_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query factors: %w", err)
	}
	defer rows.Close()

	out := []contracts.Factor{}
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// Get returns one factor or contracts.ErrNotFound
func (r *FactorRepository) Get(ctx context.Context, factorID string) (*contracts.Factor, error) {
	query := `SELECT ` + factorColumns + ` FROM factor.factors WHERE factor_id = $1`

	f, err := scanFactor(r.pool.QueryRow(ctx, query, factorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("factor %s: %w", factorID, contracts.ErrNotFound)
	}
	return f, err
}

// Save inserts or updates a factor definition
func (r *FactorRepository) Save(ctx context.Context, f contracts.Factor) error {
	if !f.Category.Valid() {
		return fmt.Errorf("factor %s: unknown category %q", f.ID, f.Category)
	}

	query := `
		INSERT INTO factor.factors (factor_id, factor_name, category, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (factor_id) DO UPDATE SET
			factor_name = EXCLUDED.factor_name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, f.ID, f.Name, string(f.Category), f.Description); err != nil {
		return fmt.Errorf("save factor %s: %w", f.ID, err)
	}
	return nil
}

func scanFactor(row pgx.Row) (*contracts.Factor, error) {
	var (
		f        contracts.Factor
		category string
	)
	if err := row.Scan(&f.ID, &f.Name, &category, &f.Description, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan factor: %w", err)
	}
	f.Category = contracts.FactorCategory(category)
	return &f, nil
}
