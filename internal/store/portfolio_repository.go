package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/labfolio/backend/internal/contracts"
)

// PortfolioRepository implements contracts.PortfolioRegistry and contracts.PortfolioLister
type PortfolioRepository struct {
	pool   *pgxpool.Pool
	demoID string
}

// NewPortfolioRepository creates a new portfolio repository.
// demoID, when set, is listed for every user.
func NewPortfolioRepository(pool *pgxpool.Pool, demoID string) *PortfolioRepository {
	return &PortfolioRepository{pool: pool, demoID: demoID}
}

// Get resolves a portfolio's metadata and holdings file address
func (r *PortfolioRepository) Get(ctx context.Context, portfolioID string) (*contracts.Portfolio, error) {
	id, err := uuid.Parse(portfolioID)
	if err != nil {
		return nil, fmt.Errorf("portfolio id %q is not a UUID: %w", portfolioID, contracts.ErrNotFound)
	}

	query := `
		SELECT portfolio_id::text, user_id, portfolio_name, portfolio_address, created_at
		FROM user_management.portfolios
		WHERE portfolio_id = $1
	`

	var p contracts.Portfolio
	err = r.pool.QueryRow(ctx, query, id.String()).Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio %s: %w", portfolioID, err)
	}
	return &p, nil
}

// List returns the user's portfolios plus the demo portfolio, oldest first
func (r *PortfolioRepository) List(ctx context.Context, userID string) ([]contracts.Portfolio, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required: %w", contracts.ErrInvalidRequest)
	}

	query := `
		SELECT portfolio_id::text, user_id, portfolio_name, portfolio_address, created_at
		FROM user_management.portfolios
		WHERE user_id = $1 OR portfolio_id::text = $2
		ORDER BY created_at, portfolio_id
	`

	rows, err := r.pool.Query(ctx, query, userID, demoKey(r.demoID))
	if err != nil {
		return nil, fmt.Errorf("query portfolios of %s: %w", userID, err)
	}
	defer rows.Close()

	portfolios := make([]contracts.Portfolio, 0)
	for rows.Next() {
		var p contracts.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Address, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolios: %w", err)
	}
	return portfolios, nil
}

// demoKey normalizes the demo id to the uuid text form Postgres prints
func demoKey(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return ""
}
