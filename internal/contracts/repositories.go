package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: repository interface definitions live here only

// ReturnStore is the read side of the archived factor return store
type ReturnStore interface {
	GetReturns(ctx context.Context, factorID string, start, end time.Time) ([]ReturnRow, error)
}

// ReturnWriter is the append-only write side used by the refresh job
type ReturnWriter interface {
	UpsertBatch(ctx context.Context, rows []ReturnRow) (int64, error)
	LatestDate(ctx context.Context, factorID string) (time.Time, bool, error)
}

// FactorCatalog exposes the factor library
type FactorCatalog interface {
	List(ctx context.Context) ([]Factor, error)
	Get(ctx context.Context, factorID string) (*Factor, error)
}

// PortfolioRegistry resolves portfolio metadata
type PortfolioRegistry interface {
	Get(ctx context.Context, portfolioID string) (*Portfolio, error)
}

// PortfolioLister lists the portfolios visible to a user
type PortfolioLister interface {
	List(ctx context.Context, userID string) ([]Portfolio, error)
}
