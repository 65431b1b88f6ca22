package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pifses/mlpipeline/internal/analytics"
)

// Querier is the subset of pgxpool.Pool used by Postgres
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// recentSalesQuery selects the latest $3 days and returns them oldest first
const recentSalesQuery = `SELECT units FROM (
	SELECT sale_date, units FROM daily_sales
	WHERE store_id = $1 AND product_id = $2
	ORDER BY sale_date DESC
	LIMIT $3
) recent ORDER BY sale_date ASC`

// Postgres reads daily unit sales from the daily_sales table
type Postgres struct {
	db Querier
}

// NewPostgres returns a source backed by db
func NewPostgres(db Querier) *Postgres {
	return &Postgres{db: db}
}

// NewPool connects a pgx pool and verifies it with a ping
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// Series implements Source
func (p *Postgres) Series(ctx context.Context, storeID, productID string, days int) (analytics.Series, error) {
	if err := validateDays(days); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, recentSalesQuery, storeID, productID, days)
	if err != nil {
		return nil, fmt.Errorf("query daily_sales: %w", err)
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("scan daily_sales: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: store %s product %s", ErrNotFound, storeID, productID)
	}

	return analytics.Series(values), nil
}
