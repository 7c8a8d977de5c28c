package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	m "labfolio/data/models"
	q "labfolio/data/queries"
)

// GetPortfolioByID returns nil, nil when the portfolio does not exist
func (pg *Postgres) GetPortfolioByID(ctx context.Context, id uuid.UUID) (*m.Portfolio, error) {
	res, err := Query[m.Portfolio](ctx, pg, q.Get(q.QueryHelper.Select.PortfolioById), pgx.NamedArgs{"portfolio_id": id})
	if err != nil {
		return nil, fmt.Errorf("unable to get portfolio by id (%s): %w", id, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0], nil
}
