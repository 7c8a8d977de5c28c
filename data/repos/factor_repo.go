package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	m "labfolio/data/models"
	q "labfolio/data/queries"
)

func (pg *Postgres) GetFactors(ctx context.Context) ([]*m.Factor, error) {
	res, err := Query[m.Factor](ctx, pg, q.Get(q.QueryHelper.Select.AllFactors), pgx.NamedArgs{})
	if err != nil {
		return nil, fmt.Errorf("unable to get factors: %w", err)
	}
	return res, nil
}

// GetFactorReturns reads stored daily returns for the given factors between start and end inclusive.
// An empty factor list reads every factor in range.
func (pg *Postgres) GetFactorReturns(ctx context.Context, factorIds []string, start, end time.Time) ([]*m.FactorReturn, error) {
	if factorIds == nil {
		factorIds = []string{}
	}

	args := pgx.NamedArgs{
		"factor_ids": factorIds,
		"start_date": start,
		"end_date":   end,
	}

	res, err := Query[m.FactorReturn](ctx, pg, q.Get(q.QueryHelper.Select.FactorReturnsInRange), args)
	if err != nil {
		return nil, fmt.Errorf("unable to query factor returns (%v): %w", factorIds, err)
	}
	return res, nil
}

func (pg *Postgres) ReplaceFactorReturnsTx(ctx context.Context, factorId string, returns []*m.FactorReturn, tx pgx.Tx) (int64, error) {
	if _, err := tx.Exec(ctx, q.Get(q.QueryHelper.Delete.FactorReturnsByFactorId), pgx.NamedArgs{"factor_id": factorId}); err != nil {
		return 0, fmt.Errorf("error clearing returns for factor %s: %w", factorId, err)
	}

	rows := make([][]any, len(returns))
	for i, r := range returns {
		rows[i] = []any{factorId, r.Date, r.ReturnValue}
	}

	columns := []string{"factor_id", "date", "return_value"}
	ct, err := tx.CopyFrom(ctx, pgx.Identifier{"factor", "returns"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("error inserting returns for factor %s: %w", factorId, err)
	}

	return ct, nil
}

// ReplaceFactorReturns swaps every stored return of a factor for the given set in one transaction
func (pg *Postgres) ReplaceFactorReturns(ctx context.Context, factorId string, returns []*m.FactorReturn) (int64, error) {
	tx, err := pg.GetTransaction(ctx)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := pg.ReplaceFactorReturnsTx(ctx, factorId, returns, tx)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("error committing returns for factor %s: %w", factorId, err)
	}

	return ct, nil
}
