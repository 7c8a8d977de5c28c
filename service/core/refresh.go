package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	e "labfolio/data/extensions"
	dm "labfolio/data/models"
)

const (
	DefaultRefreshLookbackYears = 2
	DefaultRefreshWorkers       = 2
)

type FactorCatalog interface {
	GetFactors(ctx context.Context) ([]*dm.Factor, error)
}

type FactorReturnWriter interface {
	ReplaceFactorReturns(ctx context.Context, factorId string, returns []*dm.FactorReturn) (int64, error)
}

// RefreshObserver counts refreshed factors by outcome
type RefreshObserver interface {
	ObserveRefresh(outcome string, rows int64)
}

type RefreshSettings struct {
	LookbackYears int
	Workers       int
}

type RefreshSummary struct {
	Start     time.Time
	End       time.Time
	Factors   int
	Succeeded int
	Failed    []string
	Rows      int64
}

// Refresher rebuilds stored factor returns from the price feed, one factor id per feed symbol
type Refresher struct {
	catalog  FactorCatalog
	writer   FactorReturnWriter
	feed     PriceFeed
	settings RefreshSettings
	log      zerolog.Logger
	observer RefreshObserver
	now      func() time.Time
}

func NewRefresher(catalog FactorCatalog, writer FactorReturnWriter, feed PriceFeed, settings RefreshSettings, logger zerolog.Logger, observer RefreshObserver) *Refresher {
	if settings.LookbackYears <= 0 {
		settings.LookbackYears = DefaultRefreshLookbackYears
	}
	if settings.Workers <= 0 {
		settings.Workers = DefaultRefreshWorkers
	}

	return &Refresher{
		catalog:  catalog,
		writer:   writer,
		feed:     feed,
		settings: settings,
		log:      logger.With().Str("component", "refresh").Logger(),
		observer: observer,
		now:      time.Now,
	}
}

// Run replaces the returns of every catalogued factor. A factor that fails is logged and skipped,
// only a catalog failure or cancellation fails the run.
func (r *Refresher) Run(ctx context.Context) (*RefreshSummary, error) {
	end := e.DateOnly(r.now())
	start := end.AddDate(-r.settings.LookbackYears, 0, 0)

	factors, err := r.catalog.GetFactors(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading factor catalog: %w", err)
	}

	r.log.Info().
		Int("factors", len(factors)).
		Str("start", e.FmtShort(start)).
		Str("end", e.FmtShort(end)).
		Int("workers", r.settings.Workers).
		Msg("refreshing factor returns")

	summary := &RefreshSummary{Start: start, End: end, Factors: len(factors)}
	var mu sync.Mutex

	jobs := make(chan string, len(factors))
	for _, f := range factors {
		jobs <- f.FactorId
	}
	close(jobs)

	// a failing factor never cancels its siblings, only the caller's context does
	g, gctx := errgroup.WithContext(ctx)
	for range min(r.settings.Workers, max(len(factors), 1)) {
		g.Go(func() error {
			for factorId := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}

				rows, err := r.refreshFactor(gctx, factorId, start, end)

				mu.Lock()
				if err != nil {
					summary.Failed = append(summary.Failed, factorId)
				} else {
					summary.Succeeded++
					summary.Rows += rows
				}
				mu.Unlock()

				if err != nil {
					r.log.Error().Err(err).Str("factor_id", factorId).Msg("error refreshing factor")
					r.observe("error", 0)
					continue
				}
				r.log.Info().Str("factor_id", factorId).Int64("rows", rows).Msg("factor refreshed")
				r.observe("ok", rows)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	r.log.Info().Int("succeeded", summary.Succeeded).Int("failed", len(summary.Failed)).Int64("rows", summary.Rows).Msg("factor refresh completed")
	return summary, nil
}

func (r *Refresher) refreshFactor(ctx context.Context, factorId string, start, end time.Time) (int64, error) {
	closes, err := r.feed.GetDailyCloses(ctx, factorId, start, end)
	if err != nil {
		return 0, err
	}

	returns := closesToReturns(factorId, closes)
	if len(returns) == 0 {
		return 0, fmt.Errorf("%w: no returns for %s", ErrDataUnavailable, factorId)
	}

	return r.writer.ReplaceFactorReturns(ctx, factorId, returns)
}

// closesToReturns turns consecutive closes of one series into simple returns, the first close has none
func closesToReturns(factorId string, closes []*dm.ClosingPrice) []*dm.FactorReturn {
	res := make([]*dm.FactorReturn, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1].Close
		if prev == 0 {
			continue
		}
		res = append(res, &dm.FactorReturn{
			FactorId:    factorId,
			Date:        e.DateOnly(closes[i].Date),
			ReturnValue: closes[i].Close/prev - 1,
		})
	}
	return res
}

func (r *Refresher) observe(outcome string, rows int64) {
	if r.observer != nil {
		r.observer.ObserveRefresh(outcome, rows)
	}
}
