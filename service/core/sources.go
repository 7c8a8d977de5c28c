package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	e "labfolio/data/extensions"
	dm "labfolio/data/models"
)

// DefaultNullThreshold is the largest missing fraction a column may have and survive cleaning
const DefaultNullThreshold = 0.1

// ReturnSource yields a cleaned return panel for a set of identifiers over [start, end].
// No usable data is an empty panel, not an error.
type ReturnSource interface {
	GetReturns(ctx context.Context, identifiers []string, start, end time.Time, nullThreshold float64) (*ReturnPanel, error)
}

// FactorReturnReader reads stored daily factor returns, an empty id set reads every factor
type FactorReturnReader interface {
	GetFactorReturns(ctx context.Context, factorIds []string, start, end time.Time) ([]*dm.FactorReturn, error)
}

// PriceFeed reads daily closing prices for one symbol
type PriceFeed interface {
	GetDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]*dm.ClosingPrice, error)
}

type SourceKind string

const (
	SourceInternal SourceKind = "internal"
	SourceExternal SourceKind = "external"
)

func ParseSourceKind(s string) (SourceKind, error) {
	switch kind := SourceKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case SourceInternal, SourceExternal:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown return source %q, expected %q or %q", s, SourceInternal, SourceExternal)
	}
}

type SourceDeps struct {
	Store  FactorReturnReader
	Feed   PriceFeed
	Logger zerolog.Logger
}

func NewReturnSource(kind SourceKind, deps SourceDeps) (ReturnSource, error) {
	switch kind {
	case SourceInternal:
		if deps.Store == nil {
			return nil, fmt.Errorf("%s return source needs a factor return store", kind)
		}
		return NewInternalStore(deps.Store, deps.Logger), nil
	case SourceExternal:
		if deps.Feed == nil {
			return nil, fmt.Errorf("%s return source needs a price feed", kind)
		}
		return NewExternalFeed(deps.Feed, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown return source %q", kind)
	}
}

// InternalStore serves returns already stored in simple return form
type InternalStore struct {
	store FactorReturnReader
	log   zerolog.Logger
}

func NewInternalStore(store FactorReturnReader, logger zerolog.Logger) *InternalStore {
	return &InternalStore{store: store, log: logger.With().Str("source", string(SourceInternal)).Logger()}
}

func (s *InternalStore) GetReturns(ctx context.Context, identifiers []string, start, end time.Time, nullThreshold float64) (*ReturnPanel, error) {
	rows, err := s.store.GetFactorReturns(ctx, identifiers, e.DateOnly(start), e.DateOnly(end))
	if err != nil {
		return nil, upstreamError(err)
	}

	observations := make([]observation, 0, len(rows))
	for _, row := range rows {
		observations = append(observations, observation{id: row.FactorId, date: row.Date, value: row.ReturnValue})
	}

	panel := pivot(observations, identifiers).clean(nullThreshold)
	s.log.Debug().
		Int("rows", len(rows)).
		Strs("kept", panel.Columns()).
		Strs("dropped", dropped(identifiers, panel)).
		Int("dates", panel.Len()).
		Msg("factor returns loaded")

	return panel, nil
}

// ExternalFeed derives simple returns from daily closing prices
type ExternalFeed struct {
	feed PriceFeed
	log  zerolog.Logger
}

func NewExternalFeed(feed PriceFeed, logger zerolog.Logger) *ExternalFeed {
	return &ExternalFeed{feed: feed, log: logger.With().Str("source", string(SourceExternal)).Logger()}
}

func (s *ExternalFeed) GetReturns(ctx context.Context, identifiers []string, start, end time.Time, nullThreshold float64) (*ReturnPanel, error) {
	symbols := e.Unique(identifiers)

	var (
		observations []observation
		unknown      []string
	)
	for _, symbol := range symbols {
		closes, err := s.feed.GetDailyCloses(ctx, symbol, e.DateOnly(start), e.DateOnly(end))
		if errors.Is(err, dm.ErrUnknownSymbol) {
			unknown = append(unknown, symbol)
			continue
		}
		if err != nil {
			return nil, upstreamError(err)
		}

		for _, c := range closes {
			observations = append(observations, observation{id: symbol, date: c.Date, value: c.Close})
		}
	}

	panel := pivot(observations, symbols).simpleReturns().clean(nullThreshold)
	s.log.Debug().
		Int("prices", len(observations)).
		Strs("kept", panel.Columns()).
		Strs("unknown", unknown).
		Strs("dropped", dropped(symbols, panel)).
		Int("dates", panel.Len()).
		Msg("asset returns loaded")

	return panel, nil
}

// dropped lists the requested identifiers that have no column in the panel
func dropped(identifiers []string, panel *ReturnPanel) []string {
	kept := panel.Columns()
	var res []string
	for _, id := range identifiers {
		if !slices.Contains(kept, id) {
			res = append(res, id)
		}
	}
	return res
}
