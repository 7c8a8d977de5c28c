package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dm "labfolio/data/models"
)

type recordingObserver struct {
	mu       sync.Mutex
	stages   []string
	outcomes []string
}

func (o *recordingObserver) ObserveStage(stage string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *recordingObserver) ObserveOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

var analysisDate = time.Date(2024, time.June, 14, 16, 30, 0, 0, time.UTC)

func newTestAnalyzer(factors, assets ReturnSource, observer StageObserver) *Analyzer {
	a := NewAnalyzer(factors, assets, AnalyzerSettings{NullThreshold: DefaultNullThreshold}, zerolog.Nop(), observer)
	a.now = func() time.Time { return analysisDate }
	return a
}

func TestAnalyze_Succeeds(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0.004, 42)
	factorSource := &fakeSource{panel: factors}
	assetSource := &fakeSource{panel: assets}
	observer := &recordingObserver{}

	report, err := newTestAnalyzer(factorSource, assetSource, observer).
		Analyze(context.Background(), []string{"MKT", "SMB"}, holdings("AAA", "BBB", "CCC", "AAA"))
	require.NoError(t, err)

	assert.Equal(t, []string{"MKT", "SMB"}, factorSource.identifiers)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, assetSource.identifiers, "tickers are fetched once, in holding order")

	end := time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, end, factorSource.end)
	assert.Equal(t, end.AddDate(0, 0, -DefaultLookbackDays), factorSource.start)
	assert.Equal(t, factorSource.start, assetSource.start)

	assert.Equal(t, 2, report.Statistics.NoFactors)
	assert.Equal(t, 3, report.Statistics.NoAssets)
	assert.Equal(t, 250, report.Statistics.NoObservations)
	assert.Len(t, report.Params, 3)
	assert.Len(t, report.RiskPremia, 2)
	assert.Equal(t, "2024-06-14T16:30:00Z", report.Timestamp)

	assert.Equal(t, []string{"validation", "fetch_factors", "fetch_assets", "alignment", "fit", "package"}, observer.stages)
	assert.Equal(t, []string{"ok"}, observer.outcomes)
}

func TestAnalyze_StageAttribution(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0.004, 42)
	later := mustPanel(t, dateRange(day(1).AddDate(1, 0, 0), 10), []string{"AAA", "BBB", "CCC"}, [][]float64{constant(10, 0.01), constant(10, 0.02), constant(10, 0.03)})

	mkt, _ := factors.Series("MKT")
	doubled := make([]float64, len(mkt))
	for i, v := range mkt {
		doubled[i] = 2 * v
	}
	collinear := mustPanel(t, factors.Dates(), []string{"MKT", "SMB"}, [][]float64{mkt, doubled})

	upstream := upstreamError(errors.New("connection refused"))

	cases := []struct {
		name    string
		factors []string
		factor  *fakeSource
		asset   *fakeSource
		stage   Stage
		kind    error
		fetched bool
	}{
		{"validation", []string{"MKT", "MKT"}, &fakeSource{panel: factors}, &fakeSource{panel: assets}, StageValidation, ErrValidation, false},
		{"reserved factor id", []string{"alpha", "SMB"}, &fakeSource{panel: factors}, &fakeSource{panel: assets}, StageValidation, ErrValidation, false},
		{"factor upstream", []string{"MKT", "SMB"}, &fakeSource{err: upstream}, &fakeSource{panel: assets}, StageFetchFactors, ErrUpstreamUnavailable, true},
		{"no factor data", []string{"MKT", "SMB"}, &fakeSource{panel: emptyPanel(nil)}, &fakeSource{panel: assets}, StageFetchFactors, ErrDataUnavailable, true},
		{"asset upstream", []string{"MKT", "SMB"}, &fakeSource{panel: factors}, &fakeSource{err: upstream}, StageFetchAssets, ErrUpstreamUnavailable, true},
		{"no asset data", []string{"MKT", "SMB"}, &fakeSource{panel: factors}, &fakeSource{panel: emptyPanel([]string{"AAA"})}, StageFetchAssets, ErrDataUnavailable, true},
		{"no shared dates", []string{"MKT", "SMB"}, &fakeSource{panel: factors}, &fakeSource{panel: later}, StageAlignment, ErrDataUnavailable, true},
		{"collinear factors", []string{"MKT", "SMB"}, &fakeSource{panel: collinear}, &fakeSource{panel: assets}, StageFit, ErrNumerical, true},
	}

	kinds := []error{ErrValidation, ErrDataUnavailable, ErrNumerical, ErrUpstreamUnavailable}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			observer := &recordingObserver{}
			report, err := newTestAnalyzer(tc.factor, tc.asset, observer).
				Analyze(context.Background(), tc.factors, holdings("AAA", "BBB", "CCC"))

			assert.Nil(t, report)
			var ae *AnalysisError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tc.stage, ae.Stage)
			assert.ErrorIs(t, err, tc.kind)

			// exactly one kind per failure
			for _, other := range kinds {
				if other != tc.kind {
					assert.False(t, errors.Is(err, other), "also wraps %v", other)
				}
			}

			assert.Equal(t, tc.fetched, tc.factor.called)
			assert.Equal(t, []string{string(tc.stage)}, observer.outcomes)
		})
	}
}

func TestAnalyze_ValidationSkipsFetch(t *testing.T) {
	factorSource, assetSource := &fakeSource{}, &fakeSource{}

	_, err := newTestAnalyzer(factorSource, assetSource, nil).Analyze(context.Background(), nil, holdings("AAA"))
	assert.ErrorIs(t, err, ErrNoFactors)
	assert.False(t, factorSource.called)
	assert.False(t, assetSource.called)
}

func TestAnalyze_EndToEndThroughSources(t *testing.T) {
	assets, factors := generateFactorModel(t, 120, trueBetas, trueAlphas, 0.004, 8)
	dates := factors.Dates()

	reader := &fakeReturnReader{}
	for _, f := range factors.Columns() {
		series, _ := factors.Series(f)
		for i, d := range dates {
			reader.rows = append(reader.rows, &dm.FactorReturn{FactorId: f, Date: d, ReturnValue: series[i]})
		}
	}

	// rebuild closes from returns, with one leading close the returns start after
	feed := &fakePriceFeed{closes: map[string][]*dm.ClosingPrice{}}
	for _, a := range assets.Columns() {
		series, _ := assets.Series(a)
		price := 100.0
		closes := []*dm.ClosingPrice{{Symbol: a, Date: dates[0].AddDate(0, 0, -1), Close: price}}
		for i, d := range dates {
			price *= 1 + series[i]
			closes = append(closes, &dm.ClosingPrice{Symbol: a, Date: d, Close: price})
		}
		feed.closes[a] = closes
	}

	analyzer := newTestAnalyzer(NewInternalStore(reader, zerolog.Nop()), NewExternalFeed(feed, zerolog.Nop()), nil)
	report, err := analyzer.Analyze(context.Background(), []string{"MKT", "SMB"}, holdings("AAA", "BBB", "CCC"))
	require.NoError(t, err)

	direct, err := Fit(assets, factors)
	require.NoError(t, err)

	assert.Equal(t, 120, report.Statistics.NoObservations)
	assert.InDelta(t, direct.RSquared, report.Statistics.RSquared, 1e-8)
	for i, asset := range direct.Assets {
		for k, factor := range direct.Factors {
			assert.InDelta(t, direct.Betas.At(i, k), report.Params[asset][factor], 1e-8)
		}
	}
}
