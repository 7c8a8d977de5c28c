package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	e "labfolio/data/extensions"
	dm "labfolio/data/models"
	sm "labfolio/service/models"
)

const DefaultLookbackDays = 365

type AnalyzerSettings struct {
	LookbackDays  int
	NullThreshold float64
}

// StageObserver receives stage durations and the outcome of every analysis
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration)
	ObserveOutcome(outcome string)
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, time.Duration) {}
func (noopObserver) ObserveOutcome(string)              {}

// Analyzer runs validate, fetch factors, fetch assets, align, fit and package, strictly in that order
type Analyzer struct {
	factors  ReturnSource
	assets   ReturnSource
	settings AnalyzerSettings
	log      zerolog.Logger
	observer StageObserver
	now      func() time.Time
}

func NewAnalyzer(factors, assets ReturnSource, settings AnalyzerSettings, logger zerolog.Logger, observer StageObserver) *Analyzer {
	if settings.LookbackDays <= 0 {
		settings.LookbackDays = DefaultLookbackDays
	}
	if observer == nil {
		observer = noopObserver{}
	}

	return &Analyzer{
		factors:  factors,
		assets:   assets,
		settings: settings,
		log:      logger.With().Str("component", "analyzer").Logger(),
		observer: observer,
		now:      time.Now,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, factors []string, holdings []dm.PortfolioHolding) (*sm.FactorModelReport, error) {
	start := a.now()
	report, err := a.analyze(ctx, factors, holdings)
	if err != nil {
		outcome := "error"
		var ae *AnalysisError
		if errors.As(err, &ae) {
			outcome = string(ae.Stage)
		}
		a.observer.ObserveOutcome(outcome)
		a.log.Warn().Err(err).Strs("factors", factors).Dur("elapsed", a.now().Sub(start)).Msg("factor model analysis failed")
		return nil, err
	}

	a.observer.ObserveOutcome("ok")
	a.log.Info().Strs("factors", factors).Int("holdings", len(holdings)).Dur("elapsed", a.now().Sub(start)).Msg("factor model analysis completed")
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, factors []string, holdings []dm.PortfolioHolding) (*sm.FactorModelReport, error) {
	var (
		stageStart = a.now()
		end        = e.DateOnly(a.now())
		begin      = end.AddDate(0, 0, -a.settings.LookbackDays)
	)
	done := func(stage Stage) {
		elapsed := a.now().Sub(stageStart)
		a.observer.ObserveStage(string(stage), elapsed)
		a.log.Debug().Str("stage", string(stage)).Dur("elapsed", elapsed).Msg("stage completed")
		stageStart = a.now()
	}

	if err := ValidateFactorModel(factors, holdings); err != nil {
		return nil, stageError(StageValidation, err)
	}
	done(StageValidation)

	factorPanel, err := a.factors.GetReturns(ctx, factors, begin, end, a.settings.NullThreshold)
	if err != nil {
		return nil, stageError(StageFetchFactors, err)
	}
	if factorPanel.IsEmpty() {
		return nil, stageError(StageFetchFactors, fmt.Errorf("%w: no factor returns for %v between %s and %s", ErrDataUnavailable, factors, e.FmtShort(begin), e.FmtShort(end)))
	}
	done(StageFetchFactors)

	tickers := make([]string, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}
	tickers = e.Unique(tickers)

	assetPanel, err := a.assets.GetReturns(ctx, tickers, begin, end, a.settings.NullThreshold)
	if err != nil {
		return nil, stageError(StageFetchAssets, err)
	}
	if assetPanel.IsEmpty() {
		return nil, stageError(StageFetchAssets, fmt.Errorf("%w: no asset returns for %v between %s and %s", ErrDataUnavailable, tickers, e.FmtShort(begin), e.FmtShort(end)))
	}
	done(StageFetchAssets)

	alignedFactors, alignedAssets := Align(factorPanel, assetPanel)
	if alignedFactors.IsEmpty() || alignedAssets.IsEmpty() {
		return nil, stageError(StageAlignment, fmt.Errorf("%w: factor and asset returns share no dates", ErrDataUnavailable))
	}
	done(StageAlignment)

	fit, err := Fit(alignedAssets, alignedFactors)
	if err != nil {
		return nil, stageError(StageFit, err)
	}
	done(StageFit)

	report := Package(fit, len(fit.Factors), len(fit.Assets), fit.Observations, a.now())
	done(StagePackage)

	return report, nil
}
