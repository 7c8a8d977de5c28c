package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	dm "labfolio/data/models"
	st "labfolio/data/storage"
	sm "labfolio/service/models"
)

var ErrPortfolioNotFound = errors.New("portfolio not found")

func (sc *ServiceContext) GetFactors(ctx context.Context) ([]*dm.Factor, error) {
	if sc.Catalog == nil {
		return nil, fmt.Errorf("%w: factor catalog is not configured", ErrUpstreamUnavailable)
	}

	factors, err := sc.Catalog.GetFactors(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	return factors, nil
}

// GetPortfolioHoldings resolves a portfolio in the directory and reads its holdings file
func (sc *ServiceContext) GetPortfolioHoldings(ctx context.Context, portfolioId uuid.UUID) (*dm.Portfolio, []dm.PortfolioHolding, error) {
	if sc.Portfolios == nil || sc.Holdings == nil {
		return nil, nil, fmt.Errorf("%w: portfolio storage is not configured", ErrUpstreamUnavailable)
	}

	portfolio, err := sc.Portfolios.GetPortfolioByID(ctx, portfolioId)
	if err != nil {
		return nil, nil, upstreamError(err)
	}
	if portfolio == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPortfolioNotFound, portfolioId)
	}

	holdings, err := sc.Holdings.ReadHoldings(ctx, portfolio.PortfolioAddress)
	if err != nil {
		if !errors.Is(err, st.ErrMalformedPortfolio) {
			err = upstreamError(err)
		}
		return nil, nil, fmt.Errorf("error reading holdings of portfolio %s: %w", portfolioId, err)
	}

	sc.Log.Debug().Str("portfolio_id", portfolioId.String()).Int("holdings", len(holdings)).Msg("portfolio holdings loaded")
	return portfolio, holdings, nil
}

// RunFactorModel analyzes inline holdings, or the holdings of a stored portfolio, and adds exposures
func (sc *ServiceContext) RunFactorModel(ctx context.Context, req sm.FactorModelRequest) (*sm.FactorModelResponse, error) {
	weighting, err := ParseWeighting(req.Weighting)
	if err != nil {
		return nil, stageError(StageValidation, err)
	}

	holdings := req.Holdings
	if len(holdings) == 0 && req.PortfolioId != nil {
		_, holdings, err = sc.GetPortfolioHoldings(ctx, *req.PortfolioId)
		if err != nil {
			return nil, err
		}
	}

	report, err := sc.Analyzer.Analyze(ctx, req.Factors, holdings)
	if err != nil {
		return nil, err
	}

	return &sm.FactorModelResponse{
		Analysis:  report,
		Exposures: Exposures(report, holdings, weighting),
		Weighting: string(weighting),
	}, nil
}
