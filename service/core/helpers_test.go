package core

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	dm "labfolio/data/models"
)

// Helper: a calendar date in january 2023
func day(d int) time.Time {
	return time.Date(2023, time.January, d, 0, 0, 0, 0, time.UTC)
}

// Helper: n consecutive calendar dates
func dateRange(start time.Time, n int) []time.Time {
	res := make([]time.Time, n)
	for i := range n {
		res[i] = start.AddDate(0, 0, i)
	}
	return res
}

func mustPanel(t *testing.T, dates []time.Time, columns []string, values [][]float64) *ReturnPanel {
	t.Helper()
	p, err := NewReturnPanel(dates, columns, values)
	require.NoError(t, err)
	return p
}

// Helper: constant column, handy for alignment tests
func constant(n int, v float64) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = v
	}
	return res
}

// Helper: generate factor and asset panels following r = alpha + B f + e.
// Factors are correlated normals (corr 0.3), noise is independent.
func generateFactorModel(t *testing.T, nObs int, betas [][]float64, alphas []float64, noise float64, seed uint64) (assets, factors *ReturnPanel) {
	t.Helper()

	nAssets, nFactors := len(betas), len(betas[0])
	corrData := make([]float64, nFactors*nFactors)
	for i := range nFactors {
		for j := range nFactors {
			corrData[i*nFactors+j] = 0.3
			if i == j {
				corrData[i*nFactors+j] = 1
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(nFactors, corrData)); !ok {
		t.Fatalf("correlation matrix is not positive definite")
	}
	L := new(mat.TriDense)
	chol.LTo(L)

	src := rand.NewPCG(seed, 0)
	normalDist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	factorValues := make([][]float64, nFactors)
	for k := range factorValues {
		factorValues[k] = make([]float64, nObs)
	}
	assetValues := make([][]float64, nAssets)
	for i := range assetValues {
		assetValues[i] = make([]float64, nObs)
	}

	z := make([]float64, nFactors)
	for obs := range nObs {
		for k := range nFactors {
			z[k] = normalDist.Rand()
		}
		correlated := mat.NewVecDense(nFactors, nil)
		correlated.MulVec(L, mat.NewVecDense(nFactors, z))

		for k := range nFactors {
			factorValues[k][obs] = 0.0004*float64(k+1) + 0.01*correlated.AtVec(k)
		}
		for i := range nAssets {
			r := alphas[i] + noise*normalDist.Rand()
			for k := range nFactors {
				r += betas[i][k] * factorValues[k][obs]
			}
			assetValues[i][obs] = r
		}
	}

	dates := dateRange(day(1), nObs)
	assetNames := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}[:nAssets]
	factorNames := []string{"MKT", "SMB", "HML"}[:nFactors]

	return mustPanel(t, dates, assetNames, assetValues), mustPanel(t, dates, factorNames, factorValues)
}

// fakeReturnReader serves stored factor returns
type fakeReturnReader struct {
	rows        []*dm.FactorReturn
	err         error
	identifiers []string
	start, end  time.Time
}

func (f *fakeReturnReader) GetFactorReturns(_ context.Context, factorIds []string, start, end time.Time) ([]*dm.FactorReturn, error) {
	f.identifiers, f.start, f.end = factorIds, start, end
	return f.rows, f.err
}

// fakePriceFeed serves closing prices per symbol
type fakePriceFeed struct {
	closes map[string][]*dm.ClosingPrice
	errs   map[string]error
	calls  []string
}

func (f *fakePriceFeed) GetDailyCloses(_ context.Context, symbol string, _, _ time.Time) ([]*dm.ClosingPrice, error) {
	f.calls = append(f.calls, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.closes[symbol], nil
}

// fakeSource returns a fixed panel and records what it was asked for
type fakeSource struct {
	panel       *ReturnPanel
	err         error
	called      bool
	identifiers []string
	start, end  time.Time
}

func (f *fakeSource) GetReturns(_ context.Context, identifiers []string, start, end time.Time, _ float64) (*ReturnPanel, error) {
	f.called = true
	f.identifiers, f.start, f.end = identifiers, start, end
	return f.panel, f.err
}

func holdings(tickers ...string) []dm.PortfolioHolding {
	res := make([]dm.PortfolioHolding, len(tickers))
	for i, t := range tickers {
		res[i] = dm.PortfolioHolding{Ticker: t, Quantity: 10 * (i + 1)}
	}
	return res
}
