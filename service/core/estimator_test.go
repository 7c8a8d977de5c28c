package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	sm "labfolio/service/models"
)

var (
	trueBetas = [][]float64{
		{1.0, 0.5},
		{0.8, -0.3},
		{1.2, 0.9},
	}
	trueAlphas = []float64{0.0001, -0.0002, 0.0}
)

func TestFit_TwoFactorsThreeAssets(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0.004, 42)

	fit, err := Fit(assets, factors)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, fit.Assets)
	assert.Equal(t, []string{"MKT", "SMB"}, fit.Factors)
	assert.Equal(t, 250, fit.Observations)

	rows, cols := fit.Betas.Dims()
	require.Equal(t, 3, rows)
	require.Equal(t, 2, cols)
	for i := range trueBetas {
		for k := range trueBetas[i] {
			assert.InDelta(t, trueBetas[i][k], fit.Betas.At(i, k), 0.15, "beta %s/%s", fit.Assets[i], fit.Factors[k])
		}
	}

	assert.Equal(t, 2, fit.FactorCovariance.SymmetricDim())
	assert.Len(t, fit.RiskPremia, 2)
	assert.Len(t, fit.Alpha, 3)

	assert.GreaterOrEqual(t, fit.RSquared, 0.0)
	assert.LessOrEqual(t, fit.RSquared, 1.0)
	assert.Greater(t, fit.RSquared, 0.5, "factors explain most of the variance")

	assert.Equal(t, 1, fit.JDegreesOfFreedom)
	assert.GreaterOrEqual(t, fit.JStatistic, 0.0)
	assert.GreaterOrEqual(t, fit.JPValue, 0.0)
	assert.LessOrEqual(t, fit.JPValue, 1.0)
}

func TestFit_CovarianceIsAnnualizedSampleCovariance(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0.004, 7)

	fit, err := Fit(assets, factors)
	require.NoError(t, err)

	mkt, _ := factors.Series("MKT")
	smb, _ := factors.Series("SMB")
	assert.InDelta(t, stat.Variance(mkt, nil)*sm.Daily, fit.FactorCovariance.At(0, 0), 1e-12)
	assert.InDelta(t, stat.Covariance(mkt, smb, nil)*sm.Daily, fit.FactorCovariance.At(0, 1), 1e-12)
	assert.Equal(t, fit.FactorCovariance.At(0, 1), fit.FactorCovariance.At(1, 0))
}

func TestFit_PricingErrorsAreOrthogonalToBetas(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0.004, 11)

	fit, err := Fit(assets, factors)
	require.NoError(t, err)

	// the cross sectional regression has no intercept, so B'α = 0
	for k := range fit.Factors {
		dot := 0.0
		for i := range fit.Assets {
			dot += fit.Betas.At(i, k) * fit.Alpha[i]
		}
		assert.InDelta(t, 0.0, dot, 1e-12)
	}

	// α = mean(r) - B λ with λ reported annualized
	for i, asset := range fit.Assets {
		series, _ := assets.Series(asset)
		priced := 0.0
		for k := range fit.Factors {
			priced += fit.Betas.At(i, k) * fit.RiskPremia[k] / sm.Daily
		}
		assert.InDelta(t, stat.Mean(series, nil)-priced, fit.Alpha[i], 1e-12)
	}
}

func TestFit_ExactlyIdentified(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas[:2], trueAlphas[:2], 0.004, 3)

	fit, err := Fit(assets, factors)
	require.NoError(t, err)

	assert.Equal(t, 0, fit.JDegreesOfFreedom)
	assert.Equal(t, 0.0, fit.JStatistic)
	assert.Equal(t, 1.0, fit.JPValue)
	for _, a := range fit.Alpha {
		assert.InDelta(t, 0.0, a, 1e-12)
	}
}

func TestFit_CollinearFactorsFail(t *testing.T) {
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0.004, 5)

	mkt, _ := factors.Series("MKT")
	doubled := make([]float64, len(mkt))
	for i, v := range mkt {
		doubled[i] = 2 * v
	}
	collinear := mustPanel(t, factors.Dates(), []string{"A", "B"}, [][]float64{mkt, doubled})

	fit, err := Fit(assets, collinear)
	assert.Nil(t, fit)
	assert.ErrorIs(t, err, ErrNumerical)
	assert.ErrorIs(t, err, ErrRankDeficient)
}

func TestFit_TooFewObservations(t *testing.T) {
	assets, factors := generateFactorModel(t, 3, trueBetas, trueAlphas, 0.004, 5)

	_, err := Fit(assets, factors)
	assert.ErrorIs(t, err, ErrNumerical)
	assert.ErrorIs(t, err, ErrRankDeficient)
}

func TestFit_MoreFactorsThanAssets(t *testing.T) {
	assets, factors := generateFactorModel(t, 100, [][]float64{{1, 0.5, 0.2}, {0.4, 0.1, 0.9}}, []float64{0, 0}, 0.004, 5)

	_, err := Fit(assets, factors)
	assert.ErrorIs(t, err, ErrRankDeficient)
}

func TestFit_EmptyAndMisalignedInputs(t *testing.T) {
	assets, factors := generateFactorModel(t, 50, trueBetas, trueAlphas, 0.004, 5)

	_, err := Fit(emptyPanel(nil), factors)
	assert.ErrorIs(t, err, ErrNumerical)

	_, err = Fit(assets, emptyPanel([]string{"MKT"}))
	assert.ErrorIs(t, err, ErrNumerical)

	shorter, _ := generateFactorModel(t, 40, trueBetas, trueAlphas, 0.004, 5)
	_, err = Fit(shorter, factors)
	assert.ErrorIs(t, err, ErrNumerical)
}

func TestFit_PerfectFitHasSingularPricingErrors(t *testing.T) {
	// no noise: residuals vanish and the J statistic has nothing to invert
	assets, factors := generateFactorModel(t, 250, trueBetas, trueAlphas, 0, 9)

	_, err := Fit(assets, factors)
	assert.ErrorIs(t, err, ErrNumerical)
	assert.ErrorIs(t, err, ErrSingularCovariance)
}
