package core

import (
	"time"

	sm "labfolio/service/models"
)

// Package shapes a fit into the serializable report, keyed by asset and factor identifiers
func Package(fit *FitResult, factorCount, assetCount, observationCount int, now time.Time) *sm.FactorModelReport {
	covariance := make(map[string]map[string]float64, len(fit.Factors))
	for i, row := range fit.Factors {
		covariance[row] = make(map[string]float64, len(fit.Factors))
		for j, col := range fit.Factors {
			covariance[row][col] = fit.FactorCovariance.At(i, j)
		}
	}

	params := make(map[string]map[string]float64, len(fit.Assets))
	for i, asset := range fit.Assets {
		params[asset] = make(map[string]float64, len(fit.Factors)+1)
		params[asset][sm.AlphaKey] = fit.Alpha[i]
		for k, factor := range fit.Factors {
			params[asset][factor] = fit.Betas.At(i, k)
		}
	}

	premia := make(map[string]float64, len(fit.Factors))
	for k, factor := range fit.Factors {
		premia[factor] = fit.RiskPremia[k]
	}

	return &sm.FactorModelReport{
		Statistics: sm.FactorModelStatistics{
			NoFactors:         factorCount,
			NoAssets:          assetCount,
			NoObservations:    observationCount,
			RSquared:          fit.RSquared,
			JStatistic:        fit.JStatistic,
			JDegreesOfFreedom: fit.JDegreesOfFreedom,
			JPValue:           fit.JPValue,
		},
		CovarianceMatrix: covariance,
		Params:           params,
		RiskPremia:       premia,
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
}
