package models

import (
	"github.com/google/uuid"

	dm "labfolio/data/models"
)

// AlphaKey is the params column holding each asset's pricing error
const AlphaKey = "alpha"

type FactorModelStatistics struct {
	NoFactors         int     `json:"no_factors"`
	NoAssets          int     `json:"no_assets"`
	NoObservations    int     `json:"no_observations"`
	RSquared          float64 `json:"r_squared"`
	JStatistic        float64 `json:"j_statistic"`
	JDegreesOfFreedom int     `json:"j_degrees_of_freedom"`
	JPValue           float64 `json:"j_p_value"`
}

// FactorModelReport is the packaged result of one analysis. Matrices are keyed by identifier on both axes.
type FactorModelReport struct {
	Statistics       FactorModelStatistics         `json:"statistics"`
	CovarianceMatrix map[string]map[string]float64 `json:"covariance_matrix"`
	Params           map[string]map[string]float64 `json:"params"`
	RiskPremia       map[string]float64            `json:"risk_premia"`
	Timestamp        string                        `json:"timestamp"`
}

type ValidateFactorModelRequest struct {
	Factors  []string              `json:"factors"`
	Holdings []dm.PortfolioHolding `json:"holdings"`
}

// FactorModelRequest takes holdings inline or the id of a stored portfolio, inline holdings win
type FactorModelRequest struct {
	Factors     []string              `json:"factors"`
	Holdings    []dm.PortfolioHolding `json:"holdings"`
	PortfolioId *uuid.UUID            `json:"portfolio_id"`
	Weighting   string                `json:"weighting"`
}

type FactorModelResponse struct {
	Analysis  *FactorModelReport `json:"analysis"`
	Exposures map[string]float64 `json:"exposures"`
	Weighting string             `json:"weighting"`
}

type ValidateFactorModelResponse struct {
	Valid bool `json:"valid"`
}

type PingResponse struct {
	Message  string `json:"message"`
	Database string `json:"database"`
}

type HoldingsResponse struct {
	PortfolioId   uuid.UUID             `json:"portfolio_id"`
	PortfolioName string                `json:"portfolio_name"`
	Holdings      []dm.PortfolioHolding `json:"holdings"`
}
