package core

import (
	"fmt"
	"math"
	"strings"

	dm "labfolio/data/models"
	sm "labfolio/service/models"
)

type Weighting string

const (
	WeightEqual    Weighting = "equal"
	WeightQuantity Weighting = "quantity"
)

func ParseWeighting(s string) (Weighting, error) {
	switch w := Weighting(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WeightEqual, nil
	case WeightEqual, WeightQuantity:
		return w, nil
	default:
		return "", fmt.Errorf("%w: unknown weighting %q", ErrValidation, s)
	}
}

// Exposures aggregates the betas of a report into one exposure per factor. Holdings whose
// ticker did not survive cleaning carry no weight, each holding line counts separately.
// Quantity weights are signed and normalized by the gross quantity, so a short line
// subtracts its betas. No gross weight at all gives zero exposures.
func Exposures(report *sm.FactorModelReport, holdings []dm.PortfolioHolding, weighting Weighting) map[string]float64 {
	res := make(map[string]float64, len(report.RiskPremia))
	for factor := range report.RiskPremia {
		res[factor] = 0
	}

	gross := 0.0
	for _, h := range holdings {
		betas, ok := report.Params[h.Ticker]
		if !ok {
			continue
		}

		weight := 1.0
		if weighting == WeightQuantity {
			weight = float64(h.Quantity)
		}
		gross += math.Abs(weight)

		for factor := range res {
			res[factor] += weight * betas[factor]
		}
	}

	if gross == 0 {
		return res
	}
	for factor := range res {
		res[factor] /= gross
	}
	return res
}
