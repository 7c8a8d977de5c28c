package core

import (
	"fmt"
	"slices"

	e "labfolio/data/extensions"
	dm "labfolio/data/models"
	sm "labfolio/service/models"
)

// ValidateFactorModel checks a request before any data is fetched and fails on the first broken rule
func ValidateFactorModel(factors []string, holdings []dm.PortfolioHolding) error {
	if len(factors) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNoFactors)
	}

	if len(holdings) == 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrNoHoldings)
	}

	// a cross section with fewer assets than factors cannot identify the premia
	if len(holdings) < len(factors) {
		return fmt.Errorf("%w: %w (%d holdings, %d factors)", ErrValidation, ErrInsufficientHoldings, len(holdings), len(factors))
	}

	if e.HasDuplicates(factors) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrDuplicateFactors)
	}

	// params rows key the pricing error next to the betas
	if slices.Contains(factors, sm.AlphaKey) {
		return fmt.Errorf("%w: %w (%q)", ErrValidation, ErrReservedFactor, sm.AlphaKey)
	}

	return nil
}
