package models

import (
	"errors"
	"time"

	"github.com/guregu/null/v6"
)

type Factor struct {
	FactorId    string      `db:"factor_id" json:"factor_id"`
	Name        string      `db:"name" json:"name"`
	Description null.String `db:"description" json:"description"`
}

// FactorReturn is one row of factor.returns, already a simple daily return
type FactorReturn struct {
	FactorId    string    `db:"factor_id"`
	Date        time.Time `db:"date"`
	ReturnValue float64   `db:"return_value"`
}

// ErrUnknownSymbol is returned by a price feed that does not know a symbol at all
var ErrUnknownSymbol = errors.New("unknown symbol")

// ClosingPrice is one daily close for a symbol as delivered by the market-data feed
type ClosingPrice struct {
	Symbol string
	Date   time.Time
	Close  float64
}
