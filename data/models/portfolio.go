package models

import (
	"time"

	"github.com/google/uuid"
)

type Portfolio struct {
	PortfolioId      uuid.UUID `db:"portfolio_id"`
	UserId           string    `db:"user_id"`
	PortfolioName    string    `db:"portfolio_name"`
	PortfolioAddress string    `db:"portfolio_address"`
	CreatedAt        time.Time `db:"created_at"`
}

// PortfolioHolding is one line of a portfolio file
type PortfolioHolding struct {
	Ticker   string `json:"yf_ticker"`
	Quantity int    `json:"quantity"`
}
