package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	dm "labfolio/data/models"
)

type PortfolioDirectory interface {
	GetPortfolioByID(ctx context.Context, portfolioId uuid.UUID) (*dm.Portfolio, error)
}

type HoldingsStore interface {
	ReadHoldings(ctx context.Context, address string) ([]dm.PortfolioHolding, error)
}

// Pinger is anything the ping endpoint can check, usually the database
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceContext carries the collaborators shared by every request
type ServiceContext struct {
	Database   Pinger
	Catalog    FactorCatalog
	Portfolios PortfolioDirectory
	Holdings   HoldingsStore
	Analyzer   *Analyzer
	Log        zerolog.Logger
}
