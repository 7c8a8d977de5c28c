package models

import (
	"time"

	"github.com/guregu/null/v6"
)

type TimeSeriesResult struct {
	Metadata   *TimeSeriesMetadata
	TimeSeries []*TimeSeriesData
}

type TimeSeriesMetadata struct {
	Information   null.String
	Symbol        string
	LastRefreshed time.Time
	OutputSize    null.String
	TimeZone      string
}

// TimeSeriesData is one bar of a daily series; any field the feed leaves
// blank stays invalid rather than zero.
type TimeSeriesData struct {
	Timestamp     time.Time
	Open          null.Float
	High          null.Float
	Low           null.Float
	Close         null.Float
	AdjustedClose null.Float
	Volume        null.Float
}
