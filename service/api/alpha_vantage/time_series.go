package alpha_vantage

import (
	"strings"
)

// TimeSeries specifies which daily series to query for closing prices.
type TimeSeries uint8

const (
	TimeSeriesDaily TimeSeries = iota
	TimeSeriesDailyAdjusted
)

func (t TimeSeries) Function() string {
	switch t {
	case TimeSeriesDaily:
		return "TIME_SERIES_DAILY"
	case TimeSeriesDailyAdjusted:
		return "TIME_SERIES_DAILY_ADJUSTED"
	default:
		return ""
	}
}

func (t TimeSeries) TimeSeriesKey() string {
	return "Time Series (Daily)"
}

func (t TimeSeries) IsAdjusted() bool {
	return strings.HasSuffix(t.Function(), "_ADJUSTED")
}

// ParseTimeSeries maps a config value ("daily", "daily_adjusted") to a series
func ParseTimeSeries(s string) (TimeSeries, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily":
		return TimeSeriesDaily, true
	case "daily_adjusted":
		return TimeSeriesDailyAdjusted, true
	default:
		return 0, false
	}
}
