package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// HistoricalFundingRate represents a funding rate observation enriched with
// its statistical context at collection time. ZScore and Percentile are
// absent until the collector has enough history.
type HistoricalFundingRate struct {
	Timestamp   time.Time
	FundingRate float64
	ZScore      optional.Option[float64]
	Percentile  optional.Option[float64]
}

// LiquidationAggregate summarizes liquidation volume over a rolling window.
type LiquidationAggregate struct {
	WindowMinutes  int
	LongVolumeUSD  decimal.Decimal
	ShortVolumeUSD decimal.Decimal
	NetDeltaUSD    decimal.Decimal
	CountLong      int
	CountShort     int
}

// TotalVolumeUSD returns the combined long and short liquidation volume.
func (a LiquidationAggregate) TotalVolumeUSD() decimal.Decimal {
	return a.LongVolumeUSD.Add(a.ShortVolumeUSD)
}

// NewsEvent represents a scored news item relevant to a symbol.
type NewsEvent struct {
	Timestamp time.Time
	Source    string
	Title     string
	// Sentiment is in [-1, 1]; negative values are bearish.
	Sentiment float64
	// UrgencyScore is in [0, 1].
	UrgencyScore float64
	Currencies   []string
}

// PricePoint is a timestamped external reference price, e.g. from a
// prediction-market CLOB.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
}
