package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// SignalContext carries all market data a signal generator may consume for a
// single computation cycle. Every field beyond timestamp and symbol is
// optional; generators return a neutral signal when the data they need is
// absent.
type SignalContext struct {
	Timestamp time.Time
	Symbol    string

	OrderBook      *OrderBookSnapshot
	FundingRate    optional.Option[float64]
	OpenInterest   optional.Option[float64]
	MarkPrice      optional.Option[float64]
	LiquidationUSD optional.Option[decimal.Decimal]

	// HistoricalImbalances are recent order book imbalance readings, oldest first.
	HistoricalImbalances []float64
	// HistoricalFunding are recent funding rate observations, oldest first.
	HistoricalFunding []HistoricalFundingRate
	// LiquidationAggregate summarizes recent liquidations; the record carries
	// its own window length.
	LiquidationAggregate optional.Option[LiquidationAggregate]
	// RecentCandles are OHLCV candles, oldest first.
	RecentCandles []OhlcvCandle
	// NewsEvents are recent scored news items, oldest first.
	NewsEvents []NewsEvent
	// ExternalPrices are recent external reference prices, oldest first.
	ExternalPrices []PricePoint
}

// NewSignalContext creates a context with only the required fields set.
func NewSignalContext(timestamp time.Time, symbol string) *SignalContext {
	return &SignalContext{
		Timestamp: timestamp,
		Symbol:    symbol,
	}
}

// WithOrderBook sets the order book snapshot.
func (c *SignalContext) WithOrderBook(book *OrderBookSnapshot) *SignalContext {
	c.OrderBook = book

	return c
}

// WithFundingRate sets the current funding rate.
func (c *SignalContext) WithFundingRate(rate float64) *SignalContext {
	c.FundingRate = optional.Some(rate)

	return c
}

// WithOpenInterest sets the current open interest.
func (c *SignalContext) WithOpenInterest(oi float64) *SignalContext {
	c.OpenInterest = optional.Some(oi)

	return c
}

// WithMarkPrice sets the current mark price.
func (c *SignalContext) WithMarkPrice(price float64) *SignalContext {
	c.MarkPrice = optional.Some(price)

	return c
}

// WithLiquidationUSD sets the latest liquidation notional.
func (c *SignalContext) WithLiquidationUSD(usd decimal.Decimal) *SignalContext {
	c.LiquidationUSD = optional.Some(usd)

	return c
}

// WithHistoricalImbalances sets recent imbalance readings, oldest first.
func (c *SignalContext) WithHistoricalImbalances(imbalances []float64) *SignalContext {
	c.HistoricalImbalances = imbalances

	return c
}

// WithHistoricalFunding sets recent funding observations, oldest first.
func (c *SignalContext) WithHistoricalFunding(rates []HistoricalFundingRate) *SignalContext {
	c.HistoricalFunding = rates

	return c
}

// WithLiquidationAggregate sets the rolling liquidation aggregate.
func (c *SignalContext) WithLiquidationAggregate(agg LiquidationAggregate) *SignalContext {
	c.LiquidationAggregate = optional.Some(agg)

	return c
}

// WithRecentCandles sets recent OHLCV candles, oldest first.
func (c *SignalContext) WithRecentCandles(candles []OhlcvCandle) *SignalContext {
	c.RecentCandles = candles

	return c
}

// WithNewsEvents sets recent news events, oldest first.
func (c *SignalContext) WithNewsEvents(events []NewsEvent) *SignalContext {
	c.NewsEvents = events

	return c
}

// WithExternalPrices sets recent external reference prices, oldest first.
func (c *SignalContext) WithExternalPrices(points []PricePoint) *SignalContext {
	c.ExternalPrices = points

	return c
}

// MidPrice returns the order book mid price as a float, when both sides of
// the book are available.
func (c *SignalContext) MidPrice() optional.Option[float64] {
	if c.OrderBook == nil {
		return optional.None[float64]()
	}

	mid := c.OrderBook.MidPrice()
	if mid.IsNone() {
		return optional.None[float64]()
	}

	value, _ := mid.Unwrap().Float64()

	return optional.Some(value)
}
