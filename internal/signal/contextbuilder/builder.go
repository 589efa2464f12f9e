// Package contextbuilder assembles point-in-time SignalContexts from the
// market data store. All queries are filtered to data strictly before the
// requested timestamp, so a context built for a past moment never sees data
// that arrived later.
package contextbuilder

import (
	"context"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-signals/internal/store"
	"github.com/rxtech-lab/argo-signals/internal/types"
)

// MarketStore is the slice of the store the builder queries each cycle.
type MarketStore interface {
	LatestOrderBook(symbol, exchange string, start, before time.Time) (optional.Option[store.OrderBookRecord], error)
	Imbalances(symbol, exchange string, start, before time.Time) ([]float64, error)
	LatestFundingRate(symbol, exchange string, start, before time.Time) (optional.Option[float64], error)
	FundingRates(symbol, exchange string, start, before time.Time) ([]types.HistoricalFundingRate, error)
	Liquidations(symbol, exchange string, start, before time.Time) ([]store.LiquidationRecord, error)
	Candles(symbol, exchange string, start, before time.Time) ([]types.OhlcvCandle, error)
	NewsEvents(currency string, start, before time.Time) ([]types.NewsEvent, error)
	PricePoints(market string, start, before time.Time) ([]types.PricePoint, error)
}

// Builder constructs SignalContexts for one symbol on one exchange.
type Builder struct {
	store    MarketStore
	symbol   string
	exchange string

	imbalanceLookback  time.Duration
	fundingLookback    time.Duration
	liquidationWindow  time.Duration
	newsLookback       time.Duration
	candleLookback     time.Duration
	priceLookback      time.Duration
	maxOrderBookLevels int

	// externalMarket selects the external reference price series; empty
	// disables the lookup.
	externalMarket string
}

// New creates a builder with the default lookbacks: 24 h of imbalances, 7 d
// of funding history, a 5 min liquidation window, 1 h of news and candles,
// and 20 order book levels per side.
func New(marketStore MarketStore, symbol, exchange string) *Builder {
	return &Builder{
		store:              marketStore,
		symbol:             symbol,
		exchange:           exchange,
		imbalanceLookback:  24 * time.Hour,
		fundingLookback:    7 * 24 * time.Hour,
		liquidationWindow:  5 * time.Minute,
		newsLookback:       time.Hour,
		candleLookback:     time.Hour,
		priceLookback:      5 * time.Minute,
		maxOrderBookLevels: 20,
	}
}

// WithImbalanceLookback sets the historical imbalance window.
func (b *Builder) WithImbalanceLookback(d time.Duration) *Builder {
	b.imbalanceLookback = d

	return b
}

// WithFundingLookback sets the funding history window.
func (b *Builder) WithFundingLookback(d time.Duration) *Builder {
	b.fundingLookback = d

	return b
}

// WithLiquidationWindow sets the liquidation aggregation window.
func (b *Builder) WithLiquidationWindow(d time.Duration) *Builder {
	b.liquidationWindow = d

	return b
}

// WithNewsLookback sets the news window.
func (b *Builder) WithNewsLookback(d time.Duration) *Builder {
	b.newsLookback = d

	return b
}

// WithCandleLookback sets the OHLCV candle window.
func (b *Builder) WithCandleLookback(d time.Duration) *Builder {
	b.candleLookback = d

	return b
}

// WithMaxOrderBookLevels caps the number of levels kept per book side.
func (b *Builder) WithMaxOrderBookLevels(levels int) *Builder {
	if levels > 0 {
		b.maxOrderBookLevels = levels
	}

	return b
}

// WithExternalMarket enables the external reference price lookup for the
// given market identifier.
func (b *Builder) WithExternalMarket(market string) *Builder {
	b.externalMarket = market

	return b
}

// BuildAt assembles a SignalContext at the given timestamp. Missing data
// leaves the corresponding context field unset rather than failing the build.
func (b *Builder) BuildAt(_ context.Context, timestamp time.Time) (*types.SignalContext, error) {
	signalCtx := types.NewSignalContext(timestamp, b.symbol)

	// Order book: most recent snapshot within the last five minutes.
	book, err := b.store.LatestOrderBook(b.symbol, b.exchange, timestamp.Add(-5*time.Minute), timestamp)
	if err != nil {
		return nil, err
	}

	if book.IsSome() {
		record := book.Unwrap()
		signalCtx.WithOrderBook(&types.OrderBookSnapshot{
			Bids: truncateLevels(record.Bids, b.maxOrderBookLevels),
			Asks: truncateLevels(record.Asks, b.maxOrderBookLevels),
		})
		signalCtx.WithMarkPrice(record.MidPrice)
	}

	imbalances, err := b.store.Imbalances(b.symbol, b.exchange, timestamp.Add(-b.imbalanceLookback), timestamp)
	if err != nil {
		return nil, err
	}

	if len(imbalances) > 0 {
		signalCtx.WithHistoricalImbalances(imbalances)
	}

	funding, err := b.store.LatestFundingRate(b.symbol, b.exchange, timestamp.Add(-24*time.Hour), timestamp)
	if err != nil {
		return nil, err
	}

	if funding.IsSome() {
		signalCtx.WithFundingRate(funding.Unwrap())
	}

	fundingHistory, err := b.store.FundingRates(b.symbol, b.exchange, timestamp.Add(-b.fundingLookback), timestamp)
	if err != nil {
		return nil, err
	}

	if len(fundingHistory) > 0 {
		signalCtx.WithHistoricalFunding(fundingHistory)
	}

	liquidations, err := b.store.Liquidations(b.symbol, b.exchange, timestamp.Add(-b.liquidationWindow), timestamp)
	if err != nil {
		return nil, err
	}

	if len(liquidations) > 0 {
		aggregate := aggregateLiquidations(liquidations, b.liquidationWindow)
		signalCtx.WithLiquidationAggregate(aggregate)

		if total := aggregate.TotalVolumeUSD(); total.IsPositive() {
			signalCtx.WithLiquidationUSD(total)
		}
	}

	candles, err := b.store.Candles(b.symbol, b.exchange, timestamp.Add(-b.candleLookback), timestamp)
	if err != nil {
		return nil, err
	}

	if len(candles) > 0 {
		signalCtx.WithRecentCandles(candles)
	}

	news, err := b.store.NewsEvents(baseCurrency(b.symbol), timestamp.Add(-b.newsLookback), timestamp)
	if err != nil {
		return nil, err
	}

	if len(news) > 0 {
		signalCtx.WithNewsEvents(news)
	}

	if b.externalMarket != "" {
		prices, err := b.store.PricePoints(b.externalMarket, timestamp.Add(-b.priceLookback), timestamp)
		if err != nil {
			return nil, err
		}

		if len(prices) > 0 {
			signalCtx.WithExternalPrices(prices)
		}
	}

	return signalCtx, nil
}

func truncateLevels(levels []types.PriceLevel, max int) []types.PriceLevel {
	if len(levels) <= max {
		return levels
	}

	return levels[:max]
}

// aggregateLiquidations sums liquidation notionals by side into one window
// aggregate.
func aggregateLiquidations(records []store.LiquidationRecord, window time.Duration) types.LiquidationAggregate {
	aggregate := types.LiquidationAggregate{
		WindowMinutes:  int(window / time.Minute),
		LongVolumeUSD:  decimal.Zero,
		ShortVolumeUSD: decimal.Zero,
		NetDeltaUSD:    decimal.Zero,
	}

	for _, record := range records {
		notional := decimal.NewFromFloat(record.NotionalUSD)

		if record.Side == "long" {
			aggregate.LongVolumeUSD = aggregate.LongVolumeUSD.Add(notional)
			aggregate.CountLong++
		} else {
			aggregate.ShortVolumeUSD = aggregate.ShortVolumeUSD.Add(notional)
			aggregate.CountShort++
		}
	}

	aggregate.NetDeltaUSD = aggregate.LongVolumeUSD.Sub(aggregate.ShortVolumeUSD)

	return aggregate
}

// baseCurrency strips the common quote suffixes from a trading pair symbol,
// e.g. BTCUSDT becomes BTC.
func baseCurrency(symbol string) string {
	upper := strings.ToUpper(symbol)

	for _, quote := range []string{"USDT", "BUSD", "USDC", "USD"} {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return strings.TrimSuffix(upper, quote)
		}
	}

	return upper
}
