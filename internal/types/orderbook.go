package types

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// PriceLevel represents a single price level in an order book.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBookSnapshot represents the state of an order book at a point in time.
// Bids are sorted descending by price, asks ascending, best levels first.
type OrderBookSnapshot struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// Imbalance returns (bidVolume - askVolume) / (bidVolume + askVolume).
// The result is in [-1, 1]; an empty book yields 0.
func (o *OrderBookSnapshot) Imbalance() float64 {
	bidVol := totalQuantity(o.Bids)
	askVol := totalQuantity(o.Asks)

	total := bidVol.Add(askVol)
	if total.IsZero() {
		return 0
	}

	imbalance, _ := bidVol.Sub(askVol).Div(total).Float64()

	return imbalance
}

// BestBid returns the highest bid level, if any.
func (o *OrderBookSnapshot) BestBid() optional.Option[PriceLevel] {
	if len(o.Bids) == 0 {
		return optional.None[PriceLevel]()
	}

	return optional.Some(o.Bids[0])
}

// BestAsk returns the lowest ask level, if any.
func (o *OrderBookSnapshot) BestAsk() optional.Option[PriceLevel] {
	if len(o.Asks) == 0 {
		return optional.None[PriceLevel]()
	}

	return optional.Some(o.Asks[0])
}

// MidPrice returns the midpoint between best bid and best ask. Both sides of
// the book must be populated.
func (o *OrderBookSnapshot) MidPrice() optional.Option[decimal.Decimal] {
	if len(o.Bids) == 0 || len(o.Asks) == 0 {
		return optional.None[decimal.Decimal]()
	}

	mid := o.Bids[0].Price.Add(o.Asks[0].Price).Div(decimal.NewFromInt(2))

	return optional.Some(mid)
}

// Spread returns best ask minus best bid. Both sides must be populated.
func (o *OrderBookSnapshot) Spread() optional.Option[decimal.Decimal] {
	if len(o.Bids) == 0 || len(o.Asks) == 0 {
		return optional.None[decimal.Decimal]()
	}

	return optional.Some(o.Asks[0].Price.Sub(o.Bids[0].Price))
}

func totalQuantity(levels []PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, level := range levels {
		total = total.Add(level.Quantity)
	}

	return total
}
