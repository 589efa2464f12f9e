package types

import "time"

// OhlcvCandle represents a single OHLCV candle.
type OhlcvCandle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Range returns high minus low.
func (c OhlcvCandle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute distance between open and close.
func (c OhlcvCandle) Body() float64 {
	diff := c.Close - c.Open
	if diff < 0 {
		return -diff
	}

	return diff
}

// Change returns the fractional change from open to close. Zero open yields 0.
func (c OhlcvCandle) Change() float64 {
	if c.Open == 0 {
		return 0
	}

	return (c.Close - c.Open) / c.Open
}

// IsBullish returns true when the candle closed above its open.
func (c OhlcvCandle) IsBullish() bool {
	return c.Close > c.Open
}
