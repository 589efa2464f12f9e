package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// LatestOrderBook returns the most recent snapshot with start <= timestamp <
// before, or None when the range holds no data.
func (s *Store) LatestOrderBook(symbol, exchange string, start, before time.Time) (optional.Option[OrderBookRecord], error) {
	row := s.sq.Select("timestamp", "bid_levels", "ask_levels", "imbalance", "mid_price", "spread_bps").
		From("orderbook_snapshots").
		Where(squirrel.Eq{"symbol": symbol, "exchange": exchange}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow()

	var (
		record     OrderBookRecord
		bids, asks string
	)

	err := row.Scan(&record.Timestamp, &bids, &asks, &record.Imbalance, &record.MidPrice, &record.SpreadBps)
	if err == sql.ErrNoRows {
		return optional.None[OrderBookRecord](), nil
	}

	if err != nil {
		return optional.None[OrderBookRecord](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to query order book snapshot", err)
	}

	record.Symbol = symbol
	record.Exchange = exchange

	if err := json.Unmarshal([]byte(bids), &record.Bids); err != nil {
		return optional.None[OrderBookRecord](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode bid levels", err)
	}

	if err := json.Unmarshal([]byte(asks), &record.Asks); err != nil {
		return optional.None[OrderBookRecord](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to decode ask levels", err)
	}

	return optional.Some(record), nil
}

// Imbalances returns imbalance readings with start <= timestamp < before,
// oldest first.
func (s *Store) Imbalances(symbol, exchange string, start, before time.Time) ([]float64, error) {
	rows, err := s.sq.Select("imbalance").
		From("orderbook_snapshots").
		Where(squirrel.Eq{"symbol": symbol, "exchange": exchange}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query imbalances", err)
	}
	defer rows.Close()

	var imbalances []float64

	for rows.Next() {
		var imbalance float64
		if err := rows.Scan(&imbalance); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan imbalance", err)
		}

		imbalances = append(imbalances, imbalance)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate imbalances", err)
	}

	return imbalances, nil
}

// LatestFundingRate returns the most recent rate with start <= timestamp <
// before, or None when the range holds no data.
func (s *Store) LatestFundingRate(symbol, exchange string, start, before time.Time) (optional.Option[float64], error) {
	row := s.sq.Select("rate").
		From("funding_rates").
		Where(squirrel.Eq{"symbol": symbol, "exchange": exchange}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow()

	var rate float64

	err := row.Scan(&rate)
	if err == sql.ErrNoRows {
		return optional.None[float64](), nil
	}

	if err != nil {
		return optional.None[float64](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to query funding rate", err)
	}

	return optional.Some(rate), nil
}

// FundingRates returns funding observations with start <= timestamp < before,
// oldest first, carrying their stored statistical context.
func (s *Store) FundingRates(symbol, exchange string, start, before time.Time) ([]types.HistoricalFundingRate, error) {
	rows, err := s.sq.Select("timestamp", "rate", "rate_zscore", "rate_percentile").
		From("funding_rates").
		Where(squirrel.Eq{"symbol": symbol, "exchange": exchange}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query funding history", err)
	}
	defer rows.Close()

	var history []types.HistoricalFundingRate

	for rows.Next() {
		var (
			record             types.HistoricalFundingRate
			zscore, percentile sql.NullFloat64
		)

		if err := rows.Scan(&record.Timestamp, &record.FundingRate, &zscore, &percentile); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan funding record", err)
		}

		if zscore.Valid {
			record.ZScore = optional.Some(zscore.Float64)
		}

		if percentile.Valid {
			record.Percentile = optional.Some(percentile.Float64)
		}

		history = append(history, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate funding history", err)
	}

	return history, nil
}

// Liquidations returns liquidations with start <= timestamp < before, oldest
// first.
func (s *Store) Liquidations(symbol, exchange string, start, before time.Time) ([]LiquidationRecord, error) {
	rows, err := s.sq.Select("timestamp", "side", "quantity", "price", "notional_usd").
		From("liquidations").
		Where(squirrel.Eq{"symbol": symbol, "exchange": exchange}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query liquidations", err)
	}
	defer rows.Close()

	var records []LiquidationRecord

	for rows.Next() {
		record := LiquidationRecord{Symbol: symbol, Exchange: exchange}

		if err := rows.Scan(&record.Timestamp, &record.Side, &record.Quantity, &record.Price, &record.NotionalUSD); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan liquidation", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate liquidations", err)
	}

	return records, nil
}

// Candles returns OHLCV candles with start <= timestamp < before, oldest
// first.
func (s *Store) Candles(symbol, exchange string, start, before time.Time) ([]types.OhlcvCandle, error) {
	rows, err := s.sq.Select("timestamp", "open", "high", "low", "close", "volume").
		From("candles").
		Where(squirrel.Eq{"symbol": symbol, "exchange": exchange}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query candles", err)
	}
	defer rows.Close()

	var candles []types.OhlcvCandle

	for rows.Next() {
		var candle types.OhlcvCandle

		if err := rows.Scan(&candle.Timestamp, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan candle", err)
		}

		candles = append(candles, candle)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate candles", err)
	}

	return candles, nil
}

// NewsEvents returns news items mentioning the currency with start <=
// timestamp < before, oldest first.
func (s *Store) NewsEvents(currency string, start, before time.Time) ([]types.NewsEvent, error) {
	rows, err := s.sq.Select("timestamp", "source", "title", "sentiment", "urgency", "currencies").
		From("news_events").
		Where(squirrel.Like{"currencies": "%" + currency + "%"}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query news events", err)
	}
	defer rows.Close()

	var events []types.NewsEvent

	for rows.Next() {
		var (
			event      types.NewsEvent
			currencies string
		)

		if err := rows.Scan(&event.Timestamp, &event.Source, &event.Title, &event.Sentiment, &event.UrgencyScore, &currencies); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan news event", err)
		}

		if currencies != "" {
			event.Currencies = strings.Split(currencies, ",")
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate news events", err)
	}

	return events, nil
}

// PricePoints returns external reference prices for a market with start <=
// timestamp < before, oldest first.
func (s *Store) PricePoints(market string, start, before time.Time) ([]types.PricePoint, error) {
	rows, err := s.sq.Select("timestamp", "price").
		From("external_prices").
		Where(squirrel.Eq{"market": market}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.Lt{"timestamp": before}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query price points", err)
	}
	defer rows.Close()

	var points []types.PricePoint

	for rows.Next() {
		var point types.PricePoint

		if err := rows.Scan(&point.Timestamp, &point.Price); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan price point", err)
		}

		points = append(points, point)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate price points", err)
	}

	return points, nil
}
