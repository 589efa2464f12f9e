// Package store persists raw market data in DuckDB and serves the lookback
// queries the signal context builder runs every fusion cycle.
package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// OrderBookRecord is one persisted order book snapshot. Bid and ask levels
// are stored as JSON, best levels first.
type OrderBookRecord struct {
	Timestamp time.Time
	Symbol    string
	Exchange  string
	Bids      []types.PriceLevel
	Asks      []types.PriceLevel
	Imbalance float64
	MidPrice  float64
	SpreadBps float64
}

// FundingRateRecord is one persisted funding rate observation. ZScore and
// Percentile are absent until the collector has enough history.
type FundingRateRecord struct {
	Timestamp  time.Time
	Symbol     string
	Exchange   string
	Rate       float64
	ZScore     *float64
	Percentile *float64
}

// LiquidationRecord is one persisted forced liquidation. Side is "long" for
// liquidated longs (forced sells) and "short" for liquidated shorts.
type LiquidationRecord struct {
	Timestamp   time.Time
	Symbol      string
	Exchange    string
	Side        string
	Quantity    float64
	Price       float64
	NotionalUSD float64
}

// CandleRecord is one persisted OHLCV candle.
type CandleRecord struct {
	Symbol   string
	Exchange string
	Candle   types.OhlcvCandle
}

// NewsRecord is one persisted scored news item.
type NewsRecord struct {
	Timestamp    time.Time
	Source       string
	Title        string
	Sentiment    float64
	UrgencyScore float64
	Currencies   []string
}

// Store is a DuckDB-backed market data store. An empty path opens an
// in-memory database.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// Open creates a store at the given database path and ensures the schema
// exists.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to open duckdb database", err)
	}

	s := &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}

	if err := s.createTables(); err != nil {
		db.Close()

		return nil, err
	}

	s.logger.Debug("market data store opened", zap.String("path", path))

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orderbook_snapshots (
			timestamp TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			exchange VARCHAR NOT NULL,
			bid_levels VARCHAR NOT NULL,
			ask_levels VARCHAR NOT NULL,
			imbalance DOUBLE NOT NULL,
			mid_price DOUBLE NOT NULL,
			spread_bps DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS funding_rates (
			timestamp TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			exchange VARCHAR NOT NULL,
			rate DOUBLE NOT NULL,
			rate_zscore DOUBLE,
			rate_percentile DOUBLE
		)`,
		`CREATE TABLE IF NOT EXISTS liquidations (
			timestamp TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			exchange VARCHAR NOT NULL,
			side VARCHAR NOT NULL,
			quantity DOUBLE NOT NULL,
			price DOUBLE NOT NULL,
			notional_usd DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS candles (
			timestamp TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			exchange VARCHAR NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS news_events (
			timestamp TIMESTAMP NOT NULL,
			source VARCHAR NOT NULL,
			title VARCHAR NOT NULL,
			sentiment DOUBLE NOT NULL,
			urgency DOUBLE NOT NULL,
			currencies VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS external_prices (
			timestamp TIMESTAMP NOT NULL,
			market VARCHAR NOT NULL,
			price DOUBLE NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to create schema", err)
		}
	}

	return nil
}

// InsertOrderBook persists one order book snapshot.
func (s *Store) InsertOrderBook(record OrderBookRecord) error {
	bids, err := json.Marshal(record.Bids)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to encode bid levels", err)
	}

	asks, err := json.Marshal(record.Asks)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to encode ask levels", err)
	}

	_, err = s.sq.Insert("orderbook_snapshots").
		Columns("timestamp", "symbol", "exchange", "bid_levels", "ask_levels", "imbalance", "mid_price", "spread_bps").
		Values(record.Timestamp, record.Symbol, record.Exchange, string(bids), string(asks),
			record.Imbalance, record.MidPrice, record.SpreadBps).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert order book snapshot", err)
	}

	return nil
}

// InsertFundingRate persists one funding rate observation.
func (s *Store) InsertFundingRate(record FundingRateRecord) error {
	_, err := s.sq.Insert("funding_rates").
		Columns("timestamp", "symbol", "exchange", "rate", "rate_zscore", "rate_percentile").
		Values(record.Timestamp, record.Symbol, record.Exchange, record.Rate, record.ZScore, record.Percentile).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert funding rate", err)
	}

	return nil
}

// InsertLiquidation persists one forced liquidation.
func (s *Store) InsertLiquidation(record LiquidationRecord) error {
	_, err := s.sq.Insert("liquidations").
		Columns("timestamp", "symbol", "exchange", "side", "quantity", "price", "notional_usd").
		Values(record.Timestamp, record.Symbol, record.Exchange, record.Side,
			record.Quantity, record.Price, record.NotionalUSD).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert liquidation", err)
	}

	return nil
}

// InsertCandle persists one OHLCV candle.
func (s *Store) InsertCandle(record CandleRecord) error {
	return s.InsertCandleBatch([]CandleRecord{record})
}

// InsertCandleBatch persists candles in a single transaction. Backfill uses
// this path for paginated kline batches.
func (s *Store) InsertCandleBatch(records []CandleRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin candle transaction", err)
	}

	for _, record := range records {
		candle := record.Candle

		_, err := s.sq.Insert("candles").
			Columns("timestamp", "symbol", "exchange", "open", "high", "low", "close", "volume").
			Values(candle.Timestamp, record.Symbol, record.Exchange,
				candle.Open, candle.High, candle.Low, candle.Close, candle.Volume).
			RunWith(tx).
			Exec()
		if err != nil {
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit candle transaction", err)
	}

	return nil
}

// InsertNewsEvent persists one scored news item. Currencies are stored as a
// comma-separated list.
func (s *Store) InsertNewsEvent(record NewsRecord) error {
	_, err := s.sq.Insert("news_events").
		Columns("timestamp", "source", "title", "sentiment", "urgency", "currencies").
		Values(record.Timestamp, record.Source, record.Title, record.Sentiment,
			record.UrgencyScore, strings.Join(record.Currencies, ",")).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert news event", err)
	}

	return nil
}

// InsertPricePoint persists one external reference price for a market.
func (s *Store) InsertPricePoint(market string, point types.PricePoint) error {
	_, err := s.sq.Insert("external_prices").
		Columns("timestamp", "market", "price").
		Values(point.Timestamp, market, point.Price).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to insert price point", err)
	}

	return nil
}
