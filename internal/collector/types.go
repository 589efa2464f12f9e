// Package collector streams raw market data from Binance Futures into the
// store: order book depth, forced liquidations, funding rates, OHLCV
// backfill and polled news.
package collector

import (
	"strings"
	"sync"
	"time"
)

// Websocket endpoints for Binance USD-M futures.
const (
	binanceFuturesWS       = "wss://fstream.binance.com/ws/"
	binanceFuturesStreamWS = "wss://fstream.binance.com/stream"
)

// Config is shared collector configuration.
type Config struct {
	// Symbol is the trading pair in stream format, e.g. "btcusdt".
	Symbol string
	// ReconnectDelay between reconnection attempts.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts before giving up; 0 means unlimited.
	MaxReconnectAttempts int
	// Exchange name recorded with every row.
	Exchange string
}

// NewConfig creates a config for the given symbol with a 5 second reconnect
// delay, unlimited attempts and the binance exchange tag. The symbol is
// lowercased for stream subscription.
func NewConfig(symbol string) Config {
	return Config{
		Symbol:               strings.ToLower(symbol),
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 0,
		Exchange:             "binance",
	}
}

// WithReconnectDelay sets the delay between reconnection attempts.
func (c Config) WithReconnectDelay(delay time.Duration) Config {
	c.ReconnectDelay = delay

	return c
}

// WithMaxReconnectAttempts sets the reconnection attempt limit.
func (c Config) WithMaxReconnectAttempts(max int) Config {
	c.MaxReconnectAttempts = max

	return c
}

// WithExchange sets the exchange tag.
func (c Config) WithExchange(exchange string) Config {
	c.Exchange = exchange

	return c
}

// SymbolUpper returns the symbol in record format, e.g. "BTCUSDT".
func (c Config) SymbolUpper() string {
	return strings.ToUpper(c.Symbol)
}

// EventType classifies collector lifecycle events.
type EventType int

const (
	// EventConnected is emitted after a successful stream connection.
	EventConnected EventType = iota
	// EventDisconnected is emitted when a stream closes.
	EventDisconnected
	// EventError is emitted on stream or parse failures.
	EventError
	// EventHeartbeat is emitted periodically for health monitoring.
	EventHeartbeat
	// EventReconnecting is emitted before each connection attempt.
	EventReconnecting
)

// String implements fmt.Stringer.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventHeartbeat:
		return "heartbeat"
	default:
		return "reconnecting"
	}
}

// Event is a collector lifecycle notification for monitoring.
type Event struct {
	Type   EventType
	Source string
	// Reason holds the disconnect reason or error text, when applicable.
	Reason string
	// Attempt is the reconnection attempt number for Reconnecting events.
	Attempt int
	// RecordsCollected accompanies Heartbeat events.
	RecordsCollected uint64
	Timestamp        time.Time
}

// Stats tracks collector throughput. Safe for concurrent use; the status
// server reads it while the collector writes.
type Stats struct {
	mu sync.Mutex

	recordsCollected uint64
	errorsOccurred   uint64
	reconnections    uint64
	lastRecordTime   time.Time
}

// StatsSnapshot is a point-in-time copy of collector statistics.
type StatsSnapshot struct {
	RecordsCollected uint64    `json:"records_collected"`
	ErrorsOccurred   uint64    `json:"errors_occurred"`
	Reconnections    uint64    `json:"reconnections"`
	LastRecordTime   time.Time `json:"last_record_time"`
}

// RecordCollected increments the record count and stamps the record time.
func (s *Stats) RecordCollected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordsCollected++
	s.lastRecordTime = time.Now()
}

// ErrorOccurred increments the error count.
func (s *Stats) ErrorOccurred() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errorsOccurred++
}

// Reconnected increments the reconnection count.
func (s *Stats) Reconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconnections++
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		RecordsCollected: s.recordsCollected,
		ErrorsOccurred:   s.errorsOccurred,
		Reconnections:    s.reconnections,
		LastRecordTime:   s.lastRecordTime,
	}
}
