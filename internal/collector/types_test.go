package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	config := NewConfig("BTCUSDT")

	assert.Equal(t, "btcusdt", config.Symbol)
	assert.Equal(t, "BTCUSDT", config.SymbolUpper())
	assert.Equal(t, 5*time.Second, config.ReconnectDelay)
	assert.Equal(t, 0, config.MaxReconnectAttempts)
	assert.Equal(t, "binance", config.Exchange)
}

func TestConfigBuilders(t *testing.T) {
	config := NewConfig("solusdt").
		WithReconnectDelay(10 * time.Second).
		WithMaxReconnectAttempts(5).
		WithExchange("hyperliquid")

	assert.Equal(t, "solusdt", config.Symbol)
	assert.Equal(t, 10*time.Second, config.ReconnectDelay)
	assert.Equal(t, 5, config.MaxReconnectAttempts)
	assert.Equal(t, "hyperliquid", config.Exchange)
}

func TestStatsCounters(t *testing.T) {
	stats := &Stats{}

	snapshot := stats.Snapshot()
	assert.Zero(t, snapshot.RecordsCollected)
	assert.True(t, snapshot.LastRecordTime.IsZero())

	stats.RecordCollected()
	stats.RecordCollected()
	stats.ErrorOccurred()
	stats.Reconnected()
	stats.Reconnected()
	stats.Reconnected()

	snapshot = stats.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RecordsCollected)
	assert.Equal(t, uint64(1), snapshot.ErrorsOccurred)
	assert.Equal(t, uint64(3), snapshot.Reconnections)
	assert.False(t, snapshot.LastRecordTime.IsZero())
}

func TestEventTypeStrings(t *testing.T) {
	assert.Equal(t, "connected", EventConnected.String())
	assert.Equal(t, "disconnected", EventDisconnected.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "heartbeat", EventHeartbeat.String())
	assert.Equal(t, "reconnecting", EventReconnecting.String())
}
