package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// emitEvent sends a lifecycle event without blocking; monitoring must never
// stall collection.
func emitEvent(events chan<- Event, event Event) {
	if events == nil {
		return
	}

	event.Timestamp = time.Now()

	select {
	case events <- event:
	default:
	}
}

// runWithReconnect drives one collector stream, reconnecting on failure until
// the context is cancelled, the stream exits cleanly or the attempt limit is
// reached.
func runWithReconnect(
	ctx context.Context,
	config Config,
	source string,
	events chan<- Event,
	stats *Stats,
	log *logger.Logger,
	collect func(ctx context.Context) error,
) error {
	attempts := 0

	for {
		emitEvent(events, Event{Type: EventReconnecting, Source: source, Attempt: attempts})

		err := collect(ctx)
		if err == nil {
			log.Info("collector exiting cleanly", zap.String("source", source))

			return nil
		}

		if ctx.Err() != nil {
			log.Info("collector stopped", zap.String("source", source))

			return nil
		}

		stats.ErrorOccurred()
		log.Error("collector stream error", zap.String("source", source), zap.Error(err))
		emitEvent(events, Event{Type: EventError, Source: source, Reason: err.Error()})

		attempts++
		if config.MaxReconnectAttempts > 0 && attempts >= config.MaxReconnectAttempts {
			return errors.Newf(errors.ErrCodeReconnectExhausted,
				"giving up after %d reconnect attempts", attempts)
		}

		stats.Reconnected()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(config.ReconnectDelay):
		}
	}
}
