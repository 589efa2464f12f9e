package collector

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/store"
	"github.com/rxtech-lab/argo-signals/internal/types"
	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

// klinePageSize is the Binance API page limit.
const klinePageSize = 500

// CandleSink receives backfilled candle batches.
type CandleSink interface {
	InsertCandleBatch(records []store.CandleRecord) error
}

// OhlcvBackfill downloads historical klines from Binance and writes them to
// the sink in paginated batches.
type OhlcvBackfill struct {
	config       Config
	client       *binance.Client
	sink         CandleSink
	logger       *logger.Logger
	showProgress bool
}

// NewOhlcvBackfill creates a backfiller using an unauthenticated Binance
// client; kline endpoints need no API key.
func NewOhlcvBackfill(config Config, sink CandleSink) *OhlcvBackfill {
	return &OhlcvBackfill{
		config: config,
		client: binance.NewClient("", ""),
		sink:   sink,
		logger: logger.NewNopLogger(),
	}
}

// WithLogger sets the backfill logger.
func (b *OhlcvBackfill) WithLogger(log *logger.Logger) *OhlcvBackfill {
	if log != nil {
		b.logger = log
	}

	return b
}

// WithProgressBar enables a terminal progress bar during backfill.
func (b *OhlcvBackfill) WithProgressBar() *OhlcvBackfill {
	b.showProgress = true

	return b
}

// Backfill downloads klines for the configured symbol between start and end
// at the given interval (e.g. "1m", "1h") and persists them. Returns the
// number of candles written.
func (b *OhlcvBackfill) Backfill(ctx context.Context, interval string, start, end time.Time) (int, error) {
	startMillis := start.UnixMilli()
	endMillis := end.UnixMilli()
	currentStart := startMillis

	var bar *progressbar.ProgressBar
	if b.showProgress {
		bar = progressbar.Default(endMillis-startMillis, "backfilling "+b.config.SymbolUpper())
	}

	total := 0

	for {
		klines, err := b.client.NewKlinesService().
			Symbol(b.config.SymbolUpper()).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(klinePageSize).
			Do(ctx)
		if err != nil {
			return total, errors.Wrap(errors.ErrCodeBackfillFailed, "failed to fetch klines", err)
		}

		batch := b.toRecords(klines)
		if err := b.sink.InsertCandleBatch(batch); err != nil {
			return total, errors.Wrap(errors.ErrCodeBackfillFailed, "failed to persist candle batch", err)
		}

		total += len(batch)

		if bar != nil {
			bar.Set64(currentStart - startMillis)
		}

		// Last page: empty or short.
		if len(klines) < klinePageSize {
			break
		}

		// Continue from the close time of the last kline to avoid duplicates.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	if bar != nil {
		bar.Finish()
	}

	b.logger.Info("backfill complete",
		zap.String("symbol", b.config.SymbolUpper()),
		zap.String("interval", interval),
		zap.Int("candles", total),
	)

	return total, nil
}

func (b *OhlcvBackfill) toRecords(klines []*binance.Kline) []store.CandleRecord {
	records := make([]store.CandleRecord, 0, len(klines))

	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		records = append(records, store.CandleRecord{
			Symbol:   b.config.SymbolUpper(),
			Exchange: b.config.Exchange,
			Candle: types.OhlcvCandle{
				Timestamp: time.UnixMilli(k.OpenTime).UTC(),
				Open:      open,
				High:      high,
				Low:       low,
				Close:     closePrice,
				Volume:    volume,
			},
		})
	}

	return records
}
