package pipeline

import (
	"context"
	"math"
	"sort"
	"sync"

	"fraudwatch/core"
	"fraudwatch/metrics"

	"go.uber.org/zap"
)

const (
	// JoinWindowMs bounds how far apart a trade and an order may be to join
	JoinWindowMs = 10_000
	// BarWidthMs is the OHLC bar width used for bar_start
	BarWidthMs = 5_000
	// MaxOrdersPerKey caps the orders remembered per account and symbol
	MaxOrdersPerKey = 64
)

// Memory is an in-process pipeline. Every Poll is one micro-batch tick: it
// drains the buffered events at or below the watermark and emits one row set
// per detection stream. Window semantics are not modelled; a tick is the window.
type Memory struct {
	mu        sync.Mutex
	trades    []core.Trade
	orders    []core.Order
	book      map[string][]core.Order
	watermark int64
	closed    bool
	logger    *zap.SugaredLogger
}

// NewMemory creates an in-process pipeline
func NewMemory(logger *zap.SugaredLogger) *Memory {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Memory{
		book:   make(map[string][]core.Order),
		logger: logger,
	}
}

// Push buffers a batch and advances the watermark. Watermarks that move
// backwards are ignored.
func (m *Memory) Push(ctx context.Context, batch core.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.trades = append(m.trades, batch.Trades...)
	m.orders = append(m.orders, batch.Orders...)
	if batch.Watermark > m.watermark {
		m.watermark = batch.Watermark
	} else if batch.Watermark < m.watermark {
		m.logger.Debugw("Ignoring regressing watermark",
			"watermark", batch.Watermark,
			"current", m.watermark)
	}
	metrics.EventsPushed.Add(float64(batch.Len()))
	return nil
}

// Poll runs one tick
func (m *Memory) Poll(ctx context.Context) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Output{}, ErrClosed
	}

	trades := m.drainTrades()
	orders := m.drainOrders()
	for _, o := range orders {
		key := accountSymbol(o.AccountID, o.Symbol)
		book := append(m.book[key], o)
		if len(book) > MaxOrdersPerKey {
			book = book[len(book)-MaxOrdersPerKey:]
		}
		m.book[key] = book
	}

	rows := aggregate(trades)
	rows = append(rows, m.join(trades)...)
	m.pruneBook()

	processed := len(trades) + len(orders)
	metrics.EventsProcessed.Add(float64(processed))
	return Output{Rows: rows, Processed: processed}, nil
}

// Close releases buffered events. Further calls return ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.trades = nil
	m.orders = nil
	m.book = nil
	return nil
}

// Pending returns the number of buffered events not yet drained
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trades) + len(m.orders)
}

// Watermark returns the current watermark
func (m *Memory) Watermark() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark
}

func (m *Memory) drainTrades() []core.Trade {
	var ready, held []core.Trade
	for _, t := range m.trades {
		if t.Ts <= m.watermark {
			ready = append(ready, t)
		} else {
			held = append(held, t)
		}
	}
	m.trades = held
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].Ts < ready[j].Ts })
	return ready
}

func (m *Memory) drainOrders() []core.Order {
	var ready, held []core.Order
	for _, o := range m.orders {
		if o.Ts <= m.watermark {
			ready = append(ready, o)
		} else {
			held = append(held, o)
		}
	}
	m.orders = held
	sort.SliceStable(ready, func(i, j int) bool { return ready[i].Ts < ready[j].Ts })
	return ready
}

// pruneBook forgets orders that can no longer join a future trade
func (m *Memory) pruneBook() {
	cutoff := m.watermark - JoinWindowMs
	for key, book := range m.book {
		i := 0
		for i < len(book) && book[i].Ts < cutoff {
			i++
		}
		if i == len(book) {
			delete(m.book, key)
			continue
		}
		m.book[key] = book[i:]
	}
}

// join emits, for every trade with a remembered order from the same account
// on the same symbol, the closest order in price as a suspicious match and
// the latest order at or before the trade as an as-of match
func (m *Memory) join(trades []core.Trade) []core.AggregateRow {
	var matches, asof []core.AggregateRow
	for _, t := range trades {
		book := m.book[accountSymbol(t.AccountID, t.Symbol)]
		if len(book) == 0 {
			continue
		}

		var nearest, latest *core.Order
		nearestD := math.Inf(1)
		for i := range book {
			o := &book[i]
			if abs64(o.Ts-t.Ts) > JoinWindowMs {
				continue
			}
			if d := math.Abs(t.Price - o.Price); d < nearestD {
				nearest, nearestD = o, d
			}
			if o.Ts <= t.Ts && (latest == nil || o.Ts >= latest.Ts) {
				latest = o
			}
		}

		if nearest != nil {
			matches = append(matches, core.SuspiciousMatch{
				Symbol:     t.Symbol,
				TradePrice: t.Price,
				Volume:     t.Volume,
				OrderID:    nearest.OrderID,
				AccountID:  nearest.AccountID,
				Side:       nearest.Side,
				OrderPrice: nearest.Price,
				PriceDiff:  t.Price - nearest.Price,
			})
		}
		if latest != nil {
			asof = append(asof, core.AsofMatch{
				Symbol:      t.Symbol,
				AccountID:   t.AccountID,
				Side:        latest.Side,
				OrderID:     latest.OrderID,
				OrderPrice:  latest.Price,
				OrderTs:     latest.Ts,
				TradePrice:  t.Price,
				TradeVolume: t.Volume,
				TradeTs:     t.Ts,
			})
		}
	}
	return append(matches, asof...)
}

func accountSymbol(account, symbol string) string {
	return account + "/" + symbol
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
