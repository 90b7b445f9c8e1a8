package core

// Stream identifies the detection stream an aggregate row was emitted by
type Stream string

const (
	StreamVolumeBaseline  Stream = "vol_baseline"
	StreamOhlcVolatility  Stream = "ohlc_vol"
	StreamRapidFire       Stream = "rapid_fire"
	StreamWashScore       Stream = "wash_score"
	StreamSuspiciousMatch Stream = "suspicious_match"
	StreamAsofMatch       Stream = "asof_match"
)

// Streams lists every detection stream in a stable order
var Streams = []Stream{
	StreamVolumeBaseline,
	StreamOhlcVolatility,
	StreamRapidFire,
	StreamWashScore,
	StreamSuspiciousMatch,
	StreamAsofMatch,
}

// String returns the string representation
func (s Stream) String() string {
	return string(s)
}

// IsValid checks if the stream is known
func (s Stream) IsValid() bool {
	for _, known := range Streams {
		if s == known {
			return true
		}
	}
	return false
}

// AggregateRow is a row emitted by the streaming pipeline for one detection
// stream. Implementations are immutable values.
type AggregateRow interface {
	// Stream returns the detection stream that produced the row
	Stream() Stream
	// GroupKey returns the grouping key the row was aggregated on
	// (symbol, account, or account and symbol)
	GroupKey() string
}

// compositeKey joins an account and a symbol into one grouping key
func compositeKey(account, symbol string) string {
	return account + "/" + symbol
}

// VolumeBaseline is the per-symbol volume aggregate
type VolumeBaseline struct {
	Symbol      string  `json:"symbol"`
	TotalVolume int64   `json:"total_volume"`
	TradeCount  int64   `json:"trade_count"`
	AvgPrice    float64 `json:"avg_price"`
}

func (VolumeBaseline) Stream() Stream     { return StreamVolumeBaseline }
func (r VolumeBaseline) GroupKey() string { return r.Symbol }

// OhlcVolatility is the per-symbol OHLC bar
type OhlcVolatility struct {
	Symbol     string  `json:"symbol"`
	BarStart   int64   `json:"bar_start"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     int64   `json:"volume"`
	PriceRange float64 `json:"price_range"`
}

func (OhlcVolatility) Stream() Stream     { return StreamOhlcVolatility }
func (r OhlcVolatility) GroupKey() string { return r.Symbol }

// RapidFireBurst is the per-account burst session aggregate
type RapidFireBurst struct {
	AccountID   string  `json:"account_id"`
	BurstTrades int64   `json:"burst_trades"`
	BurstVolume int64   `json:"burst_volume"`
	Low         float64 `json:"low"`
	High        float64 `json:"high"`
}

func (RapidFireBurst) Stream() Stream     { return StreamRapidFire }
func (r RapidFireBurst) GroupKey() string { return r.AccountID }

// WashScore is the per account and symbol buy/sell balance
type WashScore struct {
	AccountID  string `json:"account_id"`
	Symbol     string `json:"symbol"`
	BuyVolume  int64  `json:"buy_volume"`
	SellVolume int64  `json:"sell_volume"`
	BuyCount   int64  `json:"buy_count"`
	SellCount  int64  `json:"sell_count"`
}

func (WashScore) Stream() Stream     { return StreamWashScore }
func (r WashScore) GroupKey() string { return compositeKey(r.AccountID, r.Symbol) }

// SuspiciousMatch is a trade joined to an order on the same symbol
type SuspiciousMatch struct {
	Symbol     string  `json:"symbol"`
	TradePrice float64 `json:"trade_price"`
	Volume     int64   `json:"volume"`
	OrderID    string  `json:"order_id"`
	AccountID  string  `json:"account_id"`
	Side       Side    `json:"side"`
	OrderPrice float64 `json:"order_price"`
	PriceDiff  float64 `json:"price_diff"`
}

func (SuspiciousMatch) Stream() Stream     { return StreamSuspiciousMatch }
func (r SuspiciousMatch) GroupKey() string { return compositeKey(r.AccountID, r.Symbol) }

// AsofMatch joins a trade to the latest order the same account placed on
// the same symbol at or before the trade
type AsofMatch struct {
	Symbol      string  `json:"symbol"`
	AccountID   string  `json:"account_id"`
	Side        Side    `json:"side"`
	OrderID     string  `json:"order_id"`
	OrderPrice  float64 `json:"order_price"`
	OrderTs     int64   `json:"order_ts"`
	TradePrice  float64 `json:"trade_price"`
	TradeVolume int64   `json:"trade_volume"`
	TradeTs     int64   `json:"trade_ts"`
}

func (AsofMatch) Stream() Stream     { return StreamAsofMatch }
func (r AsofMatch) GroupKey() string { return compositeKey(r.AccountID, r.Symbol) }
