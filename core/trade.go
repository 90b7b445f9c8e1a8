package core

// Side is the direction of a trade or order
type Side string

const (
	// SideBuy is a buy trade or order
	SideBuy Side = "buy"
	// SideSell is a sell trade or order
	SideSell Side = "sell"
)

// String returns the string representation
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is valid
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Trade is an executed trade pushed into the pipeline
type Trade struct {
	AccountID string  `json:"account_id" msgpack:"account_id"`
	Symbol    string  `json:"symbol" msgpack:"symbol"`
	Side      Side    `json:"side" msgpack:"side"`
	Price     float64 `json:"price" msgpack:"price"`
	Volume    int64   `json:"volume" msgpack:"volume"`
	OrderRef  string  `json:"order_ref" msgpack:"order_ref"`
	Ts        int64   `json:"ts" msgpack:"ts"` // event time, unix milliseconds
}

// Order is a resting order pushed into the pipeline
type Order struct {
	OrderID   string  `json:"order_id" msgpack:"order_id"`
	AccountID string  `json:"account_id" msgpack:"account_id"`
	Symbol    string  `json:"symbol" msgpack:"symbol"`
	Side      Side    `json:"side" msgpack:"side"`
	Quantity  int64   `json:"quantity" msgpack:"quantity"`
	Price     float64 `json:"price" msgpack:"price"`
	Ts        int64   `json:"ts" msgpack:"ts"` // event time, unix milliseconds
}

// Batch is one push into the pipeline: the input events plus the watermark
// that accompanies them. Watermarks never move backwards.
type Batch struct {
	Trades    []Trade
	Orders    []Order
	Watermark int64
}

// Len returns the number of input events in the batch
func (b Batch) Len() int {
	return len(b.Trades) + len(b.Orders)
}
