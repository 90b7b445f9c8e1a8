// Package generator produces synthetic trades and orders with injected
// fraud patterns.
package generator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"fraudwatch/core"
)

// Symbol is a tradable instrument and its starting price
type Symbol struct {
	Name      string
	BasePrice float64
}

// Symbols is the instrument universe
var Symbols = []Symbol{
	{"AAPL", 150},
	{"GOOGL", 2800},
	{"MSFT", 420},
	{"AMZN", 185},
	{"TSLA", 250},
}

var (
	normalAccounts = []string{"ACCT-001", "ACCT-002", "ACCT-003", "ACCT-004", "ACCT-005"}
	fraudAccounts  = []string{"FRAUD-01", "FRAUD-02", "FRAUD-03"}
)

// Scenario is an injected fraud pattern
type Scenario string

const (
	ScenarioVolumeSpike       Scenario = "volume_spike"
	ScenarioPriceManipulation Scenario = "price_manipulation"
	ScenarioRapidFire         Scenario = "rapid_fire"
	ScenarioWashTrading       Scenario = "wash_trading"
	ScenarioFrontRunning      Scenario = "front_running"
)

// Scenarios lists every injectable scenario
var Scenarios = []Scenario{
	ScenarioVolumeSpike,
	ScenarioPriceManipulation,
	ScenarioRapidFire,
	ScenarioWashTrading,
	ScenarioFrontRunning,
}

// String returns the string representation
func (s Scenario) String() string {
	return string(s)
}

// orderProbability is the chance a normal trade comes with a resting order
const orderProbability = 0.3

// Generator produces one batch per cycle. It is not safe for concurrent use.
type Generator struct {
	rng       *rand.Rand
	fraudRate float64
	prices    map[string]float64
	tradeSeq  uint64
	orderSeq  uint64

	manipulationLeft   int
	manipulationSymbol string
	injected           map[Scenario]uint64
}

// New creates a generator. fraudRate is the per-cycle probability of
// injecting a scenario. A zero seed seeds from the clock.
func New(fraudRate float64, seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	prices := make(map[string]float64, len(Symbols))
	for _, s := range Symbols {
		prices[s.Name] = s.BasePrice
	}
	return &Generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fraudRate: min(max(fraudRate, 0), 1),
		prices:    prices,
		injected:  make(map[Scenario]uint64),
	}
}

// FraudRate returns the per-cycle injection probability
func (g *Generator) FraudRate() float64 {
	return g.fraudRate
}

// Prices returns a copy of the current simulated prices
func (g *Generator) Prices() map[string]float64 {
	out := make(map[string]float64, len(g.prices))
	for k, v := range g.prices {
		out[k] = v
	}
	return out
}

// Injected returns how many times each scenario has been injected
func (g *Generator) Injected() map[Scenario]uint64 {
	out := make(map[Scenario]uint64, len(g.injected))
	for k, v := range g.injected {
		out[k] = v
	}
	return out
}

// Cycle generates one batch of events stamped at ts (unix ms), possibly
// with an injected scenario. The batch watermark covers every event in it.
func (g *Generator) Cycle(ts int64) core.Batch {
	if g.fraudRate > 0 && g.rng.Float64() < g.fraudRate {
		return g.Inject(Scenarios[g.rng.IntN(len(Scenarios))], ts)
	}
	return g.normal(ts)
}

// Inject generates one batch carrying the given scenario
func (g *Generator) Inject(s Scenario, ts int64) core.Batch {
	g.injected[s]++

	var batch core.Batch
	switch s {
	case ScenarioVolumeSpike:
		batch = g.volumeSpike(ts)
	case ScenarioPriceManipulation:
		g.manipulationLeft = 3
		g.manipulationSymbol = g.randomSymbol()
	case ScenarioRapidFire:
		batch = g.rapidFire(ts)
	case ScenarioWashTrading:
		batch = g.washTrading(ts)
	case ScenarioFrontRunning:
		batch = g.frontRunning(ts)
	}

	normal := g.normal(ts)
	batch.Trades = append(batch.Trades, normal.Trades...)
	batch.Orders = append(batch.Orders, normal.Orders...)
	batch.Watermark = watermarkOf(batch)
	return batch
}

// StressBatch generates n fraud-free trades spread one millisecond apart
// from ts, with matching orders for a share of them
func (g *Generator) StressBatch(ts int64, n int) core.Batch {
	batch := core.Batch{Trades: make([]core.Trade, 0, n)}
	for i := 0; i < n; i++ {
		sym := Symbols[i%len(Symbols)].Name
		price := g.walk(sym, 0.001)
		account := normalAccounts[g.rng.IntN(len(normalAccounts))]
		side := g.randomSide()
		volume := g.rangeInt(10, 500)
		t := ts + int64(i)

		batch.Trades = append(batch.Trades, g.trade(account, sym, side, price, volume, t))
		if g.rng.Float64() < orderProbability {
			batch.Orders = append(batch.Orders, g.order(account, sym, side, volume, price+price*g.rangeFloat(-0.002, 0.002), t))
		}
	}
	batch.Watermark = ts + StressSpanMs(n)
	return batch
}

// StressSpanMs is the event-time span covered by a stress batch of n trades
func StressSpanMs(n int) int64 {
	return int64(max(n, 1))
}

func (g *Generator) normal(ts int64) core.Batch {
	var batch core.Batch
	for _, s := range Symbols {
		price := g.prices[s.Name]
		if g.manipulationLeft > 0 && g.manipulationSymbol == s.Name {
			price += price * g.rangeFloat(0.02, 0.04)
			g.manipulationLeft--
			if g.manipulationLeft == 0 {
				price *= 0.92
				g.manipulationSymbol = ""
			}
			g.prices[s.Name] = price
		} else {
			price = g.walk(s.Name, 0.005)
		}

		account := normalAccounts[g.rng.IntN(len(normalAccounts))]
		side := g.randomSide()
		volume := g.rangeInt(10, 500)
		batch.Trades = append(batch.Trades, g.trade(account, s.Name, side, price, volume, ts))

		if g.rng.Float64() < orderProbability {
			offset := price * g.rangeFloat(-0.002, 0.002)
			batch.Orders = append(batch.Orders, g.order(account, s.Name, side, volume, price+offset, ts))
		}
	}
	batch.Watermark = ts
	return batch
}

// volumeSpike: 5-10 trades at 10-50x normal volume from one fraud account
func (g *Generator) volumeSpike(ts int64) core.Batch {
	sym := g.randomSymbol()
	price := g.prices[sym]
	account := g.randomFraudAccount()

	var batch core.Batch
	for i, n := 0, g.rangeInt(5, 11); i < int(n); i++ {
		volume := g.rangeInt(10, 500) * g.rangeInt(10, 50)
		p := price + price*g.rangeFloat(-0.001, 0.001)
		batch.Trades = append(batch.Trades, g.trade(account, sym, g.randomSide(), p, volume, ts))
	}
	return batch
}

// rapidFire: 20-30 trades 50-100ms apart from one fraud account
func (g *Generator) rapidFire(ts int64) core.Batch {
	sym := g.randomSymbol()
	price := g.prices[sym]
	account := g.randomFraudAccount()

	var batch core.Batch
	for i, n := int64(0), g.rangeInt(20, 31); i < n; i++ {
		t := ts + i*g.rangeInt(50, 100)
		p := price + price*g.rangeFloat(-0.001, 0.001)
		batch.Trades = append(batch.Trades, g.trade(account, sym, g.randomSide(), p, g.rangeInt(10, 100), t))
	}
	return batch
}

// washTrading: 3-6 equal buy/sell pairs from one fraud account
func (g *Generator) washTrading(ts int64) core.Batch {
	sym := g.randomSymbol()
	price := g.prices[sym]
	account := g.randomFraudAccount()

	var batch core.Batch
	for i, n := int64(0), g.rangeInt(3, 7); i < n; i++ {
		volume := g.rangeInt(50, 200)
		batch.Trades = append(batch.Trades,
			g.trade(account, sym, core.SideBuy, price, volume, ts),
			g.trade(account, sym, core.SideSell, price+g.rangeFloat(-0.01, 0.01), volume, ts),
		)
	}
	return batch
}

// frontRunning: a fraud account rests an order, then trades 20-400ms later
// after price has moved 0.3-1% in the order's favour
func (g *Generator) frontRunning(ts int64) core.Batch {
	sym := g.randomSymbol()
	price := g.prices[sym]
	account := g.randomFraudAccount()
	side := g.randomSide()
	volume := g.rangeInt(100, 1000)

	move := price * g.rangeFloat(0.003, 0.01)
	tradePrice := price + move
	if side == core.SideSell {
		tradePrice = price - move
	}

	return core.Batch{
		Orders: []core.Order{g.order(account, sym, side, volume, price, ts)},
		Trades: []core.Trade{g.trade(account, sym, side, tradePrice, volume, ts+g.rangeInt(20, 400))},
	}
}

func (g *Generator) trade(account, sym string, side core.Side, price float64, volume, ts int64) core.Trade {
	g.tradeSeq++
	return core.Trade{
		AccountID: account,
		Symbol:    sym,
		Side:      side,
		Price:     price,
		Volume:    volume,
		OrderRef:  fmt.Sprintf("T-%06d", g.tradeSeq),
		Ts:        ts,
	}
}

func (g *Generator) order(account, sym string, side core.Side, quantity int64, price float64, ts int64) core.Order {
	g.orderSeq++
	return core.Order{
		OrderID:   fmt.Sprintf("ORD-%06d", g.orderSeq),
		AccountID: account,
		Symbol:    sym,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Ts:        ts,
	}
}

// walk moves a symbol's price by a random fraction within ±step
func (g *Generator) walk(sym string, step float64) float64 {
	price := g.prices[sym]
	price += price * g.rangeFloat(-step, step)
	g.prices[sym] = price
	return price
}

func (g *Generator) randomSymbol() string {
	return Symbols[g.rng.IntN(len(Symbols))].Name
}

func (g *Generator) randomFraudAccount() string {
	return fraudAccounts[g.rng.IntN(len(fraudAccounts))]
}

func (g *Generator) randomSide() core.Side {
	if g.rng.IntN(2) == 0 {
		return core.SideBuy
	}
	return core.SideSell
}

// rangeInt returns a value in [lo, hi)
func (g *Generator) rangeInt(lo, hi int64) int64 {
	return lo + g.rng.Int64N(hi-lo)
}

// rangeFloat returns a value in [lo, hi)
func (g *Generator) rangeFloat(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func watermarkOf(b core.Batch) int64 {
	var wm int64
	for _, t := range b.Trades {
		wm = max(wm, t.Ts)
	}
	for _, o := range b.Orders {
		wm = max(wm, o.Ts)
	}
	return wm
}
