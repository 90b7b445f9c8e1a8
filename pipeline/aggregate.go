package pipeline

import (
	"sort"

	"fraudwatch/core"
)

type symbolAgg struct {
	volume   int64
	count    int64
	priceSum float64
	barStart int64
	open     float64
	high     float64
	low      float64
	close    float64
}

type accountAgg struct {
	count  int64
	volume int64
	low    float64
	high   float64
}

type washAgg struct {
	account   string
	symbol    string
	buyVol    int64
	sellVol   int64
	buyCount  int64
	sellCount int64
}

// aggregate builds the windowed rows for one tick of time-ordered trades:
// volume and OHLC per symbol, bursts per account, buy/sell balance per
// account and symbol
func aggregate(trades []core.Trade) []core.AggregateRow {
	if len(trades) == 0 {
		return nil
	}

	symbols := make(map[string]*symbolAgg)
	accounts := make(map[string]*accountAgg)
	wash := make(map[string]*washAgg)

	for _, t := range trades {
		s, ok := symbols[t.Symbol]
		if !ok {
			s = &symbolAgg{
				barStart: t.Ts - t.Ts%BarWidthMs,
				open:     t.Price,
				high:     t.Price,
				low:      t.Price,
			}
			symbols[t.Symbol] = s
		}
		s.volume += t.Volume
		s.count++
		s.priceSum += t.Price
		s.high = max(s.high, t.Price)
		s.low = min(s.low, t.Price)
		s.close = t.Price

		a, ok := accounts[t.AccountID]
		if !ok {
			a = &accountAgg{low: t.Price, high: t.Price}
			accounts[t.AccountID] = a
		}
		a.count++
		a.volume += t.Volume
		a.low = min(a.low, t.Price)
		a.high = max(a.high, t.Price)

		key := accountSymbol(t.AccountID, t.Symbol)
		w, ok := wash[key]
		if !ok {
			w = &washAgg{account: t.AccountID, symbol: t.Symbol}
			wash[key] = w
		}
		switch t.Side {
		case core.SideBuy:
			w.buyVol += t.Volume
			w.buyCount++
		case core.SideSell:
			w.sellVol += t.Volume
			w.sellCount++
		}
	}

	rows := make([]core.AggregateRow, 0, 2*len(symbols)+len(accounts)+len(wash))
	symbolKeys := sortedKeys(symbols)
	for _, sym := range symbolKeys {
		s := symbols[sym]
		rows = append(rows, core.VolumeBaseline{
			Symbol:      sym,
			TotalVolume: s.volume,
			TradeCount:  s.count,
			AvgPrice:    s.priceSum / float64(s.count),
		})
	}
	for _, sym := range symbolKeys {
		s := symbols[sym]
		rows = append(rows, core.OhlcVolatility{
			Symbol:     sym,
			BarStart:   s.barStart,
			Open:       s.open,
			High:       s.high,
			Low:        s.low,
			Close:      s.close,
			Volume:     s.volume,
			PriceRange: s.high - s.low,
		})
	}
	for _, acct := range sortedKeys(accounts) {
		a := accounts[acct]
		rows = append(rows, core.RapidFireBurst{
			AccountID:   acct,
			BurstTrades: a.count,
			BurstVolume: a.volume,
			Low:         a.low,
			High:        a.high,
		})
	}
	for _, key := range sortedKeys(wash) {
		w := wash[key]
		rows = append(rows, core.WashScore{
			AccountID:  w.account,
			Symbol:     w.symbol,
			BuyVolume:  w.buyVol,
			SellVolume: w.sellVol,
			BuyCount:   w.buyCount,
			SellCount:  w.sellCount,
		})
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
