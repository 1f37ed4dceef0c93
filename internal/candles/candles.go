// Package candles aggregates per-tick closing prices into fixed-interval
// OHLCV series.
package candles

import (
	"fmt"
	"sync"
)

// Interval names a candle width in simulated time. The string form is what
// the HTTP layer accepts.
type Interval string

const (
	IntervalM1  Interval = "1m"
	IntervalM5  Interval = "5m"
	IntervalM15 Interval = "15m"
	IntervalM30 Interval = "30m"
	IntervalH1  Interval = "1h"
	IntervalD1  Interval = "1d"
)

var intervalMs = map[Interval]int64{
	IntervalM1:  60_000,
	IntervalM5:  5 * 60_000,
	IntervalM15: 15 * 60_000,
	IntervalM30: 30 * 60_000,
	IntervalH1:  60 * 60_000,
	IntervalD1:  24 * 60 * 60_000,
}

// Intervals lists the supported widths, narrowest first.
func Intervals() []Interval {
	return []Interval{IntervalM1, IntervalM5, IntervalM15, IntervalM30, IntervalH1, IntervalD1}
}

// Valid reports whether the interval is one of the supported widths.
func (i Interval) Valid() bool {
	_, ok := intervalMs[i]
	return ok
}

// ParseInterval converts the wire string into an Interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !iv.Valid() {
		return "", fmt.Errorf("unknown candle interval %q", s)
	}
	return iv, nil
}

// Candle is one OHLCV bucket. OpenTime is the bucket start in simulated
// epoch milliseconds.
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
}

type series struct {
	current *Candle
	closed  []Candle
}

const defaultMaxCandles = 10_000

// Aggregator folds the tick stream into candle series per symbol and
// interval. Wire OnTick as an engine tick listener.
type Aggregator struct {
	mu         sync.RWMutex
	maxCandles int
	data       map[string]map[Interval]*series
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		maxCandles: defaultMaxCandles,
		data:       make(map[string]map[Interval]*series),
	}
}

// SetMaxCandles caps how many closed candles each series retains.
func (a *Aggregator) SetMaxCandles(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxCandles = n
}

// OnTick folds one tick's closing prices and volumes into every series.
func (a *Aggregator) OnTick(tick uint64, simTime int64, prices map[string]float64, volumes map[string]int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for symbol, price := range prices {
		bySymbol, ok := a.data[symbol]
		if !ok {
			bySymbol = make(map[Interval]*series, len(intervalMs))
			a.data[symbol] = bySymbol
		}
		volume := volumes[symbol]

		for interval, width := range intervalMs {
			s, ok := bySymbol[interval]
			if !ok {
				s = &series{}
				bySymbol[interval] = s
			}
			bucketStart := simTime - simTime%width

			if s.current == nil || s.current.OpenTime != bucketStart {
				if s.current != nil {
					s.closed = append(s.closed, *s.current)
					if len(s.closed) > a.maxCandles {
						s.closed = s.closed[len(s.closed)-a.maxCandles:]
					}
				}
				s.current = &Candle{
					OpenTime: bucketStart,
					Open:     price,
					High:     price,
					Low:      price,
					Close:    price,
					Volume:   volume,
				}
				continue
			}

			if price > s.current.High {
				s.current.High = price
			}
			if price < s.current.Low {
				s.current.Low = price
			}
			s.current.Close = price
			s.current.Volume += volume
		}
	}
}

// Candles returns up to limit candles opened at or after since for the
// symbol and interval, oldest first, including the still-open bucket.
// since <= 0 means from the beginning; limit <= 0 means all.
func (a *Aggregator) Candles(symbol string, interval Interval, since int64, limit int) []Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	bySymbol, ok := a.data[symbol]
	if !ok {
		return nil
	}
	s, ok := bySymbol[interval]
	if !ok {
		return nil
	}

	out := append([]Candle(nil), s.closed...)
	if s.current != nil {
		out = append(out, *s.current)
	}
	if since > 0 {
		cut := 0
		for cut < len(out) && out[cut].OpenTime < since {
			cut++
		}
		out = out[cut:]
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Bulk returns the series for every tracked symbol at one interval.
func (a *Aggregator) Bulk(interval Interval, since int64) map[string][]Candle {
	a.mu.RLock()
	symbols := make([]string, 0, len(a.data))
	for symbol := range a.data {
		symbols = append(symbols, symbol)
	}
	a.mu.RUnlock()

	out := make(map[string][]Candle, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = a.Candles(symbol, interval, since, 0)
	}
	return out
}

// Reset drops every series.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = make(map[string]map[Interval]*series)
}
