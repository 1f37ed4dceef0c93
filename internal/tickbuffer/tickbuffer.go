// Package tickbuffer retains a bounded per-tick OHLCV history for every
// symbol, plus the news stream keyed by tick, and exports both to disk.
package tickbuffer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/quantarc/commodity-sim/internal/news"
)

// Row is one symbol's state at the end of one tick. Open carries the prior
// tick's close so consecutive rows chain into a continuous series.
type Row struct {
	Tick   uint64  `json:"tick"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

const defaultCapacity = 100_000

// Buffer is safe for concurrent use. Wire OnNews as the engine news callback
// and OnTick as a tick listener; news arriving mid-tick is attributed to the
// tick that delivers it.
type Buffer struct {
	mu        sync.RWMutex
	capacity  int
	rows      map[string][]Row
	lastClose map[string]float64

	pendingNews []news.Event
	newsByTick  map[uint64][]news.Event

	totalTicks uint64
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer{
		capacity:   capacity,
		rows:       make(map[string][]Row),
		lastClose:  make(map[string]float64),
		newsByTick: make(map[uint64][]news.Event),
	}
}

// OnNews queues an event for attribution to the tick in flight.
func (b *Buffer) OnNews(ev news.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingNews = append(b.pendingNews, ev)
}

// OnTick appends one row per symbol and flushes pending news under the tick
// number.
func (b *Buffer) OnTick(tick uint64, simTime int64, prices map[string]float64, volumes map[string]int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalTicks = tick

	for symbol, price := range prices {
		open, ok := b.lastClose[symbol]
		if !ok {
			open = price
		}
		high, low := open, open
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
		row := Row{
			Tick:   tick,
			Time:   simTime,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: volumes[symbol],
		}
		rows := append(b.rows[symbol], row)
		if len(rows) > b.capacity {
			rows = rows[len(rows)-b.capacity:]
		}
		b.rows[symbol] = rows
		b.lastClose[symbol] = price
	}

	if len(b.pendingNews) > 0 {
		b.newsByTick[tick] = append(b.newsByTick[tick], b.pendingNews...)
		b.pendingNews = nil
	}
}

// Rows returns the retained rows for symbol, oldest first.
func (b *Buffer) Rows(symbol string) []Row {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Row(nil), b.rows[symbol]...)
}

// Symbols returns the tracked symbols in sorted order.
func (b *Buffer) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.symbolsLocked()
}

func (b *Buffer) symbolsLocked() []string {
	symbols := make([]string, 0, len(b.rows))
	for symbol := range b.rows {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Reset drops all retained data.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = make(map[string][]Row)
	b.lastClose = make(map[string]float64)
	b.pendingNews = nil
	b.newsByTick = make(map[uint64][]news.Event)
	b.totalTicks = 0
}

type metadata struct {
	TotalTicks    uint64   `json:"totalTicks"`
	ExportedTicks int      `json:"exportedTicks"`
	Commodities   []string `json:"commodities"`
	ExportedAt    string   `json:"exportedAt"`
}

// limitRows keeps the newest maxTicks rows; maxTicks <= 0 keeps everything.
func limitRows(rows []Row, maxTicks int) []Row {
	if maxTicks > 0 && len(rows) > maxTicks {
		return rows[len(rows)-maxTicks:]
	}
	return rows
}

func (b *Buffer) buildMetadata(maxTicks int) metadata {
	symbols := b.symbolsLocked()
	exported := 0
	for _, symbol := range symbols {
		if n := len(limitRows(b.rows[symbol], maxTicks)); n > exported {
			exported = n
		}
	}
	return metadata{
		TotalTicks:    b.totalTicks,
		ExportedTicks: exported,
		Commodities:   symbols,
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// ExportCSV writes one <symbol>.csv per symbol plus metadata.json into dir.
// maxTicks <= 0 exports the whole buffer.
func (b *Buffer) ExportCSV(dir string, maxTicks int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir %s: %w", dir, err)
	}

	for _, symbol := range b.symbolsLocked() {
		if err := writeSymbolCSV(filepath.Join(dir, symbol+".csv"), limitRows(b.rows[symbol], maxTicks)); err != nil {
			return err
		}
	}
	return writeJSONFile(filepath.Join(dir, "metadata.json"), b.buildMetadata(maxTicks))
}

func writeSymbolCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"tick", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatUint(r.Tick, 10),
			strconv.FormatFloat(r.Open, 'f', 4, 64),
			strconv.FormatFloat(r.High, 'f', 4, 64),
			strconv.FormatFloat(r.Low, 'f', 4, 64),
			strconv.FormatFloat(r.Close, 'f', 4, 64),
			strconv.FormatFloat(float64(r.Volume), 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// ExportJSON writes a single market_data.json into dir: each symbol keyed to
// its {ticks: [...]} series plus a _news member keyed by tick, with
// metadata.json alongside. maxTicks <= 0 exports the whole buffer.
func (b *Buffer) ExportJSON(dir string, maxTicks int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir %s: %w", dir, err)
	}

	doc := make(map[string]any, len(b.rows)+1)
	for _, symbol := range b.symbolsLocked() {
		doc[symbol] = map[string]any{"ticks": limitRows(b.rows[symbol], maxTicks)}
	}

	newsOut := make(map[string][]news.Event, len(b.newsByTick))
	for tick, events := range b.newsByTick {
		newsOut[strconv.FormatUint(tick, 10)] = events
	}
	doc["_news"] = newsOut

	if err := writeJSONFile(filepath.Join(dir, "market_data.json"), doc); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(dir, "metadata.json"), b.buildMetadata(maxTicks))
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
