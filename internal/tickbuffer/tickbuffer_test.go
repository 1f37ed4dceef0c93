package tickbuffer

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantarc/commodity-sim/internal/news"
)

func record(b *Buffer, tick uint64, price float64, volume int64) {
	b.OnTick(tick, int64(tick)*1000, map[string]float64{"OIL": price}, map[string]int64{"OIL": volume})
}

func TestRowsChainOpenToPriorClose(t *testing.T) {
	b := New(0)
	record(b, 1, 75.0, 10)
	record(b, 2, 76.0, 5)
	record(b, 3, 74.0, 0)

	rows := b.Rows("OIL")
	require.Len(t, rows, 3)

	assert.Equal(t, 75.0, rows[0].Open)
	assert.Equal(t, 75.0, rows[0].Close)

	assert.Equal(t, 75.0, rows[1].Open)
	assert.Equal(t, 76.0, rows[1].Close)
	assert.Equal(t, 76.0, rows[1].High)
	assert.Equal(t, 75.0, rows[1].Low)

	assert.Equal(t, 76.0, rows[2].Open)
	assert.Equal(t, 74.0, rows[2].Close)
	assert.Equal(t, 74.0, rows[2].Low)
}

func TestCapacityEvictsOldest(t *testing.T) {
	b := New(5)
	for i := 1; i <= 8; i++ {
		record(b, uint64(i), 70.0+float64(i), 1)
	}
	rows := b.Rows("OIL")
	require.Len(t, rows, 5)
	assert.Equal(t, uint64(4), rows[0].Tick)
	assert.Equal(t, uint64(8), rows[4].Tick)
}

func TestNewsAttributedToDeliveringTick(t *testing.T) {
	b := New(0)
	b.OnNews(news.Event{ID: uuid.New(), Category: news.CategoryGlobal, Headline: "a"})
	record(b, 1, 75.0, 0)
	record(b, 2, 75.0, 0)
	b.OnNews(news.Event{ID: uuid.New(), Category: news.CategorySupply, Symbol: "OIL", Headline: "b"})
	record(b, 3, 75.0, 0)

	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Len(t, b.newsByTick[uint64(1)], 1)
	assert.Empty(t, b.newsByTick[uint64(2)])
	assert.Len(t, b.newsByTick[uint64(3)], 1)
}

func TestExportCSVLayout(t *testing.T) {
	dir := t.TempDir()
	b := New(0)
	b.OnTick(1, 1000,
		map[string]float64{"OIL": 75, "STEEL": 120},
		map[string]int64{"OIL": 10, "STEEL": 0})
	b.OnTick(2, 2000,
		map[string]float64{"OIL": 76, "STEEL": 119},
		map[string]int64{"OIL": 3, "STEEL": 1})

	require.NoError(t, b.ExportCSV(dir, 0))

	f, err := os.Open(filepath.Join(dir, "OIL.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"tick", "open", "high", "low", "close", "volume"}, records[0])
	assert.Equal(t, []string{"1", "75.0000", "75.0000", "75.0000", "75.0000", "10.00"}, records[1])
	assert.Equal(t, []string{"2", "75.0000", "76.0000", "75.0000", "76.0000", "3.00"}, records[2])

	assert.FileExists(t, filepath.Join(dir, "STEEL.csv"))

	var meta struct {
		TotalTicks    uint64   `json:"totalTicks"`
		ExportedTicks int      `json:"exportedTicks"`
		Commodities   []string `json:"commodities"`
		ExportedAt    string   `json:"exportedAt"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, uint64(2), meta.TotalTicks)
	assert.Equal(t, 2, meta.ExportedTicks)
	assert.Equal(t, []string{"OIL", "STEEL"}, meta.Commodities)
	assert.NotEmpty(t, meta.ExportedAt)
}

func TestExportJSONLayout(t *testing.T) {
	dir := t.TempDir()
	b := New(0)
	b.OnNews(news.Event{ID: uuid.New(), Category: news.CategoryGlobal, Headline: "boom"})
	record(b, 1, 75.0, 2)

	require.NoError(t, b.ExportJSON(dir, 0))

	var doc struct {
		OIL struct {
			Ticks []Row `json:"ticks"`
		} `json:"OIL"`
		News map[string][]news.Event `json:"_news"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "market_data.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.OIL.Ticks, 1)
	assert.Equal(t, 75.0, doc.OIL.Ticks[0].Close)
	require.Len(t, doc.News["1"], 1)
	assert.Equal(t, "boom", doc.News["1"][0].Headline)

	assert.FileExists(t, filepath.Join(dir, "metadata.json"))
}

func TestExportCSVMaxTicksKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	b := New(0)
	for i := 1; i <= 6; i++ {
		record(b, uint64(i), 70.0+float64(i), 1)
	}

	require.NoError(t, b.ExportCSV(dir, 2))

	f, err := os.Open(filepath.Join(dir, "OIL.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "5", records[1][0])
	assert.Equal(t, "6", records[2][0])
	assert.Equal(t, "76.0000", records[2][4])
}

func TestResetClearsEverything(t *testing.T) {
	b := New(0)
	b.OnNews(news.Event{ID: uuid.New()})
	record(b, 1, 75.0, 1)
	b.Reset()
	assert.Empty(t, b.Rows("OIL"))
	assert.Empty(t, b.Symbols())
}
