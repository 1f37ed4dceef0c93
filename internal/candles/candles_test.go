package candles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickAt(a *Aggregator, tick uint64, simTime int64, price float64, volume int64) {
	a.OnTick(tick, simTime, map[string]float64{"OIL": price}, map[string]int64{"OIL": volume})
}

func TestIntervalValidation(t *testing.T) {
	assert.True(t, IntervalM1.Valid())
	assert.True(t, IntervalD1.Valid())
	assert.False(t, Interval("2m").Valid())
	assert.Len(t, Intervals(), 6)

	iv, err := ParseInterval("30m")
	require.NoError(t, err)
	assert.Equal(t, IntervalM30, iv)
	_, err = ParseInterval("1w")
	assert.Error(t, err)
}

func TestSinceFiltersOlderCandles(t *testing.T) {
	a := NewAggregator()
	base := int64(1_000_000 * 60_000)
	for i := 0; i < 5; i++ {
		tickAt(a, uint64(i+1), base+int64(i)*60_000, 70.0+float64(i), 1)
	}

	cs := a.Candles("OIL", IntervalM1, base+2*60_000, 0)
	require.Len(t, cs, 3)
	assert.Equal(t, base+2*60_000, cs[0].OpenTime)
	assert.Equal(t, 74.0, cs[2].Close)
}

func TestSingleBucketTracksOHLCV(t *testing.T) {
	a := NewAggregator()
	base := int64(1_000_000 * 60_000) // minute-aligned

	tickAt(a, 1, base, 75.0, 10)
	tickAt(a, 2, base+1_000, 77.0, 5)
	tickAt(a, 3, base+2_000, 74.0, 3)
	tickAt(a, 4, base+3_000, 76.0, 0)

	cs := a.Candles("OIL", IntervalM1, 0, 0)
	require.Len(t, cs, 1)
	assert.Equal(t, base, cs[0].OpenTime)
	assert.Equal(t, 75.0, cs[0].Open)
	assert.Equal(t, 77.0, cs[0].High)
	assert.Equal(t, 74.0, cs[0].Low)
	assert.Equal(t, 76.0, cs[0].Close)
	assert.Equal(t, int64(18), cs[0].Volume)
}

func TestBucketRolloverClosesCandle(t *testing.T) {
	a := NewAggregator()
	base := int64(1_000_000 * 60_000)

	tickAt(a, 1, base, 75.0, 10)
	tickAt(a, 2, base+60_000, 80.0, 4)

	cs := a.Candles("OIL", IntervalM1, 0, 0)
	require.Len(t, cs, 2)
	assert.Equal(t, 75.0, cs[0].Close)
	assert.Equal(t, int64(10), cs[0].Volume)
	assert.Equal(t, base+60_000, cs[1].OpenTime)
	assert.Equal(t, 80.0, cs[1].Open)

	// both minutes share one M5 bucket
	m5 := a.Candles("OIL", IntervalM5, 0, 0)
	require.Len(t, m5, 1)
	assert.Equal(t, 75.0, m5[0].Open)
	assert.Equal(t, 80.0, m5[0].Close)
	assert.Equal(t, int64(14), m5[0].Volume)
}

func TestLimitReturnsLatest(t *testing.T) {
	a := NewAggregator()
	base := int64(1_000_000 * 60_000)
	for i := 0; i < 10; i++ {
		tickAt(a, uint64(i+1), base+int64(i)*60_000, 70.0+float64(i), 1)
	}

	cs := a.Candles("OIL", IntervalM1, 0, 3)
	require.Len(t, cs, 3)
	assert.Equal(t, 77.0, cs[0].Close)
	assert.Equal(t, 79.0, cs[2].Close)
}

func TestRetentionCap(t *testing.T) {
	a := NewAggregator()
	a.SetMaxCandles(5)
	base := int64(1_000_000 * 60_000)
	for i := 0; i < 20; i++ {
		tickAt(a, uint64(i+1), base+int64(i)*60_000, 70.0, 1)
	}
	// 5 closed plus the open bucket
	assert.Len(t, a.Candles("OIL", IntervalM1, 0, 0), 6)
}

func TestBulkAndUnknownSymbol(t *testing.T) {
	a := NewAggregator()
	base := int64(1_000_000 * 60_000)
	a.OnTick(1, base,
		map[string]float64{"OIL": 75, "STEEL": 120},
		map[string]int64{"OIL": 2, "STEEL": 3})

	bulk := a.Bulk(IntervalM1, 0)
	require.Len(t, bulk, 2)
	assert.Equal(t, 75.0, bulk["OIL"][0].Close)
	assert.Equal(t, 120.0, bulk["STEEL"][0].Close)

	assert.Nil(t, a.Candles("GOLD", IntervalM1, 0, 0))
}

func TestResetDropsSeries(t *testing.T) {
	a := NewAggregator()
	tickAt(a, 1, 60_000, 75.0, 1)
	require.NotEmpty(t, a.Candles("OIL", IntervalM1, 0, 0))
	a.Reset()
	assert.Nil(t, a.Candles("OIL", IntervalM1, 0, 0))
}
