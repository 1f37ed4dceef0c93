package news

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerator(seed int64) *Generator {
	g := NewGenerator(rand.New(rand.NewSource(seed)), 0.12, 0.02, 0.04, 0.05, 0.05)
	g.SetCommodities(
		[]string{"OIL", "STEEL", "WOOD", "BRICK", "GRAIN"},
		map[string]string{"OIL": "Crude Oil", "STEEL": "Steel", "WOOD": "Lumber", "BRICK": "Brick", "GRAIN": "Grain"},
		map[string]string{"OIL": "Energy", "STEEL": "Industrial", "WOOD": "Construction", "BRICK": "Construction", "GRAIN": "Agriculture"},
	)
	return g
}

func TestDeterministicUnderSeed(t *testing.T) {
	a := testGenerator(7)
	b := testGenerator(7)

	for tick := 0; tick < 5000; tick++ {
		ea := a.Generate(int64(tick), 1.0)
		eb := b.Generate(int64(tick), 1.0)
		require.Equal(t, len(ea), len(eb))
		for i := range ea {
			// ids are random, everything else must match
			assert.Equal(t, ea[i].Category, eb[i].Category)
			assert.Equal(t, ea[i].Sentiment, eb[i].Sentiment)
			assert.Equal(t, ea[i].Symbol, eb[i].Symbol)
			assert.Equal(t, ea[i].Magnitude, eb[i].Magnitude)
			assert.Equal(t, ea[i].Headline, eb[i].Headline)
		}
	}
}

func TestEventShape(t *testing.T) {
	g := testGenerator(42)

	var events []Event
	for tick := 0; tick < 20000 && len(events) < 500; tick++ {
		events = append(events, g.Generate(int64(tick), 1.0)...)
	}
	require.NotEmpty(t, events)

	for _, ev := range events {
		assert.NotEqual(t, "", ev.Headline)
		assert.GreaterOrEqual(t, ev.Magnitude, 0.0)
		switch ev.Category {
		case CategoryGlobal, CategoryPolitical:
			assert.Empty(t, ev.Symbol)
		case CategorySupply:
			assert.Contains(t, []string{"OIL", "STEEL", "WOOD", "BRICK", "GRAIN"}, ev.Symbol)
			assert.Contains(t, supplySubcategories, ev.Subcategory)
		case CategoryDemand:
			assert.Contains(t, []string{"OIL", "STEEL", "WOOD", "BRICK", "GRAIN"}, ev.Symbol)
			assert.Contains(t, demandSubcategories, ev.Subcategory)
		}
	}
}

func TestCategoryAndSentimentBias(t *testing.T) {
	g := testGenerator(1)

	counts := map[Category]int{}
	supplySent := map[Sentiment]int{}
	demandSent := map[Sentiment]int{}
	total := 0
	for tick := 0; total < 20000; tick++ {
		for _, ev := range g.Generate(int64(tick), 50.0) {
			counts[ev.Category]++
			total++
			if ev.Category == CategorySupply {
				supplySent[ev.Sentiment]++
			}
			if ev.Category == CategoryDemand {
				demandSent[ev.Sentiment]++
			}
		}
	}

	assert.InDelta(t, 0.15, float64(counts[CategoryGlobal])/float64(total), 0.03)
	assert.InDelta(t, 0.10, float64(counts[CategoryPolitical])/float64(total), 0.03)
	assert.InDelta(t, 0.35, float64(counts[CategorySupply])/float64(total), 0.03)
	assert.InDelta(t, 0.40, float64(counts[CategoryDemand])/float64(total), 0.03)

	// supply leans negative, demand leans positive
	assert.Greater(t, supplySent[SentimentNegative], supplySent[SentimentPositive])
	assert.Greater(t, demandSent[SentimentPositive], demandSent[SentimentNegative])
}

func TestInjectedEventsComeFirstAndAreStamped(t *testing.T) {
	g := testGenerator(3)
	g.InjectSupply("OIL", SentimentNegative, 0.2, "")
	g.InjectGlobal(SentimentPositive, 0.1, "Custom headline")

	events := g.Generate(999, 0) // lambda*0 -> only injected events
	require.Len(t, events, 2)
	assert.Equal(t, CategorySupply, events[0].Category)
	assert.Equal(t, "Crude Oil", events[0].CommodityName)
	assert.Equal(t, int64(999), events[0].Timestamp)
	assert.Equal(t, "Custom headline", events[1].Headline)

	// queue drained
	assert.Empty(t, g.Generate(1000, 0))
}

func TestInjectedEventsHaveDistinctIDs(t *testing.T) {
	g := testGenerator(3)
	g.InjectGlobal(SentimentPositive, 0.1, "a")
	g.InjectGlobal(SentimentPositive, 0.1, "b")
	events := g.Generate(0, 0)
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestRecentRingBounded(t *testing.T) {
	g := testGenerator(5)
	for i := 0; i < 100; i++ {
		g.AddToRecent(Event{Headline: "x", Timestamp: int64(i)})
	}
	recent := g.RecentNews(50)
	require.Len(t, recent, maxRecent)
	assert.Equal(t, int64(99), recent[len(recent)-1].Timestamp)

	last5 := g.RecentNews(5)
	require.Len(t, last5, 5)
	assert.Equal(t, int64(95), last5[0].Timestamp)
}

func TestPoissonZeroLambda(t *testing.T) {
	g := testGenerator(9)
	g.SetLambda(0)
	for tick := 0; tick < 100; tick++ {
		assert.Empty(t, g.Generate(int64(tick), 1.0))
	}
}
