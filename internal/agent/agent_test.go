package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

func testParams() Params {
	return Params{
		RiskAversion:    1.0,
		ReactionSpeed:   100.0, // passes every reaction gate
		NewsWeight:      1.0,
		ConfidenceLevel: 0.5,
		TimeHorizon:     20,
	}
}

func testCore(t *testing.T, cash float64) *Core {
	t.Helper()
	cfg := config.Default()
	c := newCore(7, cash, testParams(), cfg)
	return &c
}

func buyFill(agentID int64, symbol string, price float64, qty int64) orderbook.Trade {
	return orderbook.Trade{BuyerID: agentID, SellerID: -1, Symbol: symbol, Price: price, Quantity: qty}
}

func sellFill(agentID int64, symbol string, price float64, qty int64) orderbook.Trade {
	return orderbook.Trade{BuyerID: -1, SellerID: agentID, Symbol: symbol, Price: price, Quantity: qty}
}

func TestOnFillBlendsAvgCost(t *testing.T) {
	c := testCore(t, 100000)

	c.OnFill(buyFill(7, "OIL", 75, 10))
	c.OnFill(buyFill(7, "OIL", 85, 10))

	pos := c.Portfolio()["OIL"]
	assert.Equal(t, int64(20), pos.Quantity)
	assert.InDelta(t, 80.0, pos.AvgCost, 1e-9)
	assert.InDelta(t, 100000-750-850, c.Cash(), 1e-9)
}

func TestOnFillSellAndErase(t *testing.T) {
	c := testCore(t, 100000)
	c.OnFill(buyFill(7, "OIL", 75, 10))
	c.OnFill(sellFill(7, "OIL", 80, 10))

	assert.Empty(t, c.Portfolio())
	assert.InDelta(t, 100000-750+800, c.Cash(), 1e-9)
}

func TestOnFillAllowsShort(t *testing.T) {
	c := testCore(t, 100000)
	c.OnFill(sellFill(7, "OIL", 80, 5))
	assert.Equal(t, int64(-5), c.Position("OIL"))
}

func TestCanBuyRespectsReserve(t *testing.T) {
	c := testCore(t, 10000)
	// reserve is 10% of initial cash
	assert.True(t, c.canBuy(100, 89))
	assert.False(t, c.canBuy(100, 91))
}

func TestMaxSellableIncludesShortRoom(t *testing.T) {
	c := testCore(t, 100000)
	assert.Equal(t, int64(100), c.maxSellable("OIL"))
	c.OnFill(buyFill(7, "OIL", 75, 40))
	assert.Equal(t, int64(140), c.maxSellable("OIL"))
}

func TestOrderSizeClamps(t *testing.T) {
	c := testCore(t, 100000)
	// capped at 5% of cash per order
	assert.Equal(t, int64(5000/75), c.orderSize(75, 1.0))
	// tiny prices cap at maxOrderSize
	assert.Equal(t, int64(500), c.orderSize(0.01, 1.0))
	// always at least 1
	assert.Equal(t, int64(1), c.orderSize(1e9, 0.001))
	assert.Equal(t, int64(0), c.orderSize(0, 1.0))
}

func globalEvent(sentiment news.Sentiment, magnitude float64) news.Event {
	return news.Event{Category: news.CategoryGlobal, Sentiment: sentiment, Magnitude: magnitude}
}

func supplyEvent(symbol string, sentiment news.Sentiment, magnitude float64) news.Event {
	return news.Event{Category: news.CategorySupply, Sentiment: sentiment, Magnitude: magnitude, Symbol: symbol}
}

func TestUpdateBeliefsRouting(t *testing.T) {
	c := testCore(t, 100000)

	c.UpdateBeliefs(globalEvent(news.SentimentPositive, 0.05))
	assert.InDelta(t, 0.05, c.SentimentBias(), 1e-9)

	c.UpdateBeliefs(supplyEvent("OIL", news.SentimentNegative, 0.10))
	assert.InDelta(t, -0.10, c.SymbolSentiment()["OIL"], 1e-9)
	// 20% spillover to the global bias
	assert.InDelta(t, 0.05-0.02, c.SentimentBias(), 1e-9)

	before := c.SentimentBias()
	c.UpdateBeliefs(globalEvent(news.SentimentNeutral, 0.10))
	assert.Equal(t, before, c.SentimentBias())
}

func TestDecaySentimentScalesWithTick(t *testing.T) {
	c := testCore(t, 100000)
	c.UpdateBeliefs(globalEvent(news.SentimentPositive, 1.0))
	c.UpdateBeliefs(supplyEvent("OIL", news.SentimentPositive, 1.0))

	bias := c.SentimentBias()
	sym := c.SymbolSentiment()["OIL"]

	c.DecaySentiment(1.0)
	assert.InDelta(t, bias*0.95, c.SentimentBias(), 1e-9)
	assert.InDelta(t, sym*0.90, c.SymbolSentiment()["OIL"], 1e-9)

	c.DecaySentiment(2.0)
	assert.InDelta(t, bias*0.95*0.95*0.95, c.SentimentBias(), 1e-9)
}

func TestNoiseTraderOwnDecay(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(1))
	n := NewNoiseTrader(1, 100000, testParams(), cfg, rng)

	n.UpdateBeliefs(globalEvent(news.SentimentPositive, 1.0))
	bias := n.SentimentBias()
	require.Greater(t, bias, 0.0)

	n.DecaySentiment(1.0)
	assert.InDelta(t, bias*0.98, n.SentimentBias(), 1e-9)
}

func TestSeedInventoryNoCashDebit(t *testing.T) {
	c := testCore(t, 100000)
	c.SeedInventory("OIL", 100, 75)
	assert.Equal(t, int64(100), c.Position("OIL"))
	assert.Equal(t, 100000.0, c.Cash())
	assert.Equal(t, 75.0, c.Portfolio()["OIL"].AvgCost)
}

func TestPopulationCountsAndTypes(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(42))
	agents := NewPopulation(cfg, rng)

	require.Len(t, agents, cfg.AgentCounts.Total())

	byType := make(map[string]int)
	seen := make(map[int64]bool)
	for _, a := range agents {
		byType[a.Type()]++
		assert.False(t, seen[a.ID()])
		seen[a.ID()] = true
		assert.GreaterOrEqual(t, a.Cash(), 1000.0)
	}
	assert.Equal(t, cfg.AgentCounts.SupplyDemand, byType["SupplyDemandTrader"])
	assert.Equal(t, cfg.AgentCounts.Momentum, byType["Momentum"])
	assert.Equal(t, cfg.AgentCounts.MeanReversion, byType["MeanReversion"])
	assert.Equal(t, cfg.AgentCounts.Noise, byType["Noise"])
	assert.Equal(t, cfg.AgentCounts.MarketMaker, byType["MarketMaker"])
	assert.Equal(t, cfg.AgentCounts.CrossEffects, byType["CrossEffectsTrader"])
	assert.Equal(t, cfg.AgentCounts.Inventory, byType["InventoryTrader"])
	assert.Equal(t, cfg.AgentCounts.Event, byType["EventTrader"])

	// ids are monotone from 1
	assert.Equal(t, int64(1), agents[0].ID())
	assert.Equal(t, int64(len(agents)), agents[len(agents)-1].ID())
}

func TestPopulationDeterministicUnderSeed(t *testing.T) {
	cfg := config.Default()
	a := NewPopulation(cfg, rand.New(rand.NewSource(9)))
	b := NewPopulation(cfg, rand.New(rand.NewSource(9)))

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Type(), b[i].Type())
		assert.Equal(t, a[i].Cash(), b[i].Cash())
		assert.Equal(t, a[i].Params(), b[i].Params())
	}
}

func TestGenerateParamsRespectsBounds(t *testing.T) {
	cfg := config.Default()
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		p := GenerateParams(cfg, rng)
		assert.GreaterOrEqual(t, p.RiskAversion, cfg.AgentGen.RiskAversionMin)
		assert.GreaterOrEqual(t, p.NewsWeight, cfg.AgentGen.NewsWeightMin)
		assert.LessOrEqual(t, p.NewsWeight, cfg.AgentGen.NewsWeightMax)
		assert.GreaterOrEqual(t, p.ConfidenceLevel, cfg.AgentGen.ConfidenceMin)
		assert.LessOrEqual(t, p.ConfidenceLevel, cfg.AgentGen.ConfidenceMax)
		assert.GreaterOrEqual(t, p.ReactionSpeed, 0.0)
	}
}
