package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantarc/commodity-sim/internal/candles"
	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/engine"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// quietConfig removes all stochastic actors so tick counts and views are
// exactly predictable.
func quietConfig() *config.RuntimeConfig {
	cfg := config.Default()
	cfg.AgentCounts = config.AgentCounts{}
	cfg.News.Lambda = 0
	cfg.Simulation.TicksPerDay = 100
	cfg.Simulation.PopulateTicksPerDay = 5
	cfg.Simulation.PopulateFineTicksPerDay = 10
	cfg.Simulation.PopulateFineDays = 2
	return cfg
}

func newQuietController(t *testing.T) *Controller {
	t.Helper()
	c, err := New(quietConfig(), 42, nil)
	require.NoError(t, err)
	return c
}

func TestStatusInitial(t *testing.T) {
	c := newQuietController(t)
	st := c.Status()
	assert.False(t, st.Running)
	assert.False(t, st.Paused)
	assert.False(t, st.Populating)
	assert.Equal(t, uint64(0), st.CurrentTick)
	assert.Equal(t, "2024-01-02", st.SimDate)
}

func TestLifecycleGuards(t *testing.T) {
	c := newQuietController(t)

	assert.ErrorIs(t, c.Pause(), ErrNotRunning)
	assert.ErrorIs(t, c.Resume(), ErrNotRunning)
	c.Stop() // no-op while idle

	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Start(), ErrAlreadyRunning)
	assert.True(t, c.Status().Running)

	require.NoError(t, c.Pause())
	assert.True(t, c.Status().Paused)
	require.NoError(t, c.Resume())
	assert.False(t, c.Status().Paused)

	c.Stop()
	assert.False(t, c.Status().Running)
	assert.ErrorIs(t, c.Pause(), ErrNotRunning)
}

func TestStepAdvancesTickAndViews(t *testing.T) {
	c := newQuietController(t)

	require.NoError(t, c.Step(3))
	assert.Equal(t, uint64(3), c.Status().CurrentTick)

	rows := c.Candles().Candles("OIL", candles.IntervalM1, 0, 0)
	assert.NotEmpty(t, rows)

	require.NoError(t, c.Step(0)) // treated as a single tick
	assert.Equal(t, uint64(4), c.Status().CurrentTick)
}

func TestStepHonorsMaxTicks(t *testing.T) {
	cfg := quietConfig()
	cfg.Simulation.MaxTicks = 2
	c, err := New(cfg, 42, nil)
	require.NoError(t, err)

	require.NoError(t, c.Step(10))
	assert.Equal(t, uint64(2), c.Status().CurrentTick)
}

func TestPopulateTwoPhaseTickCount(t *testing.T) {
	c := newQuietController(t)
	clk := c.Engine().Clock()

	// 3 days with 2 fine days: 1 coarse day at 5 ticks plus 2 fine days at
	// 10 ticks each.
	require.NoError(t, c.Populate(3))
	assert.Equal(t, uint64(25), c.Status().CurrentTick)
	assert.False(t, c.Status().Populating)

	// normal rates restored after the backfill
	assert.Equal(t, 100, clk.TicksPerDay())
	assert.Equal(t, 100, clk.ReferenceTicksPerDay())
}

func TestPopulateShorterThanFineWindow(t *testing.T) {
	c := newQuietController(t)
	require.NoError(t, c.Populate(1))
	assert.Equal(t, uint64(10), c.Status().CurrentTick)
}

func TestPopulateRejectsBadInput(t *testing.T) {
	c := newQuietController(t)
	assert.Error(t, c.Populate(0))
	assert.Error(t, c.PopulateTicks(-1))

	require.NoError(t, c.Start())
	defer c.Stop()
	assert.ErrorIs(t, c.Populate(1), ErrRunning)
	assert.ErrorIs(t, c.PopulateTicks(5), ErrRunning)
}

func TestPopulateTicks(t *testing.T) {
	c := newQuietController(t)
	clk := c.Engine().Clock()

	require.NoError(t, c.PopulateTicks(7))
	assert.Equal(t, uint64(7), c.Status().CurrentTick)
	assert.Equal(t, 100, clk.TicksPerDay())
	assert.Equal(t, 100, clk.ReferenceTicksPerDay())
}

func TestResetRestoresInitialState(t *testing.T) {
	c := newQuietController(t)
	require.NoError(t, c.Step(5))
	require.NoError(t, c.Reset())

	st := c.Status()
	assert.Equal(t, uint64(0), st.CurrentTick)
	assert.False(t, st.Running)
	assert.Equal(t, "2024-01-02", st.SimDate)
	assert.Empty(t, c.Candles().Candles("OIL", candles.IntervalM1, 0, 0))
}

func TestApplyConfigPatchHotAndCold(t *testing.T) {
	c := newQuietController(t)

	reinit, err := c.ApplyConfigPatch(map[string]any{
		"news": map[string]any{"lambda": 0.5},
	})
	require.NoError(t, err)
	assert.False(t, reinit)
	assert.Equal(t, 0.5, c.Config().News.Lambda)

	reinit, err = c.ApplyConfigPatch(map[string]any{
		"agentCounts": map[string]any{"noise": 3},
	})
	require.NoError(t, err)
	assert.True(t, reinit)
	assert.Equal(t, 3, c.Config().AgentCounts.Noise)
}

func TestConfigReturnsCopy(t *testing.T) {
	c := newQuietController(t)
	got := c.Config()
	got.News.Lambda = 99
	assert.NotEqual(t, 99.0, c.Config().News.Lambda)
}

func TestExport(t *testing.T) {
	c := newQuietController(t)
	require.NoError(t, c.Step(2))

	assert.Error(t, c.Export("xml", t.TempDir(), 0))

	dir := t.TempDir()
	require.NoError(t, c.Export("csv", dir, 0))
	assert.FileExists(t, filepath.Join(dir, "OIL.csv"))
	assert.FileExists(t, filepath.Join(dir, "metadata.json"))

	jsonDir := t.TempDir()
	require.NoError(t, c.Export("json", jsonDir, 0))
	assert.FileExists(t, filepath.Join(jsonDir, "market_data.json"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// one csv per commodity plus metadata
	assert.Len(t, entries, 6)
}

func TestCommoditiesSortedWithFields(t *testing.T) {
	c := newQuietController(t)
	views := c.Commodities()
	require.Len(t, views, 5)

	symbols := make([]string, len(views))
	for i, v := range views {
		symbols[i] = v.Symbol
	}
	assert.Equal(t, []string{"BRICK", "GRAIN", "OIL", "STEEL", "WOOD"}, symbols)

	oil := views[2]
	assert.Equal(t, "Crude Oil", oil.Name)
	assert.Equal(t, "Energy", oil.Category)
	assert.Equal(t, 75.0, oil.Price)
	assert.Equal(t, 5000.0, oil.SupplyDemand.Inventory)
	assert.False(t, oil.CircuitBroken)
}

func TestAgentsSummaryZeroStatsFill(t *testing.T) {
	cfg := quietConfig()
	cfg.AgentCounts.Noise = 2
	cfg.AgentCounts.MarketMaker = 1
	c, err := New(cfg, 42, nil)
	require.NoError(t, err)

	summary := c.AgentsSummary()
	require.Contains(t, summary, "Noise")
	require.Contains(t, summary, "MarketMaker")
	assert.Equal(t, 2, summary["Noise"].Count)
	assert.Equal(t, 1, summary["MarketMaker"].Count)
	require.NotNil(t, summary["Noise"].Stats)
	assert.Zero(t, summary["Noise"].Stats.OrdersPlaced)
}

func TestOrderBookView(t *testing.T) {
	c := newQuietController(t)

	_, err := c.OrderBookView("GOLD", 5)
	assert.True(t, errors.Is(err, engine.ErrUnknownSymbol))

	id, err := c.Engine().SubmitUserOrder("OIL", orderbook.SideBuy, orderbook.TypeLimit, 74.0, 10)
	require.NoError(t, err)
	assert.NotZero(t, id)

	view, err := c.OrderBookView("OIL", 0)
	require.NoError(t, err)
	assert.Equal(t, "OIL", view.Symbol)
	assert.Equal(t, 74.0, view.BestBid)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, int64(10), view.Bids[0].Quantity)
}

func TestNewsFanOutAndUnsubscribe(t *testing.T) {
	c := newQuietController(t)

	var got []string
	unsubscribe := c.SubscribeNews(func(ev news.Event) {
		got = append(got, ev.Headline)
	})

	require.NoError(t, c.Engine().InjectNews(news.CategoryGlobal, "", news.SentimentPositive, 0.2, "fan out check"))
	require.NoError(t, c.Step(1))

	require.Len(t, got, 1)
	assert.Equal(t, "fan out check", got[0])

	unsubscribe()
	require.NoError(t, c.Engine().InjectNews(news.CategoryGlobal, "", news.SentimentNegative, 0.2, "after unsubscribe"))
	require.NoError(t, c.Step(1))
	assert.Len(t, got, 1)
}

func TestResetConfigRestoresDefaults(t *testing.T) {
	c := newQuietController(t)
	_, err := c.ApplyConfigPatch(map[string]any{
		"news": map[string]any{"lambda": 0.9},
	})
	require.NoError(t, err)

	require.NoError(t, c.ResetConfig())
	assert.Equal(t, config.Default().News.Lambda, c.Config().News.Lambda)
	assert.Equal(t, uint64(0), c.Status().CurrentTick)
}
