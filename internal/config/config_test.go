package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 50, cfg.Simulation.TickRateMs)
	assert.Equal(t, 72000, cfg.Simulation.TicksPerDay)
	assert.Equal(t, "2024-01-02", cfg.Simulation.StartDate)
	assert.Equal(t, 0.15, cfg.Commodity.CircuitBreakerLimit)
	assert.Equal(t, uint64(172800000), cfg.OrderBook.OrderExpiryMs)
	assert.Equal(t, 115, cfg.AgentCounts.Total())
	assert.Len(t, cfg.Catalog, 5)
	assert.Len(t, cfg.CrossTable, 10)
}

func TestJSONRoundTrip(t *testing.T) {
	cfg := Default()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var back RuntimeConfig
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}

func TestMergePatchOnlyTouchesGivenKeys(t *testing.T) {
	cfg := Default()
	merged, err := cfg.MergePatch(map[string]any{
		"simulation": map[string]any{"tickRateMs": 10},
		"news":       map[string]any{"lambda": 0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, merged.Simulation.TickRateMs)
	assert.Equal(t, 0.5, merged.News.Lambda)
	assert.Equal(t, cfg.Simulation.TicksPerDay, merged.Simulation.TicksPerDay)
	assert.Equal(t, cfg.News.GlobalImpactStd, merged.News.GlobalImpactStd)
	assert.Equal(t, cfg.AgentCounts, merged.AgentCounts)

	// original untouched
	assert.Equal(t, 50, cfg.Simulation.TickRateMs)
}

func TestMergePatchNestedStrategyBlock(t *testing.T) {
	cfg := Default()
	merged, err := cfg.MergePatch(map[string]any{
		"momentum": map[string]any{"reactionMult": 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.9, merged.Momentum.ReactionMult)
	assert.Equal(t, 3, merged.Momentum.ShortPeriodMin)
}

func TestRequiresReinit(t *testing.T) {
	assert.False(t, RequiresReinit(map[string]any{
		"simulation": map[string]any{"tickRateMs": 10},
	}))
	assert.False(t, RequiresReinit(map[string]any{
		"news": map[string]any{"lambda": 0.2},
	}))
	assert.True(t, RequiresReinit(map[string]any{
		"agentCounts": map[string]any{"noise": 5},
	}))
	assert.True(t, RequiresReinit(map[string]any{
		"simulation": map[string]any{"ticksPerDay": 1440},
	}))
	assert.True(t, RequiresReinit(map[string]any{
		"simulation": map[string]any{"startDate": "2025-01-01"},
	}))
	assert.True(t, RequiresReinit(map[string]any{
		"catalog": []any{},
	}))
}

func TestLoadMissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"simulation": {"tickRateMs": 25, "maxTicks": 100},
		"commodity": {"priceFloor": 0.5}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Simulation.TickRateMs)
	assert.Equal(t, 100, cfg.Simulation.MaxTicks)
	assert.Equal(t, 0.5, cfg.Commodity.PriceFloor)
	assert.Equal(t, 72000, cfg.Simulation.TicksPerDay)
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cp := cfg.Clone()
	cp.Catalog[0].BasePrice = 1.0
	cp.Simulation.TickRateMs = 1
	assert.Equal(t, 75.0, cfg.Catalog[0].BasePrice)
	assert.Equal(t, 50, cfg.Simulation.TickRateMs)
}
