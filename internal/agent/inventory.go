package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// InventoryTrader keeps a target share of total wealth in physical holdings,
// rebalancing whichever symbol has drifted furthest from its slice.
type InventoryTrader struct {
	Core
	targetRatio        float64
	rebalanceThreshold float64
}

func NewInventoryTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *InventoryTrader {
	p := cfg.Inventory
	return &InventoryTrader{
		Core:               newCore(id, cash, params, cfg),
		targetRatio:        p.TargetRatioBase + rng.Float64()*p.TargetRatioRange,
		rebalanceThreshold: p.RebalanceThresholdBase + p.RebalanceThresholdRiskScale*params.RiskAversion,
	}
}

func (t *InventoryTrader) Type() string { return "InventoryTrader" }

func (t *InventoryTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.Inventory
	if t.skip(rng, p.ReactionMult, state.TickScale) {
		return nil
	}
	if len(state.Prices) == 0 {
		return nil
	}

	totalValue := t.TotalValue(state.Prices)
	perSymbolTarget := totalValue * t.targetRatio / float64(len(state.Prices))
	denom := totalValue
	if denom <= 0 {
		denom = 1.0
	}

	var bestSymbol string
	var bestDeviation float64
	for _, symbol := range sortedSymbols(state.Prices) {
		positionValue := float64(t.Position(symbol)) * state.Prices[symbol]
		deviation := (positionValue - perSymbolTarget) / denom
		if math.Abs(deviation) > math.Abs(bestDeviation) {
			bestDeviation = deviation
			bestSymbol = symbol
		}
	}

	if math.Abs(bestDeviation) < t.rebalanceThreshold {
		return nil
	}

	price := state.Prices[bestSymbol]
	confidence := math.Min(1.0, math.Abs(bestDeviation)/0.1)
	size := t.orderSize(price, confidence)

	if bestDeviation < 0 {
		if size > 0 && t.canBuy(size, price) {
			limit := price * (1.0 + uniform(rng, 0, 0.002))
			return t.newOrder(bestSymbol, orderbook.SideBuy, orderbook.TypeLimit, limit, size, state.CurrentTime)
		}
		return nil
	}

	sellable := t.maxSellable(bestSymbol)
	if size > sellable {
		size = sellable
	}
	if size > 0 {
		limit := price * (1.0 - uniform(rng, 0, 0.002))
		return t.newOrder(bestSymbol, orderbook.SideSell, orderbook.TypeLimit, limit, size, state.CurrentTime)
	}
	return nil
}
