package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// CrossEffectsTrader watches for moves on a source commodity and trades the
// targets its influence edges point at, anticipating the pass-through.
type CrossEffectsTrader struct {
	Core
	lookback   int
	threshold  float64
	lastPrices map[string]float64
}

func NewCrossEffectsTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *CrossEffectsTrader {
	p := cfg.CrossEffects
	return &CrossEffectsTrader{
		Core:       newCore(id, cash, params, cfg),
		lookback:   p.LookbackMin + rng.Intn(p.LookbackRange+1),
		threshold:  p.ThresholdBase + p.ThresholdRiskScale*params.RiskAversion,
		lastPrices: make(map[string]float64),
	}
}

func (t *CrossEffectsTrader) Type() string { return "CrossEffectsTrader" }

func (t *CrossEffectsTrader) priceChange(symbol string, current float64) float64 {
	last, ok := t.lastPrices[symbol]
	if !ok || last <= 0 {
		return 0
	}
	return (current - last) / last
}

func (t *CrossEffectsTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.CrossEffects
	if t.skip(rng, p.ReactionMult, state.TickScale) {
		return nil
	}
	if len(state.Prices) == 0 || len(state.CrossEffects) == 0 {
		return nil
	}

	changes := make(map[string]float64, len(state.Prices))
	for symbol, price := range state.Prices {
		changes[symbol] = t.priceChange(symbol, price)
		t.lastPrices[symbol] = price
	}

	for _, source := range sortedSymbols(state.Prices) {
		effects, ok := state.CrossEffects[source]
		if !ok {
			continue
		}
		sourceChange := changes[source]
		if math.Abs(sourceChange) <= t.threshold {
			continue
		}

		for _, effect := range effects {
			targetPrice, ok := state.Prices[effect.TargetSymbol]
			if !ok {
				continue
			}
			expected := sourceChange * effect.Coefficient * p.CrossEffectWeight

			if expected > 0.01 {
				confidence := math.Min(1.0, expected/0.05)
				size := t.orderSize(targetPrice, confidence)
				if size > 0 && t.canBuy(size, targetPrice) {
					limit := targetPrice * (1.0 + uniform(rng, 0, 0.003))
					return t.newOrder(effect.TargetSymbol, orderbook.SideBuy, orderbook.TypeLimit, limit, size, state.CurrentTime)
				}
			} else if expected < -0.01 {
				sellable := t.maxSellable(effect.TargetSymbol)
				if sellable > 0 {
					confidence := math.Min(1.0, math.Abs(expected)/0.05)
					size := t.orderSize(targetPrice, confidence)
					if size > sellable {
						size = sellable
					}
					if size > 0 {
						limit := targetPrice * (1.0 - uniform(rng, 0, 0.003))
						return t.newOrder(effect.TargetSymbol, orderbook.SideSell, orderbook.TypeLimit, limit, size, state.CurrentTime)
					}
				}
			}
		}
	}
	return nil
}
