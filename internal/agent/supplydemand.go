package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// SupplyDemandTrader trades the consumption/production imbalance of a random
// symbol, observed through per-agent estimation noise and sentiment.
type SupplyDemandTrader struct {
	Core
	threshold float64
	noiseStd  float64
}

func NewSupplyDemandTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *SupplyDemandTrader {
	p := cfg.SupplyDemand
	return &SupplyDemandTrader{
		Core:      newCore(id, cash, params, cfg),
		threshold: p.ThresholdBase + p.ThresholdRiskScale*params.RiskAversion,
		noiseStd:  p.NoiseStdBase + p.NoiseStdRange*rng.Float64(),
	}
}

func (t *SupplyDemandTrader) Type() string { return "SupplyDemandTrader" }

func (t *SupplyDemandTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.SupplyDemand
	if t.skip(rng, p.ReactionMult, state.TickScale) {
		return nil
	}
	if len(state.Prices) == 0 || len(state.SupplyDemands) == 0 {
		return nil
	}

	symbol := pickSymbol(rng, state.Prices)
	price := state.Prices[symbol]
	sd, ok := state.SupplyDemands[symbol]
	if !ok {
		return nil
	}

	estimated := sd.Imbalance() + rng.NormFloat64()*t.noiseStd
	estimated += t.combinedSentiment(symbol) * p.SentimentImpact

	switch {
	case estimated > t.threshold:
		confidence := math.Min(1.0, math.Abs(estimated)/0.15)
		size := t.orderSize(price, confidence)
		if size > 0 && t.canBuy(size, price) {
			limit := price * (1.0 + uniform(rng, 0, p.LimitPriceSpreadMax))
			return t.newOrder(symbol, orderbook.SideBuy, orderbook.TypeLimit, limit, size, state.CurrentTime)
		}
	case estimated < -t.threshold:
		sellable := t.maxSellable(symbol)
		if sellable > 0 {
			confidence := math.Min(1.0, math.Abs(estimated)/0.15)
			size := t.orderSize(price, confidence)
			if size > sellable {
				size = sellable
			}
			if size > 0 {
				limit := price * (1.0 - uniform(rng, 0, p.LimitPriceSpreadMax))
				return t.newOrder(symbol, orderbook.SideSell, orderbook.TypeLimit, limit, size, state.CurrentTime)
			}
		}
	}
	return nil
}
