package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// MeanReversionTrader fades z-score extremes against a rolling mean. Selling
// requires an existing long; it never shorts.
type MeanReversionTrader struct {
	Core
	lookback   int
	zThreshold float64
}

func NewMeanReversionTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *MeanReversionTrader {
	p := cfg.MeanReversion
	return &MeanReversionTrader{
		Core:       newCore(id, cash, params, cfg),
		lookback:   p.LookbackMin + rng.Intn(p.LookbackRange+1),
		zThreshold: p.ZThresholdMin + rng.Float64()*p.ZThresholdRange,
	}
}

func (t *MeanReversionTrader) Type() string { return "MeanReversion" }

func rollingStats(history []float64, period int) (mean, std float64) {
	if len(history) < period || period <= 0 {
		return 0, 0
	}
	window := history[len(history)-period:]
	for _, p := range window {
		mean += p
	}
	mean /= float64(period)
	for _, p := range window {
		std += (p - mean) * (p - mean)
	}
	return mean, math.Sqrt(std / float64(period))
}

func (t *MeanReversionTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.MeanReversion
	if t.skip(rng, p.ReactionMult, state.TickScale) {
		return nil
	}
	if len(state.PriceHistory) == 0 {
		return nil
	}

	symbol := pickSymbol(rng, state.Prices)
	history := state.PriceHistory[symbol]
	if len(history) < t.lookback {
		return nil
	}
	price, ok := state.Prices[symbol]
	if !ok {
		return nil
	}

	mean, std := rollingStats(history, t.lookback)
	if std <= 0 {
		return nil
	}

	z := (price - mean) / std
	z += t.symbolSentiment[symbol]*p.SentSymbolWeight + t.sentimentBias*p.SentGlobalWeight

	switch {
	case z > t.zThreshold:
		position := t.Position(symbol)
		if position > 0 {
			confidence := math.Min(1.0, (math.Abs(z)-t.zThreshold)/2.0)
			size := t.orderSize(price, confidence)
			if size > position {
				size = position
			}
			if size > 0 {
				limit := price * (1.0 - uniform(rng, 0, p.LimitPriceSpreadMax))
				return t.newOrder(symbol, orderbook.SideSell, orderbook.TypeLimit, limit, size, state.CurrentTime)
			}
		}
	case z < -t.zThreshold:
		confidence := math.Min(1.0, (math.Abs(z)-t.zThreshold)/2.0)
		size := t.orderSize(price, confidence)
		if size > 0 && t.canBuy(size, price) {
			limit := price * (1.0 + uniform(rng, 0, p.LimitPriceSpreadMax))
			return t.newOrder(symbol, orderbook.SideBuy, orderbook.TypeLimit, limit, size, state.CurrentTime)
		}
	}
	return nil
}
