package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// MomentumTrader trades short-versus-long moving average crossovers. The
// sell branch may open a bounded short.
type MomentumTrader struct {
	Core
	shortPeriod int
	longPeriod  int
}

func NewMomentumTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *MomentumTrader {
	p := cfg.Momentum
	short := p.ShortPeriodMin + rng.Intn(p.ShortPeriodRange+1)
	long := short + p.LongPeriodOffsetMin + rng.Intn(p.LongPeriodOffsetRange+1)
	return &MomentumTrader{
		Core:        newCore(id, cash, params, cfg),
		shortPeriod: short,
		longPeriod:  long,
	}
}

func (t *MomentumTrader) Type() string { return "Momentum" }

func movingAverage(history []float64, period int) float64 {
	if len(history) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for _, p := range history[len(history)-period:] {
		sum += p
	}
	return sum / float64(period)
}

func (t *MomentumTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.Momentum
	if t.skip(rng, p.ReactionMult, state.TickScale) {
		return nil
	}
	if len(state.PriceHistory) == 0 {
		return nil
	}

	symbol := pickSymbol(rng, state.Prices)
	history := state.PriceHistory[symbol]
	if len(history) < t.longPeriod {
		return nil
	}
	price, ok := state.Prices[symbol]
	if !ok {
		return nil
	}

	shortMA := movingAverage(history, t.shortPeriod)
	longMA := movingAverage(history, t.longPeriod)
	if shortMA <= 0 || longMA <= 0 {
		return nil
	}

	signal := (shortMA - longMA) / longMA
	signal += t.symbolSentiment[symbol]*0.1 + t.sentimentBias*p.GlobalSentWeight

	threshold := p.SignalThresholdRiskScale * t.params.RiskAversion

	switch {
	case signal > threshold:
		confidence := math.Min(1.0, math.Abs(signal)/0.02)
		size := t.orderSize(price, confidence)
		if size > 0 && t.canBuy(size, price) {
			limit := price * (1.0 + uniform(rng, p.LimitOffsetMin, p.LimitOffsetMax))
			return t.newOrder(symbol, orderbook.SideBuy, orderbook.TypeLimit, limit, size, state.CurrentTime)
		}
	case signal < -threshold:
		sellable := t.maxSellable(symbol)
		if sellable > 0 {
			confidence := math.Min(1.0, math.Abs(signal)/0.02)
			size := t.orderSize(price, confidence)
			if size > sellable {
				size = sellable
			}
			if size > 0 {
				limit := price * (1.0 - uniform(rng, p.LimitOffsetMin, p.LimitOffsetMax))
				return t.newOrder(symbol, orderbook.SideSell, orderbook.TypeLimit, limit, size, state.CurrentTime)
			}
		}
	}
	return nil
}
