package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// NoiseTrader trades randomly with a sentiment-tilted direction. It overreacts
// to headlines and forgets them on its own, slower decay schedule.
type NoiseTrader struct {
	Core
	tradeProbability     float64
	sentimentSensitivity float64
}

func NewNoiseTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *NoiseTrader {
	p := cfg.Noise
	return &NoiseTrader{
		Core:                 newCore(id, cash, params, cfg),
		tradeProbability:     p.TradeProbMin + rng.Float64()*p.TradeProbRange,
		sentimentSensitivity: uniform(rng, p.SentSensitivityMin, p.SentSensitivityMax),
	}
}

func (t *NoiseTrader) Type() string { return "Noise" }

func (t *NoiseTrader) UpdateBeliefs(ev news.Event) {
	impact := ev.Magnitude * t.params.NewsWeight * t.sentimentSensitivity * t.cfg.Noise.OverreactionMult
	t.sentimentBias += impact * ev.Sentiment.Sign()
}

func (t *NoiseTrader) DecaySentiment(tickScale float64) {
	p := t.cfg.Noise
	t.sentimentBias *= math.Pow(p.SentimentDecay, tickScale)
	for symbol, val := range t.symbolSentiment {
		t.symbolSentiment[symbol] = val * math.Pow(p.SymbolSentDecay, tickScale)
	}
}

func (t *NoiseTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.Noise

	effectiveProb := t.tradeProbability * (1.0 + math.Abs(t.sentimentBias)) * state.TickScale
	if rng.Float64() > effectiveProb {
		return nil
	}
	if len(state.Prices) == 0 {
		return nil
	}

	symbol := pickSymbol(rng, state.Prices)
	price := state.Prices[symbol]

	buyProb := 0.5 + t.sentimentBias*p.BuyBiasSentWeight + rng.NormFloat64()*p.BuyBiasNoiseStd

	if rng.Float64() < buyProb {
		confidence := uniform(rng, p.ConfidenceMin, p.ConfidenceMax)
		size := t.orderSize(price, confidence)
		if size > 0 && t.canBuy(size, price) {
			typ := orderbook.TypeLimit
			if rng.Float64() < p.MarketOrderProb {
				typ = orderbook.TypeMarket
			}
			limit := price * (1.0 + uniform(rng, p.LimitOffsetMin, p.LimitOffsetMax))
			return t.newOrder(symbol, orderbook.SideBuy, typ, limit, size, state.CurrentTime)
		}
		return nil
	}

	position := t.Position(symbol)
	if position <= 0 {
		return nil
	}
	confidence := uniform(rng, p.ConfidenceMin, p.ConfidenceMax)
	size := t.orderSize(price, confidence)
	if size > position {
		size = position
	}
	if size > 0 {
		typ := orderbook.TypeLimit
		if rng.Float64() < p.MarketOrderProb {
			typ = orderbook.TypeMarket
		}
		limit := price * (1.0 - uniform(rng, p.LimitOffsetMin, p.LimitOffsetMax))
		return t.newOrder(symbol, orderbook.SideSell, typ, limit, size, state.CurrentTime)
	}
	return nil
}
