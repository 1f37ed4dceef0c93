package agent

import (
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// EventTrader fires market orders on fresh headlines above its magnitude
// threshold, with a per-agent cooldown and a short dedup window.
type EventTrader struct {
	Core
	reactionThreshold   float64
	cooldownTicks       int
	ticksSinceLastTrade int
	processed           []uuid.UUID
}

func NewEventTrader(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *EventTrader {
	p := cfg.Event
	cooldown := p.CooldownBase + rng.Intn(p.CooldownRange+1)
	return &EventTrader{
		Core:                newCore(id, cash, params, cfg),
		reactionThreshold:   p.ReactionThresholdBase + p.ReactionThresholdRiskScale*params.RiskAversion,
		cooldownTicks:       cooldown,
		ticksSinceLastTrade: cooldown,
	}
}

func (t *EventTrader) Type() string { return "EventTrader" }

// Dedup keys on the event id. The processed window is short, so an event
// older than the last 20 can in principle be reacted to twice.
func (t *EventTrader) alreadyProcessed(ev news.Event) bool {
	for _, id := range t.processed {
		if id == ev.ID {
			return true
		}
	}
	return false
}

func (t *EventTrader) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	p := t.cfg.Event
	t.ticksSinceLastTrade++

	if t.skip(rng, p.ReactionMult, state.TickScale) {
		return nil
	}
	if t.ticksSinceLastTrade < t.cooldownTicks {
		return nil
	}
	if len(state.RecentNews) == 0 || len(state.Prices) == 0 {
		return nil
	}

	for _, ev := range state.RecentNews {
		if t.alreadyProcessed(ev) {
			continue
		}
		t.processed = append(t.processed, ev.ID)
		if len(t.processed) > 20 {
			t.processed = t.processed[1:]
		}

		if ev.Magnitude < t.reactionThreshold {
			continue
		}

		targetSymbol := ev.Symbol
		if targetSymbol == "" {
			targetSymbol = pickSymbol(rng, state.Prices)
		}
		price, ok := state.Prices[targetSymbol]
		if !ok {
			continue
		}

		confidence := math.Min(1.0, ev.Magnitude/0.1)

		// Scarcity reads as bullish: bad supply news and good demand news
		// both argue for higher prices.
		bullish := ev.Sentiment == news.SentimentPositive ||
			(ev.Category == news.CategoryDemand && ev.Sentiment != news.SentimentNegative) ||
			(ev.Category == news.CategorySupply && ev.Sentiment == news.SentimentNegative)

		if bullish {
			size := t.orderSize(price, confidence)
			if size > 0 && t.canBuy(size, price) {
				t.ticksSinceLastTrade = 0
				return t.newOrder(targetSymbol, orderbook.SideBuy, orderbook.TypeMarket, 0, size, state.CurrentTime)
			}
			continue
		}

		sellable := t.maxSellable(targetSymbol)
		size := t.orderSize(price, confidence)
		if size > sellable {
			size = sellable
		}
		if size > 0 {
			t.ticksSinceLastTrade = 0
			return t.newOrder(targetSymbol, orderbook.SideSell, orderbook.TypeMarket, 0, size, state.CurrentTime)
		}
	}
	return nil
}
