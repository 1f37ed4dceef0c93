// Package agent implements the trading population: a shared behavioral core
// (cash, portfolio, sentiment, risk limits) plus eight strategy variants that
// produce at most one order per tick.
package agent

import (
	"math"
	"math/rand"
	"sort"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// Params are the per-agent behavioral parameters sampled at creation.
type Params struct {
	RiskAversion    float64 `json:"riskAversion"`
	ReactionSpeed   float64 `json:"reactionSpeed"`
	NewsWeight      float64 `json:"newsWeight"`
	ConfidenceLevel float64 `json:"confidenceLevel"`
	TimeHorizon     int     `json:"timeHorizon"`
}

// Position is one portfolio line. Quantity may be negative for strategies
// allowed to short.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avgCost"`
}

// Agent is the strategy contract. Decide receives the tick's shared state and
// the engine's RNG so runs stay reproducible under a seed.
type Agent interface {
	ID() int64
	Type() string
	Decide(state *market.State, rng *rand.Rand) *orderbook.Order
	OnFill(trade orderbook.Trade)
	UpdateBeliefs(ev news.Event)
	DecaySentiment(tickScale float64)

	Cash() float64
	InitialCash() float64
	Position(symbol string) int64
	Portfolio() map[string]Position
	Params() Params
	SentimentBias() float64
	SymbolSentiment() map[string]float64
	TotalValue(prices map[string]float64) float64
	SeedInventory(symbol string, quantity int64, price float64)
}

// Core carries the state and helpers every strategy shares. Strategies embed
// it and override Decide plus, where the behavior differs, the belief hooks.
type Core struct {
	id          int64
	cash        float64
	initialCash float64
	portfolio   map[string]Position
	params      Params
	cfg         *config.RuntimeConfig

	sentimentBias   float64
	symbolSentiment map[string]float64
}

func newCore(id int64, cash float64, params Params, cfg *config.RuntimeConfig) Core {
	return Core{
		id:              id,
		cash:            cash,
		initialCash:     cash,
		portfolio:       make(map[string]Position),
		params:          params,
		cfg:             cfg,
		symbolSentiment: make(map[string]float64),
	}
}

func (c *Core) ID() int64                          { return c.id }
func (c *Core) Cash() float64                      { return c.cash }
func (c *Core) InitialCash() float64               { return c.initialCash }
func (c *Core) Params() Params                     { return c.params }
func (c *Core) SentimentBias() float64             { return c.sentimentBias }
func (c *Core) SymbolSentiment() map[string]float64 {
	out := make(map[string]float64, len(c.symbolSentiment))
	for k, v := range c.symbolSentiment {
		out[k] = v
	}
	return out
}

func (c *Core) Position(symbol string) int64 {
	return c.portfolio[symbol].Quantity
}

func (c *Core) Portfolio() map[string]Position {
	out := make(map[string]Position, len(c.portfolio))
	for k, v := range c.portfolio {
		out[k] = v
	}
	return out
}

func (c *Core) TotalValue(prices map[string]float64) float64 {
	value := c.cash
	for symbol, pos := range c.portfolio {
		if price, ok := prices[symbol]; ok {
			value += float64(pos.Quantity) * price
		}
	}
	return value
}

// OnFill applies one execution to cash and the position, blending average
// cost on buys. A position driven to exactly zero is erased; short positions
// stay negative. A trade against the agent's own order leaves cash and the
// position unchanged (it is delivered once per side).
func (c *Core) OnFill(trade orderbook.Trade) {
	if trade.BuyerID == c.id && trade.SellerID == c.id {
		return
	}
	cost := trade.Price * float64(trade.Quantity)
	pos := c.portfolio[trade.Symbol]
	pos.Symbol = trade.Symbol

	if trade.BuyerID == c.id {
		c.cash -= cost
		totalCost := pos.AvgCost*float64(pos.Quantity) + cost
		pos.Quantity += trade.Quantity
		if pos.Quantity > 0 {
			pos.AvgCost = totalCost / float64(pos.Quantity)
		} else {
			pos.AvgCost = 0
		}
	} else {
		c.cash += cost
		pos.Quantity -= trade.Quantity
	}

	if pos.Quantity == 0 {
		delete(c.portfolio, trade.Symbol)
		return
	}
	c.portfolio[trade.Symbol] = pos
}

// UpdateBeliefs shifts sentiment per category: global and political news move
// the global bias, supply and demand news move the symbol's sentiment with a
// 20% spillover to the global bias.
func (c *Core) UpdateBeliefs(ev news.Event) {
	impact := ev.Magnitude * c.params.NewsWeight * ev.Sentiment.Sign()
	if impact == 0 {
		return
	}

	switch ev.Category {
	case news.CategoryGlobal, news.CategoryPolitical:
		c.sentimentBias += impact
	case news.CategorySupply, news.CategoryDemand:
		if ev.Symbol != "" {
			c.symbolSentiment[ev.Symbol] += impact
		}
		c.sentimentBias += impact * 0.2
	}
}

// DecaySentiment applies geometric decay with the tick scale as exponent so
// sentiment half-lives are invariant under tick-rate changes.
func (c *Core) DecaySentiment(tickScale float64) {
	g := c.cfg.AgentGlobal.SentimentDecayGlobal
	s := c.cfg.AgentGlobal.SentimentDecaySymbol

	c.sentimentBias *= math.Pow(g, tickScale)
	for symbol, val := range c.symbolSentiment {
		c.symbolSentiment[symbol] = val * math.Pow(s, tickScale)
	}
}

func (c *Core) SeedInventory(symbol string, quantity int64, price float64) {
	pos := c.portfolio[symbol]
	pos.Symbol = symbol
	pos.Quantity += quantity
	pos.AvgCost = price
	c.portfolio[symbol] = pos
}

// combinedSentiment is the symbol view an agent trades on: the full
// symbol-specific component plus 30% of the global bias.
func (c *Core) combinedSentiment(symbol string) float64 {
	return c.symbolSentiment[symbol] + c.sentimentBias*0.3
}

func (c *Core) canBuy(quantity int64, price float64) bool {
	cost := price * float64(quantity)
	reserve := c.initialCash * c.cfg.AgentGlobal.CashReserve
	return c.cash >= cost+reserve
}

// maxSellable allows selling down through the position into a bounded short.
func (c *Core) maxSellable(symbol string) int64 {
	n := c.Position(symbol) + c.cfg.AgentGlobal.MaxShortPosition
	if n < 0 {
		return 0
	}
	return n
}

// orderSize converts available capital, risk aversion and signal confidence
// into a quantity, capped at maxOrderSize and at 5% of cash per order.
func (c *Core) orderSize(price, confidence float64) int64 {
	if price <= 0 || c.cash <= 0 {
		return 0
	}
	sizeFactor := c.cfg.AgentGlobal.CapitalFraction / c.params.RiskAversion * confidence
	maxSpend := c.cash * math.Min(sizeFactor, 0.05)
	size := int64(maxSpend / price)
	if size > c.cfg.AgentGlobal.MaxOrderSize {
		size = c.cfg.AgentGlobal.MaxOrderSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

func (c *Core) newOrder(symbol string, side orderbook.Side, typ orderbook.Type, price float64, quantity int64, ts int64) *orderbook.Order {
	return &orderbook.Order{
		AgentID:   c.id,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Quantity:  quantity,
		Timestamp: ts,
	}
}

// skip is the shared reaction gate. Arrival rates stay constant across
// tick-rate regimes because the pass probability scales with tickScale.
func (c *Core) skip(rng *rand.Rand, reactionMult, tickScale float64) bool {
	return rng.Float64() > c.params.ReactionSpeed*reactionMult*tickScale
}

// sortedSymbols gives a stable iteration order over the price map so symbol
// sampling is reproducible under a seeded RNG.
func sortedSymbols(prices map[string]float64) []string {
	symbols := make([]string, 0, len(prices))
	for s := range prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func pickSymbol(rng *rand.Rand, prices map[string]float64) string {
	symbols := sortedSymbols(prices)
	if len(symbols) == 0 {
		return ""
	}
	return symbols[rng.Intn(len(symbols))]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
