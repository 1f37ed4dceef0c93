// Package engine drives the simulation: one Tick advances the clock, draws
// news, updates physical supply and demand, collects agent orders, matches
// every book and settles the resulting fills.
package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/quantarc/commodity-sim/internal/agent"
	"github.com/quantarc/commodity-sim/internal/clock"
	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/metrics"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

const maxRecentTrades = 1000

// UserAgentID tags orders submitted through the HTTP surface rather than by
// a simulated agent.
const UserAgentID int64 = 0

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrBadOrder      = errors.New("invalid order")
)

// TradeCallback receives every execution after settlement.
type TradeCallback func(orderbook.Trade)

// NewsCallback receives every news event after its shocks have been applied.
type NewsCallback func(news.Event)

// TickListener observes the end of each tick with the closing prices and the
// volume traded during that tick. Maps are owned by the engine; listeners
// must not retain them across calls.
type TickListener func(tick uint64, simTime int64, prices map[string]float64, tickVolumes map[string]int64)

// AgentTypeStats accumulates per-strategy activity counters.
type AgentTypeStats struct {
	OrdersPlaced int64   `json:"ordersPlaced"`
	BuyOrders    int64   `json:"buyOrders"`
	SellOrders   int64   `json:"sellOrders"`
	Fills        int64   `json:"fills"`
	VolumeTraded int64   `json:"volumeTraded"`
	CashSpent    float64 `json:"cashSpent"`
	CashReceived float64 `json:"cashReceived"`
}

// Metrics is the aggregate view returned by Metrics().
type Metrics struct {
	TotalTicks      uint64                     `json:"totalTicks"`
	TotalTrades     uint64                     `json:"totalTrades"`
	TotalOrders     uint64                     `json:"totalOrders"`
	AvgSpread       float64                    `json:"avgSpread"`
	GlobalSentiment float64                    `json:"globalSentiment"`
	Returns         map[string]float64         `json:"returns"`
	AgentTypeStats  map[string]*AgentTypeStats `json:"agentTypeStats"`
}

// Engine owns the full simulation state. All public methods are safe for
// concurrent use; Tick holds the write lock for the whole tick so readers
// always observe a consistent snapshot. Lock order is engine before book.
type Engine struct {
	mu  sync.RWMutex
	cfg *config.RuntimeConfig
	log *zap.Logger
	rng *rand.Rand

	seed int64

	clock       *clock.SimClock
	commodities map[string]*market.Commodity
	symbols     []string
	books       map[string]*orderbook.Book

	agents     []agent.Agent
	agentByID  map[int64]agent.Agent
	agentTypes map[int64]string

	newsGen      *news.Generator
	crossEffects map[string][]market.CrossEffect

	globalSentiment float64

	recentTrades []orderbook.Trade
	stats        map[string]*AgentTypeStats
	totalTicks   uint64
	totalTrades  uint64
	totalOrders  uint64

	// volume settled between ticks (immediate user fills), folded into the
	// next tick's listener payload
	pendingVolumes map[string]int64

	tradeCallback TradeCallback
	newsCallback  NewsCallback
	tickListeners []TickListener
}

// New builds a fully initialized engine from the config. The seed fixes the
// single process-wide rng, so two engines built from the same config and seed
// produce identical tick sequences.
func New(cfg *config.RuntimeConfig, seed int64, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:  cfg,
		log:  log,
		seed: seed,
	}
	if err := e.initialize(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) initialize() error {
	cfg := e.cfg
	e.rng = rand.New(rand.NewSource(e.seed))

	e.clock = clock.New()
	if err := e.clock.Initialize(cfg.Simulation.StartDate, cfg.Simulation.TicksPerDay); err != nil {
		return fmt.Errorf("initialize clock: %w", err)
	}

	e.commodities = make(map[string]*market.Commodity, len(cfg.Catalog))
	e.books = make(map[string]*orderbook.Book, len(cfg.Catalog))
	e.symbols = e.symbols[:0]
	for _, spec := range cfg.Catalog {
		c := market.NewCommodity(spec.Symbol, spec.Name, spec.Category,
			spec.BasePrice, spec.BaseProduction, spec.BaseConsumption, spec.BaseInventory)
		c.SetMaxDailyMove(cfg.Commodity.CircuitBreakerLimit)
		c.SetImpactDampening(cfg.Commodity.ImpactDampening)
		c.SetPriceFloor(cfg.Commodity.PriceFloor)
		c.SetSupplyDecayRate(cfg.Commodity.SupplyDecayRate)
		c.SetDemandDecayRate(cfg.Commodity.DemandDecayRate)
		c.MarkDayOpen()
		e.commodities[spec.Symbol] = c
		e.symbols = append(e.symbols, spec.Symbol)

		b := orderbook.New(spec.Symbol)
		b.SetClock(e.clock)
		b.SetMaxOrderAgeMs(int64(cfg.OrderBook.OrderExpiryMs))
		e.books[spec.Symbol] = b
	}
	sort.Strings(e.symbols)

	e.crossEffects = make(map[string][]market.CrossEffect)
	for _, edge := range cfg.CrossTable {
		if _, ok := e.commodities[edge.Source]; !ok {
			continue
		}
		if _, ok := e.commodities[edge.Target]; !ok {
			continue
		}
		e.crossEffects[edge.Source] = append(e.crossEffects[edge.Source], market.CrossEffect{
			TargetSymbol: edge.Target,
			Coefficient:  edge.Coefficient,
		})
	}

	names := make(map[string]string, len(cfg.Catalog))
	categories := make(map[string]string, len(cfg.Catalog))
	for _, spec := range cfg.Catalog {
		names[spec.Symbol] = spec.Name
		categories[spec.Symbol] = spec.Category
	}
	e.newsGen = news.NewGenerator(e.rng, cfg.News.Lambda,
		cfg.News.GlobalImpactStd, cfg.News.PoliticalImpactStd,
		cfg.News.SupplyImpactStd, cfg.News.DemandImpactStd)
	e.newsGen.SetCommodities(e.symbols, names, categories)

	e.agents = agent.NewPopulation(cfg, e.rng)
	e.agentByID = make(map[int64]agent.Agent, len(e.agents))
	e.agentTypes = make(map[int64]string, len(e.agents))
	e.stats = make(map[string]*AgentTypeStats)
	for _, a := range e.agents {
		e.agentByID[a.ID()] = a
		e.agentTypes[a.ID()] = a.Type()
		if _, ok := e.stats[a.Type()]; !ok {
			e.stats[a.Type()] = &AgentTypeStats{}
		}
	}

	// Market makers start with physical stock so both sides are quotable
	// from the first tick.
	if cfg.MarketMaker.InitialInventoryPerCommodity > 0 {
		for _, a := range e.agents {
			if a.Type() != "MarketMaker" {
				continue
			}
			for _, symbol := range e.symbols {
				a.SeedInventory(symbol, cfg.MarketMaker.InitialInventoryPerCommodity, e.commodities[symbol].Price())
			}
		}
	}

	e.globalSentiment = 0
	e.recentTrades = nil
	e.pendingVolumes = nil
	e.totalTicks = 0
	e.totalTrades = 0
	e.totalOrders = 0

	e.log.Info("engine initialized",
		zap.Int("commodities", len(e.commodities)),
		zap.Int("agents", len(e.agents)),
		zap.Int64("seed", e.seed),
		zap.String("startDate", cfg.Simulation.StartDate))
	return nil
}

// Reset rebuilds the whole simulation from the stored config and seed.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newsGen.ClearHistory()
	return e.initialize()
}

// SetTradeCallback registers the post-settlement trade hook.
func (e *Engine) SetTradeCallback(cb TradeCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tradeCallback = cb
}

// SetNewsCallback registers the news hook.
func (e *Engine) SetNewsCallback(cb NewsCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newsCallback = cb
}

// AddTickListener registers an end-of-tick observer.
func (e *Engine) AddTickListener(l TickListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickListeners = append(e.tickListeners, l)
}

// Tick advances the simulation by one step.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	now := e.clock.Tick()
	tickScale := e.clock.TickScale()
	e.totalTicks++

	if e.clock.IsNewDay() {
		for _, symbol := range e.symbols {
			c := e.commodities[symbol]
			c.ResetCircuitBreaker()
			c.MarkDayOpen()
			c.ResetDailyVolume()
		}
	}

	e.processNews(now, tickScale)

	for _, a := range e.agents {
		a.DecaySentiment(tickScale)
	}
	e.globalSentiment *= math.Pow(0.95, tickScale)

	for _, symbol := range e.symbols {
		e.commodities[symbol].UpdateSupplyDemand(e.rng, tickScale)
	}

	state := e.buildStateLocked(now, tickScale)
	e.collectOrders(state)

	trades := e.matchAllBooks()

	volumes := e.settleTrades(trades)
	for symbol, v := range e.pendingVolumes {
		volumes[symbol] += v
	}
	e.pendingVolumes = nil

	for _, l := range e.tickListeners {
		l(e.totalTicks, now, state.Prices, volumes)
	}
}

// processNews draws the tick's events and applies each one: recent ring
// first, then physical shocks and sentiment, then agent beliefs.
func (e *Engine) processNews(now int64, tickScale float64) {
	events := e.newsGen.Generate(now, tickScale)
	for _, ev := range events {
		e.newsGen.AddToRecent(ev)

		switch ev.Category {
		case news.CategorySupply:
			if c, ok := e.commodities[ev.Symbol]; ok {
				c.ApplySupplyShock(ev.Sentiment.Sign() * ev.Magnitude)
			}
		case news.CategoryDemand:
			if c, ok := e.commodities[ev.Symbol]; ok {
				c.ApplyDemandShock(ev.Sentiment.Sign() * ev.Magnitude)
			}
		case news.CategoryGlobal, news.CategoryPolitical:
			e.globalSentiment += 0.3 * ev.Sentiment.Sign() * ev.Magnitude
		}

		for _, a := range e.agents {
			a.UpdateBeliefs(ev)
		}

		e.log.Debug("news event",
			zap.String("category", string(ev.Category)),
			zap.String("symbol", ev.Symbol),
			zap.String("sentiment", string(ev.Sentiment)),
			zap.Float64("magnitude", ev.Magnitude),
			zap.String("headline", ev.Headline))

		if e.newsCallback != nil {
			e.newsCallback(ev)
		}
	}
}

func (e *Engine) buildStateLocked(now int64, tickScale float64) *market.State {
	prices := make(map[string]float64, len(e.symbols))
	sds := make(map[string]market.SupplyDemand, len(e.symbols))
	histories := make(map[string][]float64, len(e.symbols))
	categories := make(map[string]string, len(e.symbols))
	for _, symbol := range e.symbols {
		c := e.commodities[symbol]
		prices[symbol] = c.Price()
		sds[symbol] = c.SupplyDemand()
		histories[symbol] = c.PriceHistory()
		categories[symbol] = c.Category()
	}
	return &market.State{
		Prices:          prices,
		SupplyDemands:   sds,
		PriceHistory:    histories,
		Categories:      categories,
		CrossEffects:    e.crossEffects,
		RecentNews:      e.newsGen.RecentNews(20),
		GlobalSentiment: e.globalSentiment,
		TickScale:       tickScale,
		CurrentTime:     now,
	}
}

// collectOrders asks every agent for a decision and routes the resulting
// orders into the books. A panicking strategy loses its order for the tick,
// never the tick itself.
func (e *Engine) collectOrders(state *market.State) {
	for _, a := range e.agents {
		order := e.safeDecide(a, state)
		if order == nil {
			continue
		}
		if order.Quantity <= 0 {
			continue
		}
		book, ok := e.books[order.Symbol]
		if !ok {
			continue
		}
		book.Add(*order)
		e.countOrder(a.Type(), order.Side, order.Type)
	}
}

func (e *Engine) safeDecide(a agent.Agent, state *market.State) (order *orderbook.Order) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("agent decide panicked",
				zap.Int64("agentId", a.ID()),
				zap.String("agentType", a.Type()),
				zap.Any("panic", r))
			order = nil
		}
	}()
	return a.Decide(state, e.rng)
}

func (e *Engine) countOrder(agentType string, side orderbook.Side, typ orderbook.Type) {
	e.totalOrders++
	metrics.OrdersSubmitted.WithLabelValues(string(typ)).Inc()
	s := e.statsFor(agentType)
	s.OrdersPlaced++
	if side == orderbook.SideBuy {
		s.BuyOrders++
	} else {
		s.SellOrders++
	}
}

func (e *Engine) statsFor(agentType string) *AgentTypeStats {
	s, ok := e.stats[agentType]
	if !ok {
		s = &AgentTypeStats{}
		e.stats[agentType] = s
	}
	return s
}

func (e *Engine) agentTypeName(id int64) string {
	if t, ok := e.agentTypes[id]; ok {
		return t
	}
	return "User"
}

func (e *Engine) matchAllBooks() []orderbook.Trade {
	var all []orderbook.Trade
	for _, symbol := range e.symbols {
		trades := e.books[symbol].Match()
		for i := range trades {
			trades[i].BuyerType = e.agentTypeName(trades[i].BuyerID)
			trades[i].SellerType = e.agentTypeName(trades[i].SellerID)
		}
		all = append(all, trades...)
	}
	return all
}

// settleTrades applies price impact, accumulates volume, records stats and
// delivers fills to both counterparties. Returns per-symbol volume for the
// tick.
func (e *Engine) settleTrades(trades []orderbook.Trade) map[string]int64 {
	volumes := make(map[string]int64, len(e.symbols))

	for _, tr := range trades {
		e.totalTrades++

		e.recentTrades = append(e.recentTrades, tr)
		if len(e.recentTrades) > maxRecentTrades {
			e.recentTrades = e.recentTrades[len(e.recentTrades)-maxRecentTrades:]
		}

		notional := tr.Price * float64(tr.Quantity)
		buyStats := e.statsFor(tr.BuyerType)
		buyStats.Fills++
		buyStats.VolumeTraded += tr.Quantity
		buyStats.CashSpent += notional
		sellStats := e.statsFor(tr.SellerType)
		sellStats.Fills++
		sellStats.VolumeTraded += tr.Quantity
		sellStats.CashReceived += notional

		if c, ok := e.commodities[tr.Symbol]; ok {
			c.ApplyTradePrice(tr.Price, tr.Quantity)
			c.AddVolume(tr.Quantity)
		}
		volumes[tr.Symbol] += tr.Quantity

		if buyer, ok := e.agentByID[tr.BuyerID]; ok {
			buyer.OnFill(tr)
		}
		if seller, ok := e.agentByID[tr.SellerID]; ok {
			seller.OnFill(tr)
		}

		if e.tradeCallback != nil {
			e.tradeCallback(tr)
		}
	}

	return volumes
}

// SubmitUserOrder places an external order tagged with the reserved user
// agent id. Returns the assigned order id.
func (e *Engine) SubmitUserOrder(symbol string, side orderbook.Side, typ orderbook.Type, price float64, quantity int64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, ok := e.books[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrBadOrder)
	}
	if side != orderbook.SideBuy && side != orderbook.SideSell {
		return 0, fmt.Errorf("%w: side must be buy or sell", ErrBadOrder)
	}
	switch typ {
	case orderbook.TypeLimit:
		if price <= 0 {
			return 0, fmt.Errorf("%w: limit orders need a positive price", ErrBadOrder)
		}
	case orderbook.TypeMarket:
		price = 0
	default:
		return 0, fmt.Errorf("%w: type must be market or limit", ErrBadOrder)
	}

	id := book.Add(orderbook.Order{
		AgentID:  UserAgentID,
		Symbol:   symbol,
		Side:     side,
		Type:     typ,
		Price:    price,
		Quantity: quantity,
	})
	e.countOrder("User", side, typ)

	// crossing orders execute right away instead of waiting for the next tick
	if trades := book.Match(); len(trades) > 0 {
		for i := range trades {
			trades[i].BuyerType = e.agentTypeName(trades[i].BuyerID)
			trades[i].SellerType = e.agentTypeName(trades[i].SellerID)
		}
		for sym, v := range e.settleTrades(trades) {
			if e.pendingVolumes == nil {
				e.pendingVolumes = make(map[string]int64)
			}
			e.pendingVolumes[sym] += v
		}
	}
	e.log.Info("user order accepted",
		zap.Uint64("orderId", id),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("type", string(typ)),
		zap.Float64("price", price),
		zap.Int64("quantity", quantity))
	return id, nil
}

// CancelOrder cancels a resting order in the symbol's book.
func (e *Engine) CancelOrder(symbol string, id uint64) (bool, error) {
	e.mu.RLock()
	book, ok := e.books[symbol]
	e.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return book.Cancel(id), nil
}

// InjectNews queues an event for the next tick's Generate.
func (e *Engine) InjectNews(category news.Category, symbol string, sentiment news.Sentiment, magnitude float64, headline string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch category {
	case news.CategoryGlobal:
		e.newsGen.InjectGlobal(sentiment, magnitude, headline)
	case news.CategoryPolitical:
		e.newsGen.InjectPolitical(sentiment, magnitude, headline)
	case news.CategorySupply:
		if _, ok := e.commodities[symbol]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		e.newsGen.InjectSupply(symbol, sentiment, magnitude, headline)
	case news.CategoryDemand:
		if _, ok := e.commodities[symbol]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		e.newsGen.InjectDemand(symbol, sentiment, magnitude, headline)
	default:
		return fmt.Errorf("unknown news category %q", category)
	}
	return nil
}

// State builds a fresh snapshot outside the tick cycle, for the HTTP layer.
func (e *Engine) State() *market.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buildStateLocked(e.clock.SimTime(), e.clock.TickScale())
}

// Metrics aggregates the engine counters. AvgSpread averages only books with
// a positive two-sided spread; Returns measure each symbol from its oldest
// retained price.
func (e *Engine) Metrics() Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var spreadSum float64
	var spreadCount int
	for _, symbol := range e.symbols {
		if s := e.books[symbol].Spread(); s > 0 {
			spreadSum += s
			spreadCount++
		}
	}
	avgSpread := 0.0
	if spreadCount > 0 {
		avgSpread = spreadSum / float64(spreadCount)
	}

	returns := make(map[string]float64, len(e.symbols))
	for _, symbol := range e.symbols {
		c := e.commodities[symbol]
		history := c.PriceHistory()
		if len(history) > 0 && history[0] > 0 {
			returns[symbol] = (c.Price() - history[0]) / history[0]
		}
	}

	stats := make(map[string]*AgentTypeStats, len(e.stats))
	for k, v := range e.stats {
		copied := *v
		stats[k] = &copied
	}

	return Metrics{
		TotalTicks:      e.totalTicks,
		TotalTrades:     e.totalTrades,
		TotalOrders:     e.totalOrders,
		AvgSpread:       avgSpread,
		GlobalSentiment: e.globalSentiment,
		Returns:         returns,
		AgentTypeStats:  stats,
	}
}

// RecentTrades returns up to count of the latest executions, oldest first.
func (e *Engine) RecentTrades(count int) []orderbook.Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.recentTrades) == 0 {
		return nil
	}
	start := 0
	if len(e.recentTrades) > count {
		start = len(e.recentTrades) - count
	}
	return append([]orderbook.Trade(nil), e.recentTrades[start:]...)
}

// Commodity returns the instrument for symbol, nil when absent.
func (e *Engine) Commodity(symbol string) *market.Commodity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.commodities[symbol]
}

// CommodityInfo is a consistent read of one instrument.
type CommodityInfo struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	Price         float64             `json:"price"`
	Change        float64             `json:"change"`
	DailyVolume   int64               `json:"dailyVolume"`
	SupplyDemand  market.SupplyDemand `json:"supplyDemand"`
	CircuitBroken bool                `json:"circuitBroken"`
}

// CommodityInfos snapshots every instrument under one lock, sorted by
// symbol.
func (e *Engine) CommodityInfos() []CommodityInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]CommodityInfo, 0, len(e.symbols))
	for _, symbol := range e.symbols {
		c := e.commodities[symbol]
		out = append(out, CommodityInfo{
			Symbol:        symbol,
			Name:          c.Name(),
			Category:      c.Category(),
			Price:         c.Price(),
			Change:        c.Return(1),
			DailyVolume:   c.DailyVolume(),
			SupplyDemand:  c.SupplyDemand(),
			CircuitBroken: c.IsCircuitBroken(),
		})
	}
	return out
}

// AgentCashSummary aggregates cash balances for one strategy type.
type AgentCashSummary struct {
	Count       int     `json:"count"`
	Cash        float64 `json:"cash"`
	InitialCash float64 `json:"initialCash"`
}

// AgentCashByType sums current and starting cash per strategy type under the
// engine lock so a tick never skews the totals.
func (e *Engine) AgentCashByType() map[string]AgentCashSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]AgentCashSummary)
	for _, a := range e.agents {
		s := out[a.Type()]
		s.Count++
		s.Cash += a.Cash()
		s.InitialCash += a.InitialCash()
		out[a.Type()] = s
	}
	return out
}

// NewsHistory returns up to limit of the latest processed events, newest
// first. limit <= 0 returns everything retained.
func (e *Engine) NewsHistory(limit int) []news.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hist := e.newsGen.History()
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	out := make([]news.Event, len(hist))
	for i, ev := range hist {
		out[len(hist)-1-i] = ev
	}
	return out
}

// Symbols returns the catalog symbols in sorted order.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.symbols...)
}

// Book returns the order book for symbol, nil when absent.
func (e *Engine) Book(symbol string) *orderbook.Book {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.books[symbol]
}

// Agents returns the live agent roster. Callers must treat it as read-only.
func (e *Engine) Agents() []agent.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agents
}

// Clock exposes the simulation clock.
func (e *Engine) Clock() *clock.SimClock { return e.clock }

// NewsGen exposes the generator, for history queries.
func (e *Engine) NewsGen() *news.Generator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.newsGen
}

// Config returns the engine's active configuration.
func (e *Engine) Config() *config.RuntimeConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig copies cfg into the active configuration, which the agents share
// by pointer. Hot keys apply from the next tick; cold keys wait for Reset.
func (e *Engine) SetConfig(cfg *config.RuntimeConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	*e.cfg = *cfg
	e.newsGen.SetLambda(cfg.News.Lambda)
	e.newsGen.SetGlobalImpactStd(cfg.News.GlobalImpactStd)
	e.newsGen.SetPoliticalImpactStd(cfg.News.PoliticalImpactStd)
	e.newsGen.SetSupplyImpactStd(cfg.News.SupplyImpactStd)
	e.newsGen.SetDemandImpactStd(cfg.News.DemandImpactStd)
	for _, c := range e.commodities {
		c.SetMaxDailyMove(cfg.Commodity.CircuitBreakerLimit)
		c.SetImpactDampening(cfg.Commodity.ImpactDampening)
		c.SetPriceFloor(cfg.Commodity.PriceFloor)
		c.SetSupplyDecayRate(cfg.Commodity.SupplyDecayRate)
		c.SetDemandDecayRate(cfg.Commodity.DemandDecayRate)
	}
	for _, b := range e.books {
		b.SetMaxOrderAgeMs(int64(cfg.OrderBook.OrderExpiryMs))
	}
}

// GlobalSentiment is the process-wide mood in [-inf, inf], decayed per tick.
func (e *Engine) GlobalSentiment() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.globalSentiment
}
