// Package sim wraps the engine with a concurrency-safe lifecycle: a paced
// tick loop, bulk fast-forward, config hot-reload and read-oriented
// snapshots for the HTTP layer.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quantarc/commodity-sim/internal/candles"
	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/engine"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/metrics"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
	"github.com/quantarc/commodity-sim/internal/tickbuffer"
)

var (
	ErrAlreadyRunning = errors.New("simulation already running")
	ErrNotRunning     = errors.New("simulation not running")
	ErrPopulating     = errors.New("population in progress")
	ErrRunning        = errors.New("simulation must be stopped first")
)

// Status is the lock-free lifecycle view served by GET /state.
type Status struct {
	Running     bool   `json:"running"`
	Paused      bool   `json:"paused"`
	Populating  bool   `json:"populating"`
	CurrentTick uint64 `json:"currentTick"`
	SimDate     string `json:"simDate"`
}

// CommodityView is one row of GET /commodities.
type CommodityView struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	Price         float64             `json:"price"`
	Change        float64             `json:"change"`
	DailyVolume   int64               `json:"dailyVolume"`
	SupplyDemand  market.SupplyDemand `json:"supplyDemand"`
	Imbalance     float64             `json:"imbalance"`
	CircuitBroken bool                `json:"circuitBroken"`
}

// AgentTypeView combines the population count with activity stats for one
// strategy type.
type AgentTypeView struct {
	Count int                    `json:"count"`
	Stats *engine.AgentTypeStats `json:"stats"`
}

// BookView is the GET /orderbook response. BestAsk is 0 when the ask side
// is empty.
type BookView struct {
	Symbol   string             `json:"symbol"`
	BestBid  float64            `json:"bestBid"`
	BestAsk  float64            `json:"bestAsk"`
	Spread   float64            `json:"spread"`
	MidPrice float64            `json:"midPrice"`
	Bids     []orderbook.PriceLevel `json:"bids"`
	Asks     []orderbook.PriceLevel `json:"asks"`
}

// Controller owns the engine plus its derived views (candles, tick buffer)
// and serializes lifecycle transitions. Atomic flags stay readable while a
// tick or population holds the engine lock.
type Controller struct {
	log *zap.Logger

	mu     sync.Mutex // lifecycle transitions and config swaps
	cfg    *config.RuntimeConfig
	engine *engine.Engine

	candles *candles.Aggregator
	buffer  *tickbuffer.Buffer

	running     atomic.Bool
	paused      atomic.Bool
	populating  atomic.Bool
	currentTick atomic.Uint64
	simDate     atomic.Value // string

	newsSubs struct {
		sync.Mutex
		nextID int
		fns    map[int]func(news.Event)
	}

	loopDone chan struct{}
}

// New builds the controller and wires the engine's listeners.
func New(cfg *config.RuntimeConfig, seed int64, log *zap.Logger) (*Controller, error) {
	if log == nil {
		log = zap.NewNop()
	}
	eng, err := engine.New(cfg, seed, log)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		log:     log,
		cfg:     cfg,
		engine:  eng,
		candles: candles.NewAggregator(),
		buffer:  tickbuffer.New(0),
	}
	c.simDate.Store(eng.Clock().CurrentDateString())

	eng.AddTickListener(c.candles.OnTick)
	eng.AddTickListener(c.buffer.OnTick)
	eng.AddTickListener(func(tick uint64, simTime int64, prices map[string]float64, _ map[string]int64) {
		c.currentTick.Store(tick)
		c.simDate.Store(clockDate(simTime))
		metrics.TicksProcessed.Inc()
		metrics.CurrentTick.Set(float64(tick))
		for symbol, price := range prices {
			metrics.CommodityPrice.WithLabelValues(symbol).Set(price)
		}
	})
	c.newsSubs.fns = make(map[int]func(news.Event))
	eng.SetNewsCallback(func(ev news.Event) {
		metrics.NewsEvents.WithLabelValues(string(ev.Category)).Inc()
		c.buffer.OnNews(ev)
		c.newsSubs.Lock()
		fns := make([]func(news.Event), 0, len(c.newsSubs.fns))
		for _, fn := range c.newsSubs.fns {
			fns = append(fns, fn)
		}
		c.newsSubs.Unlock()
		for _, fn := range fns {
			fn(ev)
		}
	})
	eng.SetTradeCallback(func(tr orderbook.Trade) {
		metrics.TradesExecuted.WithLabelValues(tr.Symbol).Inc()
	})
	return c, nil
}

func clockDate(simTimeMs int64) string {
	return time.UnixMilli(simTimeMs).UTC().Format("2006-01-02")
}

// Engine exposes the underlying engine for direct queries.
func (c *Controller) Engine() *engine.Engine { return c.engine }

// Candles exposes the candle cache.
func (c *Controller) Candles() *candles.Aggregator { return c.candles }

// SubscribeNews registers a fan-out hook for every processed event. The
// returned function removes the subscription.
func (c *Controller) SubscribeNews(fn func(news.Event)) func() {
	c.newsSubs.Lock()
	defer c.newsSubs.Unlock()
	id := c.newsSubs.nextID
	c.newsSubs.nextID++
	c.newsSubs.fns[id] = fn
	return func() {
		c.newsSubs.Lock()
		defer c.newsSubs.Unlock()
		delete(c.newsSubs.fns, id)
	}
}

// Status reads the lifecycle flags without touching the engine lock.
func (c *Controller) Status() Status {
	date, _ := c.simDate.Load().(string)
	return Status{
		Running:     c.running.Load(),
		Paused:      c.paused.Load(),
		Populating:  c.populating.Load(),
		CurrentTick: c.currentTick.Load(),
		SimDate:     date,
	}
}

// Start spawns the paced tick loop.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populating.Load() {
		return ErrPopulating
	}
	if c.running.Load() {
		return ErrAlreadyRunning
	}

	c.running.Store(true)
	c.paused.Store(false)
	done := make(chan struct{})
	c.loopDone = done

	cfg := c.cfg
	go c.runLoop(done, cfg.Simulation.TickRateMs, cfg.Simulation.MaxTicks)
	c.log.Info("simulation started",
		zap.Int("tickRateMs", cfg.Simulation.TickRateMs),
		zap.Int("maxTicks", cfg.Simulation.MaxTicks))
	return nil
}

func (c *Controller) runLoop(done chan struct{}, tickRateMs, maxTicks int) {
	defer close(done)
	interval := time.Duration(tickRateMs) * time.Millisecond
	for c.running.Load() {
		if !c.paused.Load() {
			c.engine.Tick()
			if maxTicks > 0 && c.currentTick.Load() >= uint64(maxTicks) {
				c.running.Store(false)
				c.log.Info("max ticks reached", zap.Int("maxTicks", maxTicks))
				break
			}
		}
		time.Sleep(interval)
	}
}

// Pause suspends ticking without stopping the loop.
func (c *Controller) Pause() error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	c.paused.Store(true)
	return nil
}

// Resume lifts a pause.
func (c *Controller) Resume() error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	c.paused.Store(false)
	return nil
}

// Stop ends the tick loop and joins it. No tick in progress is interrupted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if !c.running.Load() {
		return
	}
	c.running.Store(false)
	if c.loopDone != nil {
		<-c.loopDone
		c.loopDone = nil
	}
	c.log.Info("simulation stopped", zap.Uint64("tick", c.currentTick.Load()))
}

// Step runs n ticks synchronously. Usable while paused or idle.
func (c *Controller) Step(n int) error {
	if c.populating.Load() {
		return ErrPopulating
	}
	if n <= 0 {
		n = 1
	}
	maxTicks := c.cfg.Simulation.MaxTicks
	for i := 0; i < n; i++ {
		if maxTicks > 0 && c.currentTick.Load() >= uint64(maxTicks) {
			break
		}
		c.engine.Tick()
	}
	return nil
}

// Reset stops the loop and restores the initial simulation state.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populating.Load() {
		return ErrPopulating
	}
	c.stopLocked()
	if err := c.engine.Reset(); err != nil {
		return err
	}
	c.candles.Reset()
	c.buffer.Reset()
	c.currentTick.Store(0)
	c.paused.Store(false)
	c.simDate.Store(c.engine.Clock().CurrentDateString())
	c.log.Info("simulation reset")
	return nil
}

// Reinitialize rebuilds the engine from the current config, applying cold
// keys that a plain config patch cannot.
func (c *Controller) Reinitialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populating.Load() {
		return ErrPopulating
	}
	if err := c.reinitLocked(); err != nil {
		return err
	}
	c.log.Info("simulation reinitialized")
	return nil
}

// ResetConfig restores the default configuration and reinitializes.
func (c *Controller) ResetConfig() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.populating.Load() {
		return ErrPopulating
	}
	c.cfg = config.Default()
	if err := c.reinitLocked(); err != nil {
		return err
	}
	c.log.Info("configuration reset to defaults")
	return nil
}

func (c *Controller) reinitLocked() error {
	c.stopLocked()
	c.engine.SetConfig(c.cfg)
	if err := c.engine.Reset(); err != nil {
		return err
	}
	c.candles.Reset()
	c.buffer.Reset()
	c.currentTick.Store(0)
	c.paused.Store(false)
	c.simDate.Store(c.engine.Clock().CurrentDateString())
	return nil
}

// Populate fast-forwards the given number of simulated days in two phases:
// coarse ticks for the bulk of the range, finer ticks for the last
// populateFineDays. The reference rate is pinned to each phase's rate so
// tickScale stays 1 during backfill, then both rates are restored.
func (c *Controller) Populate(days int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return ErrRunning
	}
	if !c.populating.CompareAndSwap(false, true) {
		return ErrPopulating
	}
	defer c.populating.Store(false)

	if days <= 0 {
		return fmt.Errorf("populate: days must be positive, got %d", days)
	}

	sim := c.cfg.Simulation
	fineDays := sim.PopulateFineDays
	if fineDays > days {
		fineDays = days
	}
	coarseDays := days - fineDays

	clk := c.engine.Clock()
	normalTPD := clk.TicksPerDay()
	normalRef := clk.ReferenceTicksPerDay()
	defer func() {
		clk.SetTicksPerDay(normalTPD)
		clk.SetReferenceTicksPerDay(normalRef)
	}()

	start := time.Now()
	if coarseDays > 0 {
		c.runPopulatePhase(sim.PopulateTicksPerDay, coarseDays)
	}
	if fineDays > 0 {
		c.runPopulatePhase(sim.PopulateFineTicksPerDay, fineDays)
	}

	c.log.Info("population complete",
		zap.Int("days", days),
		zap.Int("coarseDays", coarseDays),
		zap.Int("fineDays", fineDays),
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("tick", c.currentTick.Load()))
	return nil
}

func (c *Controller) runPopulatePhase(ticksPerDay, days int) {
	clk := c.engine.Clock()
	clk.SetTicksPerDay(ticksPerDay)
	clk.SetReferenceTicksPerDay(ticksPerDay)
	for i := 0; i < ticksPerDay*days; i++ {
		c.engine.Tick()
	}
}

// PopulateTicks fast-forwards exactly n ticks at the coarse populate rate.
func (c *Controller) PopulateTicks(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return ErrRunning
	}
	if !c.populating.CompareAndSwap(false, true) {
		return ErrPopulating
	}
	defer c.populating.Store(false)

	if n <= 0 {
		return fmt.Errorf("populate: tick count must be positive, got %d", n)
	}

	clk := c.engine.Clock()
	normalTPD := clk.TicksPerDay()
	normalRef := clk.ReferenceTicksPerDay()
	defer func() {
		clk.SetTicksPerDay(normalTPD)
		clk.SetReferenceTicksPerDay(normalRef)
	}()

	clk.SetTicksPerDay(c.cfg.Simulation.PopulateTicksPerDay)
	clk.SetReferenceTicksPerDay(c.cfg.Simulation.PopulateTicksPerDay)
	for i := 0; i < n; i++ {
		c.engine.Tick()
	}
	c.log.Info("population complete", zap.Int("ticks", n))
	return nil
}

// Config returns a deep copy of the active configuration.
func (c *Controller) Config() *config.RuntimeConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// ApplyConfigPatch merges the patch into the active config. Hot keys take
// effect from the next tick; the returned flag tells the caller that at
// least one cold key needs Reinitialize. The active config is untouched on
// error.
func (c *Controller) ApplyConfigPatch(patch map[string]any) (requiresReinit bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// MergePatch lower-cases the patch keys in place, so the cold-key check
	// runs first.
	requiresReinit = config.RequiresReinit(patch)
	merged, err := c.cfg.MergePatch(patch)
	if err != nil {
		return false, err
	}
	c.cfg = merged
	c.engine.SetConfig(merged)
	return requiresReinit, nil
}

// Export dumps the tick buffer. Rejected while populating so the export
// never interleaves with a bulk write.
func (c *Controller) Export(format, dir string, maxTicks int) error {
	if c.populating.Load() {
		return ErrPopulating
	}
	switch format {
	case "csv":
		return c.buffer.ExportCSV(dir, maxTicks)
	case "json":
		return c.buffer.ExportJSON(dir, maxTicks)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Commodities builds the GET /commodities rows in sorted symbol order.
func (c *Controller) Commodities() []CommodityView {
	infos := c.engine.CommodityInfos()
	out := make([]CommodityView, 0, len(infos))
	for _, info := range infos {
		out = append(out, CommodityView{
			Symbol:        info.Symbol,
			Name:          info.Name,
			Category:      info.Category,
			Price:         info.Price,
			Change:        info.Change,
			DailyVolume:   info.DailyVolume,
			SupplyDemand:  info.SupplyDemand,
			Imbalance:     info.SupplyDemand.Imbalance(),
			CircuitBroken: info.CircuitBroken,
		})
	}
	return out
}

// AgentsSummary merges population counts with per-type activity stats.
func (c *Controller) AgentsSummary() map[string]AgentTypeView {
	counts := make(map[string]int)
	for _, a := range c.engine.Agents() {
		counts[a.Type()]++
	}
	stats := c.engine.Metrics().AgentTypeStats

	out := make(map[string]AgentTypeView, len(stats))
	for typ, s := range stats {
		out[typ] = AgentTypeView{Count: counts[typ], Stats: s}
	}
	for typ, n := range counts {
		if _, ok := out[typ]; !ok {
			out[typ] = AgentTypeView{Count: n, Stats: &engine.AgentTypeStats{}}
		}
	}
	return out
}

// OrderBookView snapshots one book with its derived quote stats.
func (c *Controller) OrderBookView(symbol string, depth int) (*BookView, error) {
	book := c.engine.Book(symbol)
	if book == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownSymbol, symbol)
	}
	if depth <= 0 {
		depth = 10
	}
	snap := book.GetSnapshot(depth)
	bestAsk := book.BestAsk()
	if math.IsInf(bestAsk, 1) {
		bestAsk = 0
	}
	return &BookView{
		Symbol:   symbol,
		BestBid:  book.BestBid(),
		BestAsk:  bestAsk,
		Spread:   book.Spread(),
		MidPrice: book.MidPrice(),
		Bids:     snap.Bids,
		Asks:     snap.Asks,
	}, nil
}
