package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantarc/commodity-sim/internal/candles"
	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/engine"
	"github.com/quantarc/commodity-sim/internal/news"
	"github.com/quantarc/commodity-sim/internal/orderbook"
	"github.com/quantarc/commodity-sim/internal/sim"
)

// writeError maps domain errors to status codes. Every error body is
// {"error": "<message>"}.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrUnknownSymbol):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrBadOrder):
		status = http.StatusBadRequest
	case errors.Is(err, sim.ErrAlreadyRunning),
		errors.Is(err, sim.ErrNotRunning),
		errors.Is(err, sim.ErrPopulating),
		errors.Is(err, sim.ErrRunning):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("handler error", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func int64Query(c *gin.Context, name string, fallback int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) getCommodities(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Commodities())
}

func (s *Server) getAgents(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.AgentsSummary())
}

func (s *Server) getOrderBook(c *gin.Context) {
	view, err := s.ctrl.OrderBookView(c.Param("symbol"), intQuery(c, "depth", 10))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getTrades(c *gin.Context) {
	limit := intQuery(c, "limit", 100)
	if limit <= 0 {
		limit = 100
	}
	symbol := c.Query("symbol")

	trades := s.ctrl.Engine().RecentTrades(math.MaxInt32)
	out := make([]orderbook.Trade, 0, limit)
	// newest first
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && trades[i].Symbol != symbol {
			continue
		}
		out = append(out, trades[i])
	}
	c.JSON(http.StatusOK, gin.H{"trades": out, "count": len(out)})
}

func (s *Server) getNewsHistory(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	events := s.ctrl.Engine().NewsHistory(limit)
	if events == nil {
		events = []news.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"news": events, "count": len(events)})
}

func (s *Server) getCandles(c *gin.Context) {
	interval, err := candles.ParseInterval(c.DefaultQuery("interval", "1m"))
	if err != nil {
		badRequest(c, err)
		return
	}
	symbol := c.Param("symbol")
	if s.ctrl.Engine().Book(symbol) == nil {
		s.writeError(c, engine.ErrUnknownSymbol)
		return
	}
	since := int64Query(c, "since", 0)
	limit := intQuery(c, "limit", 500)
	rows := s.ctrl.Candles().Candles(symbol, interval, since, limit)
	if rows == nil {
		rows = []candles.Candle{}
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"candles":  rows,
		"count":    len(rows),
	})
}

func (s *Server) getCandlesBulk(c *gin.Context) {
	interval, err := candles.ParseInterval(c.DefaultQuery("interval", "1m"))
	if err != nil {
		badRequest(c, err)
		return
	}
	since := int64Query(c, "since", 0)
	c.JSON(http.StatusOK, gin.H{
		"interval": interval,
		"series":   s.ctrl.Candles().Bulk(interval, since),
	})
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Config())
}

func (s *Server) getConfigDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, config.Default())
}

func (s *Server) patchConfig(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	requiresReinit, err := s.ctrl.ApplyConfigPatch(patch)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "applied",
		"requiresReinit": requiresReinit,
	})
}

func (s *Server) resetConfig(c *gin.Context) {
	if err := s.ctrl.ResetConfig(); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) reinitialize(c *gin.Context) {
	if err := s.ctrl.Reinitialize(); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reinitialized"})
}

type controlRequest struct {
	Action string `json:"action" binding:"required" validate:"oneof=start pause resume stop reset step"`
	Count  int    `json:"count"`
}

func (s *Server) control(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(c, err)
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = s.ctrl.Start()
	case "pause":
		err = s.ctrl.Pause()
	case "resume":
		err = s.ctrl.Resume()
	case "stop":
		s.ctrl.Stop()
	case "reset":
		err = s.ctrl.Reset()
	case "step":
		err = s.ctrl.Step(req.Count)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "action": req.Action, "state": s.ctrl.Status()})
}

type newsRequest struct {
	Category  string  `json:"category" binding:"required" validate:"oneof=global political supply demand"`
	Sentiment string  `json:"sentiment" binding:"required" validate:"oneof=positive negative neutral"`
	Magnitude float64 `json:"magnitude" validate:"gte=0,lte=1"`
	Target    string  `json:"target"`
	Headline  string  `json:"headline"`
}

func (s *Server) postNews(c *gin.Context) {
	var req newsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(c, err)
		return
	}

	category := news.Category(req.Category)
	if (category == news.CategorySupply || category == news.CategoryDemand) && req.Target == "" {
		badRequest(c, errors.New("supply and demand news require a target symbol"))
		return
	}
	err := s.ctrl.Engine().InjectNews(category, req.Target, news.Sentiment(req.Sentiment), req.Magnitude, req.Headline)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

type orderRequest struct {
	Symbol   string  `json:"symbol" binding:"required"`
	Side     string  `json:"side" binding:"required" validate:"oneof=buy sell"`
	Type     string  `json:"type" binding:"required" validate:"oneof=market limit"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity" binding:"required" validate:"gt=0"`
	UserID   string  `json:"userId"`
}

func (s *Server) postOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(c, err)
		return
	}

	id, err := s.ctrl.Engine().SubmitUserOrder(
		req.Symbol,
		orderbook.Side(req.Side),
		orderbook.Type(req.Type),
		req.Price,
		req.Quantity,
	)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "orderId": id})
}

type populateRequest struct {
	Days      int    `json:"days" validate:"gte=0"`
	Ticks     int    `json:"ticks" validate:"gte=0"`
	StartDate string `json:"startDate"`
}

func (s *Server) populate(c *gin.Context) {
	var req populateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Days == 0 && req.Ticks == 0 {
		badRequest(c, errors.New("populate requires days or ticks"))
		return
	}

	if req.StartDate != "" {
		if _, err := s.ctrl.ApplyConfigPatch(map[string]any{
			"simulation": map[string]any{"startDate": req.StartDate},
		}); err != nil {
			badRequest(c, err)
			return
		}
		if err := s.ctrl.Reinitialize(); err != nil {
			s.writeError(c, err)
			return
		}
	}

	var err error
	if req.Ticks > 0 {
		err = s.ctrl.PopulateTicks(req.Ticks)
	} else {
		err = s.ctrl.Populate(req.Days)
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "populated", "state": s.ctrl.Status()})
}

type exportRequest struct {
	Format   string `json:"format" binding:"required" validate:"oneof=csv json"`
	DataDir  string `json:"dataDir" binding:"required"`
	MaxTicks int    `json:"maxTicks" validate:"gte=0"`
}

func (s *Server) export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.ctrl.Export(req.Format, req.DataDir, req.MaxTicks); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exported", "format": req.Format, "dataDir": req.DataDir})
}

func (s *Server) getDiagnostics(c *gin.Context) {
	eng := s.ctrl.Engine()
	clk := eng.Clock()
	m := eng.Metrics()

	priceFloor := s.ctrl.Config().Commodity.PriceFloor
	assets := make(map[string]gin.H)
	for _, info := range eng.CommodityInfos() {
		health := gin.H{
			"price":         info.Price,
			"dailyVolume":   info.DailyVolume,
			"circuitBroken": info.CircuitBroken,
			"atPriceFloor":  info.Price <= priceFloor,
		}
		if book := eng.Book(info.Symbol); book != nil {
			bids, asks := book.Depth()
			health["bestBid"] = book.BestBid()
			if ask := book.BestAsk(); math.IsInf(ask, 1) {
				health["bestAsk"] = 0.0
			} else {
				health["bestAsk"] = ask
			}
			health["spread"] = book.Spread()
			health["bidDepth"] = bids
			health["askDepth"] = asks
			if mid := book.MidPrice(); mid > 0 {
				health["spreadPct"] = book.Spread() / mid * 100
			} else {
				health["spreadPct"] = 0.0
			}
		}
		assets[info.Symbol] = health
	}

	c.JSON(http.StatusOK, gin.H{
		"state":          s.ctrl.Status(),
		"agents":         s.ctrl.AgentsSummary(),
		"agentTypeStats": m.AgentTypeStats,
		"agentCash":      eng.AgentCashByType(),
		"assets":         assets,
		"clock": gin.H{
			"simDate":     clk.CurrentDateTimeString(),
			"ticksPerDay": clk.TicksPerDay(),
			"tickInDay":   clk.TickInDay(),
			"totalTicks":  clk.TotalTicks(),
		},
		"metrics": gin.H{
			"totalTicks":      m.TotalTicks,
			"totalTrades":     m.TotalTrades,
			"totalOrders":     m.TotalOrders,
			"avgSpread":       m.AvgSpread,
			"globalSentiment": m.GlobalSentiment,
		},
		"recentTrades": eng.RecentTrades(10),
	})
}
