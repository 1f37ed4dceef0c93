// Package api serves the simulation over HTTP: lifecycle control, market
// snapshots, candles, config patches and a server-sent event stream.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantarc/commodity-sim/internal/sim"
)

var validate = validator.New()

// Server wraps the gin router around one simulation controller.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
	ctrl   *sim.Controller
}

// NewServer builds the router with logging, recovery and CORS middleware and
// registers every route.
func NewServer(ctrl *sim.Controller, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &Server{
		logger: logger,
		ctrl:   ctrl,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start runs the HTTP server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal gin engine for testing purposes.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", s.health)
	r.GET("/state", s.getState)
	r.GET("/commodities", s.getCommodities)
	r.GET("/agents", s.getAgents)
	r.GET("/orderbook/:symbol", s.getOrderBook)
	r.GET("/trades", s.getTrades)
	r.GET("/news/history", s.getNewsHistory)
	r.GET("/diagnostics", s.getDiagnostics)
	r.GET("/stream", s.stream)

	// the bulk route must precede the parameterized one
	r.GET("/candles/bulk", s.getCandlesBulk)
	r.GET("/candles/:symbol", s.getCandles)

	r.GET("/config", s.getConfig)
	r.GET("/config/defaults", s.getConfigDefaults)
	r.POST("/config", s.patchConfig)
	r.POST("/config/reset", s.resetConfig)

	r.POST("/control", s.control)
	r.POST("/news", s.postNews)
	r.POST("/orders", s.postOrder)
	r.POST("/reinitialize", s.reinitialize)
	r.POST("/populate", s.populate)
	r.POST("/export", s.export)
}
