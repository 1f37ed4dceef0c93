package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
)

// GenerateParams samples one agent's behavioral parameters from the
// configured distributions.
func GenerateParams(cfg *config.RuntimeConfig, rng *rand.Rand) Params {
	g := cfg.AgentGen

	riskAversion := g.RiskAversionMean + rng.NormFloat64()*g.RiskAversionStd
	if riskAversion < g.RiskAversionMin {
		riskAversion = g.RiskAversionMin
	}

	return Params{
		RiskAversion:    riskAversion,
		ReactionSpeed:   rng.ExpFloat64() / g.ReactionSpeedLambda,
		NewsWeight:      uniform(rng, g.NewsWeightMin, g.NewsWeightMax),
		ConfidenceLevel: uniform(rng, g.ConfidenceMin, g.ConfidenceMax),
		TimeHorizon:     int(math.Exp(g.TimeHorizonMu + rng.NormFloat64()*g.TimeHorizonSigma)),
	}
}

// NewPopulation builds the full agent roster from the configured counts,
// assigning monotone ids starting at 1 and drawing each agent's cash from
// N(meanCash, stdCash) floored at 1000.
func NewPopulation(cfg *config.RuntimeConfig, rng *rand.Rand) []Agent {
	counts := cfg.AgentCounts
	agents := make([]Agent, 0, counts.Total())
	nextID := int64(1)

	drawCash := func() float64 {
		return math.Max(1000.0, cfg.AgentCash.MeanCash+rng.NormFloat64()*cfg.AgentCash.StdCash)
	}

	for i := 0; i < counts.SupplyDemand; i++ {
		agents = append(agents, NewSupplyDemandTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.Momentum; i++ {
		agents = append(agents, NewMomentumTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.MeanReversion; i++ {
		agents = append(agents, NewMeanReversionTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.Noise; i++ {
		agents = append(agents, NewNoiseTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.MarketMaker; i++ {
		agents = append(agents, NewMarketMaker(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.CrossEffects; i++ {
		agents = append(agents, NewCrossEffectsTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.Inventory; i++ {
		agents = append(agents, NewInventoryTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}
	for i := 0; i < counts.Event; i++ {
		agents = append(agents, NewEventTrader(nextID, drawCash(), GenerateParams(cfg, rng), cfg, rng))
		nextID++
	}

	return agents
}
