package market

import "github.com/quantarc/commodity-sim/internal/news"

// CrossEffect is one directed influence edge: a 1% move in the source symbol
// is expected to produce Coefficient% in the target.
type CrossEffect struct {
	TargetSymbol string  `json:"targetSymbol"`
	Coefficient  float64 `json:"coefficient"`
}

// State is the read-only snapshot the engine builds once per tick and hands
// to every agent's decide. Maps are shared across agents within a tick;
// agents must treat them as immutable.
type State struct {
	Prices        map[string]float64
	SupplyDemands map[string]SupplyDemand
	PriceHistory  map[string][]float64
	Categories    map[string]string
	CrossEffects  map[string][]CrossEffect
	RecentNews    []news.Event
	GlobalSentiment float64
	TickScale     float64
	CurrentTime   int64
}
