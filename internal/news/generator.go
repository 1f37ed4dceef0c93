package news

import (
	"math"
	"math/rand"

	"github.com/google/uuid"
)

const (
	maxRecent  = 20
	maxHistory = 50000
)

var supplySubcategories = []string{"production", "logistics", "inventory", "weather"}
var demandSubcategories = []string{"consumption", "industrial", "seasonal", "export"}

// Generator draws news events from a Poisson process. All randomness comes
// from the injected rng, so a fixed seed reproduces the event stream exactly.
type Generator struct {
	rng *rand.Rand

	lambda             float64
	globalImpactStd    float64
	politicalImpactStd float64
	supplyImpactStd    float64
	demandImpactStd    float64

	symbols          []string
	symbolToName     map[string]string
	symbolToCategory map[string]string

	injected []Event
	recent   []Event
	history  []Event
}

func NewGenerator(rng *rand.Rand, lambda, globalStd, politicalStd, supplyStd, demandStd float64) *Generator {
	return &Generator{
		rng:                rng,
		lambda:             lambda,
		globalImpactStd:    globalStd,
		politicalImpactStd: politicalStd,
		supplyImpactStd:    supplyStd,
		demandImpactStd:    demandStd,
		symbolToName:       make(map[string]string),
		symbolToCategory:   make(map[string]string),
	}
}

// SetCommodities registers the tradable universe for Supply/Demand events.
func (g *Generator) SetCommodities(symbols []string, names, categories map[string]string) {
	g.symbols = append([]string(nil), symbols...)
	g.symbolToName = names
	g.symbolToCategory = categories
}

func (g *Generator) SetLambda(l float64)             { g.lambda = l }
func (g *Generator) SetGlobalImpactStd(s float64)    { g.globalImpactStd = s }
func (g *Generator) SetPoliticalImpactStd(s float64) { g.politicalImpactStd = s }
func (g *Generator) SetSupplyImpactStd(s float64)    { g.supplyImpactStd = s }
func (g *Generator) SetDemandImpactStd(s float64)    { g.demandImpactStd = s }

// Generate drains injected events, stamps them with the current time, then
// draws Poisson(lambda*tickScale) random events. Category split: 15% global,
// 10% political, 35% supply, 40% demand.
func (g *Generator) Generate(currentTime int64, tickScale float64) []Event {
	var events []Event

	for _, ev := range g.drainInjected() {
		ev.Timestamp = currentTime
		events = append(events, ev)
	}

	n := g.poisson(g.lambda * tickScale)
	for i := 0; i < n; i++ {
		r := g.rng.Float64()
		switch {
		case r < 0.15:
			events = append(events, g.generateGlobal(currentTime))
		case r < 0.25:
			events = append(events, g.generatePolitical(currentTime))
		case r < 0.60:
			if len(g.symbols) > 0 {
				events = append(events, g.generateSupply(currentTime))
			}
		default:
			if len(g.symbols) > 0 {
				events = append(events, g.generateDemand(currentTime))
			}
		}
	}

	for _, ev := range events {
		g.history = append(g.history, ev)
		if len(g.history) > maxHistory {
			g.history = g.history[len(g.history)-maxHistory:]
		}
	}

	return events
}

// Inject queues a fully formed event for the next Generate call.
func (g *Generator) Inject(ev Event) {
	if ev.ID == (uuid.UUID{}) {
		ev.ID = uuid.New()
	}
	g.injected = append(g.injected, ev)
}

func (g *Generator) InjectGlobal(sentiment Sentiment, magnitude float64, customHeadline string) {
	g.injectCommon(Event{
		Category:  CategoryGlobal,
		Sentiment: sentiment,
		Magnitude: magnitude,
		Headline:  customHeadline,
	})
}

func (g *Generator) InjectPolitical(sentiment Sentiment, magnitude float64, customHeadline string) {
	g.injectCommon(Event{
		Category:  CategoryPolitical,
		Sentiment: sentiment,
		Magnitude: magnitude,
		Headline:  customHeadline,
	})
}

func (g *Generator) InjectSupply(symbol string, sentiment Sentiment, magnitude float64, customHeadline string) {
	g.injectCommon(Event{
		Category:      CategorySupply,
		Symbol:        symbol,
		CommodityName: g.symbolToName[symbol],
		Sentiment:     sentiment,
		Magnitude:     magnitude,
		Headline:      customHeadline,
	})
}

func (g *Generator) InjectDemand(symbol string, sentiment Sentiment, magnitude float64, customHeadline string) {
	g.injectCommon(Event{
		Category:      CategoryDemand,
		Symbol:        symbol,
		CommodityName: g.symbolToName[symbol],
		Sentiment:     sentiment,
		Magnitude:     magnitude,
		Headline:      customHeadline,
	})
}

func (g *Generator) injectCommon(ev Event) {
	ev.ID = uuid.New()
	if ev.Headline == "" {
		ev.Headline = headline(g.rng, ev.Category, ev.Sentiment, ev.Symbol, ev.CommodityName)
	}
	g.injected = append(g.injected, ev)
}

func (g *Generator) drainInjected() []Event {
	out := g.injected
	g.injected = nil
	return out
}

// AddToRecent pushes an event onto the streaming ring.
func (g *Generator) AddToRecent(ev Event) {
	g.recent = append(g.recent, ev)
	if len(g.recent) > maxRecent {
		g.recent = g.recent[len(g.recent)-maxRecent:]
	}
}

// RecentNews returns up to count of the latest events, oldest first.
func (g *Generator) RecentNews(count int) []Event {
	if len(g.recent) == 0 {
		return nil
	}
	start := 0
	if len(g.recent) > count {
		start = len(g.recent) - count
	}
	return append([]Event(nil), g.recent[start:]...)
}

// History returns the retained event log, oldest first.
func (g *Generator) History() []Event { return g.history }

func (g *Generator) ClearHistory() {
	g.history = nil
	g.recent = nil
}

func (g *Generator) generateGlobal(t int64) Event {
	r := g.rng.Float64()
	sentiment := SentimentNeutral
	switch {
	case r < 0.4:
		sentiment = SentimentPositive
	case r < 0.7:
		sentiment = SentimentNegative
	}
	return Event{
		ID:          uuid.New(),
		Category:    CategoryGlobal,
		Sentiment:   sentiment,
		Magnitude:   math.Abs(g.rng.NormFloat64() * g.globalImpactStd),
		Subcategory: "economic",
		Headline:    headline(g.rng, CategoryGlobal, sentiment, "", ""),
		Timestamp:   t,
	}
}

func (g *Generator) generatePolitical(t int64) Event {
	r := g.rng.Float64()
	sentiment := SentimentNeutral
	switch {
	case r < 0.35:
		sentiment = SentimentPositive
	case r < 0.65:
		sentiment = SentimentNegative
	}
	return Event{
		ID:          uuid.New(),
		Category:    CategoryPolitical,
		Sentiment:   sentiment,
		Magnitude:   math.Abs(g.rng.NormFloat64() * g.politicalImpactStd),
		Subcategory: "political",
		Headline:    headline(g.rng, CategoryPolitical, sentiment, "", ""),
		Timestamp:   t,
	}
}

func (g *Generator) generateSupply(t int64) Event {
	symbol := g.symbols[g.rng.Intn(len(g.symbols))]
	name := g.symbolToName[symbol]
	if name == "" {
		name = symbol
	}

	// supply shocks lean negative
	r := g.rng.Float64()
	sentiment := SentimentNeutral
	switch {
	case r < 0.45:
		sentiment = SentimentNegative
	case r < 0.55:
		sentiment = SentimentPositive
	}

	return Event{
		ID:            uuid.New(),
		Category:      CategorySupply,
		Symbol:        symbol,
		CommodityName: name,
		Sentiment:     sentiment,
		Magnitude:     math.Abs(g.rng.NormFloat64() * g.supplyImpactStd),
		Subcategory:   supplySubcategories[g.rng.Intn(len(supplySubcategories))],
		Headline:      headline(g.rng, CategorySupply, sentiment, symbol, name),
		Timestamp:     t,
	}
}

func (g *Generator) generateDemand(t int64) Event {
	symbol := g.symbols[g.rng.Intn(len(g.symbols))]
	name := g.symbolToName[symbol]
	if name == "" {
		name = symbol
	}

	// demand shocks lean positive
	r := g.rng.Float64()
	sentiment := SentimentNeutral
	switch {
	case r < 0.45:
		sentiment = SentimentPositive
	case r < 0.55:
		sentiment = SentimentNegative
	}

	return Event{
		ID:            uuid.New(),
		Category:      CategoryDemand,
		Symbol:        symbol,
		CommodityName: name,
		Sentiment:     sentiment,
		Magnitude:     math.Abs(g.rng.NormFloat64() * g.demandImpactStd),
		Subcategory:   demandSubcategories[g.rng.Intn(len(demandSubcategories))],
		Headline:      headline(g.rng, CategoryDemand, sentiment, symbol, name),
		Timestamp:     t,
	}
}

// poisson draws from Poisson(mean) with Knuth's product method. Fine for the
// small means used here.
func (g *Generator) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}
