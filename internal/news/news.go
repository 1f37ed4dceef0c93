// Package news produces the stochastic event stream that drives sentiment
// and supply/demand shocks in the simulation.
package news

import (
	"github.com/google/uuid"
)

// Category classifies what a news event acts on. Global and Political events
// carry no symbol and shift process-wide sentiment; Supply and Demand events
// target one commodity.
type Category string

const (
	CategoryGlobal    Category = "global"
	CategoryPolitical Category = "political"
	CategorySupply    Category = "supply"
	CategoryDemand    Category = "demand"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sign maps sentiment to a direction multiplier.
func (s Sentiment) Sign() float64 {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	default:
		return 0
	}
}

// Event is a single piece of market news. ID is stable across all consumers
// so downstream deduplication does not rely on (timestamp, symbol) pairs.
type Event struct {
	ID            uuid.UUID `json:"id"`
	Category      Category  `json:"category"`
	Sentiment     Sentiment `json:"sentiment"`
	Magnitude     float64   `json:"magnitude"`
	Symbol        string    `json:"symbol,omitempty"`
	CommodityName string    `json:"commodityName,omitempty"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Headline      string    `json:"headline"`
	Timestamp     int64     `json:"timestamp"`
}
