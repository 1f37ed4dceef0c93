package agent

import (
	"math"
	"math/rand"

	"github.com/quantarc/commodity-sim/internal/config"
	"github.com/quantarc/commodity-sim/internal/market"
	"github.com/quantarc/commodity-sim/internal/orderbook"
)

// MarketMaker quotes both sides of every book, widening its spread with
// realised volatility, sentiment and supply/demand imbalance, and skewing
// quotes against its inventory. One random quote per tick reaches the book.
type MarketMaker struct {
	Core
	baseSpread    float64
	inventorySkew float64
	maxInventory  int64
}

func NewMarketMaker(id int64, cash float64, params Params, cfg *config.RuntimeConfig, rng *rand.Rand) *MarketMaker {
	p := cfg.MarketMaker
	return &MarketMaker{
		Core:          newCore(id, cash, params, cfg),
		baseSpread:    uniform(rng, p.BaseSpreadMin, p.BaseSpreadMax),
		inventorySkew: uniform(rng, p.InventorySkewMin, p.InventorySkewMax),
		maxInventory:  p.MaxInventoryMin + rng.Int63n(p.MaxInventoryMax-p.MaxInventoryMin+1),
	}
}

func (m *MarketMaker) Type() string { return "MarketMaker" }

func realisedVolatility(history []float64) float64 {
	if len(history) <= 20 {
		return 0.02
	}
	sumSq := 0.0
	for i := len(history) - 20; i < len(history)-1; i++ {
		if history[i] > 0 {
			ret := (history[i+1] - history[i]) / history[i]
			sumSq += ret * ret
		}
	}
	return math.Sqrt(sumSq / 20)
}

func (m *MarketMaker) Decide(state *market.State, rng *rand.Rand) *orderbook.Order {
	quotes := m.QuoteMarket(state)
	if len(quotes) == 0 {
		return nil
	}
	return quotes[rng.Intn(len(quotes))]
}

// QuoteMarket builds the full two-sided quote set across all symbols.
func (m *MarketMaker) QuoteMarket(state *market.State) []*orderbook.Order {
	p := m.cfg.MarketMaker
	var orders []*orderbook.Order

	for _, symbol := range sortedSymbols(state.Prices) {
		price := state.Prices[symbol]
		if price <= 0 {
			continue
		}

		volatility := realisedVolatility(state.PriceHistory[symbol])

		spread := m.baseSpread * (1.0 + volatility*p.VolatilitySpreadMult)
		spread *= 1.0 + math.Abs(m.sentimentBias)*p.SentimentSpreadMult
		if sd, ok := state.SupplyDemands[symbol]; ok {
			spread *= 1.0 + 2.0*math.Abs(sd.Imbalance())
		}

		halfSpread := spread * price / 2.0

		// Skew shifts both quotes against inventory, bounded so the book
		// never quotes entirely on one side of the mid.
		skewShift := float64(m.Position(symbol)) * m.inventorySkew * price
		maxShift := halfSpread * 0.25
		if skewShift > maxShift {
			skewShift = maxShift
		} else if skewShift < -maxShift {
			skewShift = -maxShift
		}

		bidPrice := price - halfSpread - skewShift
		askPrice := price + halfSpread - skewShift
		if bidPrice < 0.01 {
			bidPrice = 0.01
		}
		if askPrice < bidPrice+0.01 {
			askPrice = bidPrice + 0.01
		}

		size := int64(m.cash * p.QuoteCapitalFrac / price)
		if size < 1 {
			size = 1
		}

		inventory := m.Position(symbol)
		if inventory < m.maxInventory && m.canBuy(size, bidPrice) {
			orders = append(orders, m.newOrder(symbol, orderbook.SideBuy, orderbook.TypeLimit, bidPrice, size, state.CurrentTime))
		}
		if inventory > -m.maxInventory {
			orders = append(orders, m.newOrder(symbol, orderbook.SideSell, orderbook.TypeLimit, askPrice, size, state.CurrentTime))
		}
	}
	return orders
}
