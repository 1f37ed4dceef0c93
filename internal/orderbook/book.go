package orderbook

import (
	"container/heap"
	"math"
	"sort"
	"sync"

	"github.com/tidwall/btree"
)

// TimeSource supplies simulated timestamps for order stamping and expiry.
type TimeSource interface {
	SimTime() int64
}

// Book is one symbol's order book. Cancellation is lazy: cancel flips the
// active flag and the queues drop dead entries when they surface. The btree
// maps cache one representative live order id per price so best-price
// queries stay O(log n) without scanning the heaps.
type Book struct {
	mu     sync.Mutex
	symbol string

	bids bidQueue
	asks askQueue

	activeOrders map[uint64]bool

	bestBidByPrice *btree.Map[float64, uint64]
	bestAskByPrice *btree.Map[float64, uint64]

	maxOrderAgeMs int64
	clock         TimeSource
}

func New(symbol string) *Book {
	return &Book{
		symbol:         symbol,
		activeOrders:   make(map[uint64]bool),
		bestBidByPrice: btree.NewMap[float64, uint64](32),
		bestAskByPrice: btree.NewMap[float64, uint64](32),
		maxOrderAgeMs:  172800000, // 2 simulated days
	}
}

func (b *Book) Symbol() string { return b.symbol }

// SetClock wires the simulated clock used for stamping and expiry.
func (b *Book) SetClock(clock TimeSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
}

func (b *Book) SetMaxOrderAgeMs(ms int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxOrderAgeMs = ms
}

func (b *Book) currentTs() int64 {
	if b.clock != nil {
		return b.clock.SimTime()
	}
	return 0
}

// Add stamps the order with sim time, assigns a fresh id when the incoming
// id is zero, and enqueues it. Never rejects; input validation happens at
// the engine boundary. Returns the assigned id.
func (b *Book) Add(order Order) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if order.ID == 0 {
		order.ID = allocateOrderID()
	}
	order.Timestamp = b.currentTs()
	b.activeOrders[order.ID] = true

	if order.Side == SideBuy {
		heap.Push(&b.bids, order)
		if _, ok := b.bestBidByPrice.Get(order.Price); !ok {
			b.bestBidByPrice.Set(order.Price, order.ID)
		}
	} else {
		heap.Push(&b.asks, order)
		if _, ok := b.bestAskByPrice.Get(order.Price); !ok {
			b.bestAskByPrice.Set(order.Price, order.ID)
		}
	}
	return order.ID
}

// Cancel flips the order's active flag. The queue entry is removed lazily.
// Returns true if the order was live.
func (b *Book) Cancel(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	live, ok := b.activeOrders[id]
	if !ok || !live {
		return false
	}
	b.activeOrders[id] = false
	b.dropFromIndex(b.bestBidByPrice, id)
	b.dropFromIndex(b.bestAskByPrice, id)
	return true
}

func (b *Book) dropFromIndex(index *btree.Map[float64, uint64], id uint64) {
	var stale []float64
	index.Scan(func(price float64, orderID uint64) bool {
		if orderID == id {
			stale = append(stale, price)
			return false
		}
		return true
	})
	for _, price := range stale {
		index.Delete(price)
	}
}

// Match produces fills from this book in price-time order. Cancelled and
// expired entries are purged as they surface.
func (b *Book) Match() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	var trades []Trade
	now := b.currentTs()

	expired := func(o Order) bool {
		return (now - o.Timestamp) > b.maxOrderAgeMs
	}

	for b.bids.Len() > 0 && b.asks.Len() > 0 {
		bid := b.bids[0]
		ask := b.asks[0]

		if !b.activeOrders[bid.ID] || expired(bid) {
			b.activeOrders[bid.ID] = false
			heap.Pop(&b.bids)
			continue
		}
		if !b.activeOrders[ask.ID] || expired(ask) {
			b.activeOrders[ask.ID] = false
			heap.Pop(&b.asks)
			continue
		}

		if bid.Price < ask.Price && bid.Type == TypeLimit && ask.Type == TypeLimit {
			break
		}

		// Execution at the resting order's price; market orders take the
		// opposite side's price. On equal timestamps the lower id arrived
		// first and counts as resting.
		var execPrice float64
		if bid.Timestamp < ask.Timestamp ||
			(bid.Timestamp == ask.Timestamp && bid.ID < ask.ID) {
			execPrice = bid.Price
		} else {
			execPrice = ask.Price
		}
		if bid.Type == TypeMarket {
			execPrice = ask.Price
		} else if ask.Type == TypeMarket {
			execPrice = bid.Price
		}

		execQty := bid.Quantity
		if ask.Quantity < execQty {
			execQty = ask.Quantity
		}

		trades = append(trades, Trade{
			BuyOrderID:  bid.ID,
			SellOrderID: ask.ID,
			BuyerID:     bid.AgentID,
			SellerID:    ask.AgentID,
			Symbol:      b.symbol,
			Price:       execPrice,
			Quantity:    execQty,
			Timestamp:   now,
		})

		heap.Pop(&b.bids)
		heap.Pop(&b.asks)
		b.bestBidByPrice.Delete(bid.Price)
		b.bestAskByPrice.Delete(ask.Price)

		if bid.Quantity > execQty {
			remaining := bid
			remaining.Quantity -= execQty
			heap.Push(&b.bids, remaining)
			b.bestBidByPrice.Set(remaining.Price, remaining.ID)
		} else {
			b.activeOrders[bid.ID] = false
		}

		if ask.Quantity > execQty {
			remaining := ask
			remaining.Quantity -= execQty
			heap.Push(&b.asks, remaining)
			b.bestAskByPrice.Set(remaining.Price, remaining.ID)
		} else {
			b.activeOrders[ask.ID] = false
		}
	}

	return trades
}

// BestBid returns the highest live bid price, 0 when the side is empty.
func (b *Book) BestBid() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestBidLocked()
}

// BestAsk returns the lowest live ask price, +Inf when the side is empty.
func (b *Book) BestAsk() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bestAskLocked()
}

// Spread is ask minus bid on the same locked view, 0 when either side is
// empty.
func (b *Book) Spread() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid := b.bestBidLocked()
	ask := b.bestAskLocked()
	if bid > 0 && !math.IsInf(ask, 1) {
		return ask - bid
	}
	return 0
}

// MidPrice is the bid/ask midpoint, degrading to the one-sided quote.
func (b *Book) MidPrice() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid := b.bestBidLocked()
	ask := b.bestAskLocked()
	switch {
	case bid > 0 && !math.IsInf(ask, 1):
		return (bid + ask) / 2.0
	case bid > 0:
		return bid
	case !math.IsInf(ask, 1):
		return ask
	}
	return 0
}

func (b *Book) bestBidLocked() float64 {
	for {
		price, id, ok := b.bestBidByPrice.Max()
		if !ok {
			break
		}
		if b.activeOrders[id] {
			return price
		}
		b.bestBidByPrice.Delete(price)
	}
	// index exhausted; rebuild from the first live order in the heap
	for _, o := range b.bids {
		if b.activeOrders[o.ID] {
			best := o
			for _, cand := range b.bids {
				if b.activeOrders[cand.ID] && cand.Price > best.Price {
					best = cand
				}
			}
			b.bestBidByPrice.Set(best.Price, best.ID)
			return best.Price
		}
	}
	return 0
}

func (b *Book) bestAskLocked() float64 {
	for {
		price, id, ok := b.bestAskByPrice.Min()
		if !ok {
			break
		}
		if b.activeOrders[id] {
			return price
		}
		b.bestAskByPrice.Delete(price)
	}
	for _, o := range b.asks {
		if b.activeOrders[o.ID] {
			best := o
			for _, cand := range b.asks {
				if b.activeOrders[cand.ID] && cand.Price < best.Price {
					best = cand
				}
			}
			b.bestAskByPrice.Set(best.Price, best.ID)
			return best.Price
		}
	}
	return math.Inf(1)
}

// GetSnapshot aggregates live resting quantity per price level, top depth
// levels per side.
func (b *Book) GetSnapshot(depth int) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{Symbol: b.symbol}

	bidLevels := make(map[float64]*PriceLevel)
	for _, o := range b.bids {
		if !b.activeOrders[o.ID] {
			continue
		}
		lvl, ok := bidLevels[o.Price]
		if !ok {
			lvl = &PriceLevel{Price: o.Price}
			bidLevels[o.Price] = lvl
		}
		lvl.Quantity += o.Quantity
		lvl.Orders++
	}
	askLevels := make(map[float64]*PriceLevel)
	for _, o := range b.asks {
		if !b.activeOrders[o.ID] {
			continue
		}
		lvl, ok := askLevels[o.Price]
		if !ok {
			lvl = &PriceLevel{Price: o.Price}
			askLevels[o.Price] = lvl
		}
		lvl.Quantity += o.Quantity
		lvl.Orders++
	}

	for _, lvl := range bidLevels {
		snap.Bids = append(snap.Bids, *lvl)
	}
	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Price > snap.Bids[j].Price })
	if len(snap.Bids) > depth {
		snap.Bids = snap.Bids[:depth]
	}

	for _, lvl := range askLevels {
		snap.Asks = append(snap.Asks, *lvl)
	}
	sort.Slice(snap.Asks, func(i, j int) bool { return snap.Asks[i].Price < snap.Asks[j].Price })
	if len(snap.Asks) > depth {
		snap.Asks = snap.Asks[:depth]
	}

	return snap
}

// Depth counts live resting orders per side.
func (b *Book) Depth() (bids, asks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.bids {
		if b.activeOrders[o.ID] {
			bids++
		}
	}
	for _, o := range b.asks {
		if b.activeOrders[o.ID] {
			asks++
		}
	}
	return bids, asks
}

// Clear empties queues and indices.
func (b *Book) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = nil
	b.asks = nil
	b.activeOrders = make(map[uint64]bool)
	b.bestBidByPrice = btree.NewMap[float64, uint64](32)
	b.bestAskByPrice = btree.NewMap[float64, uint64](32)
}
