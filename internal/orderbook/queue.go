package orderbook

import "math"

// Market orders carry price 0 on the wire, so ranking uses an effective
// price: a market bid is infinitely aggressive.
func effectiveBidPrice(o Order) float64 {
	if o.Type == TypeMarket {
		return math.Inf(1)
	}
	return o.Price
}

// bidQueue is a max-heap on price, earliest timestamp first within a price
// level, order id as the final tiebreak so matching is fully deterministic.
type bidQueue []Order

func (q bidQueue) Len() int { return len(q) }

func (q bidQueue) Less(i, j int) bool {
	pi, pj := effectiveBidPrice(q[i]), effectiveBidPrice(q[j])
	if pi != pj {
		return pi > pj
	}
	if q[i].Timestamp != q[j].Timestamp {
		return q[i].Timestamp < q[j].Timestamp
	}
	return q[i].ID < q[j].ID
}

func (q bidQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *bidQueue) Push(x any) { *q = append(*q, x.(Order)) }

func (q *bidQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// askQueue is a min-heap on price with the same time and id tiebreaks.
type askQueue []Order

func (q askQueue) Len() int { return len(q) }

func (q askQueue) Less(i, j int) bool {
	if q[i].Price != q[j].Price {
		return q[i].Price < q[j].Price
	}
	if q[i].Timestamp != q[j].Timestamp {
		return q[i].Timestamp < q[j].Timestamp
	}
	return q[i].ID < q[j].ID
}

func (q askQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *askQueue) Push(x any) { *q = append(*q, x.(Order)) }

func (q *askQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
