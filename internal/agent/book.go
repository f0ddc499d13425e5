package agent

// book tracks an agent's virtual cash, realized profit, and per-pair
// positions. It is always accessed under the agent mutex.
type book struct {
	capital   float64
	cash      float64
	realized  float64
	positions map[string]bookPosition
}

type bookPosition struct {
	Qty     float64
	AvgCost float64
}

const bookEpsilon = 1e-9

func newBook(capital float64) *book {
	return &book{
		capital:   capital,
		cash:      capital,
		positions: make(map[string]bookPosition),
	}
}

// positionSize is the total open quantity across pairs.
func (b *book) positionSize() float64 {
	var total float64
	for _, pos := range b.positions {
		total += pos.Qty
	}
	return total
}

// position returns the open quantity in one pair.
func (b *book) position(pair string) float64 {
	return b.positions[pair].Qty
}

// applyBuy records a filled buy, averaging cost into any existing position.
func (b *book) applyBuy(pair string, qty, price float64) {
	notional := qty * price
	state := b.positions[pair]
	newQty := state.Qty + qty
	newAvg := price
	if newQty > 0 {
		newAvg = (state.AvgCost*state.Qty + notional) / newQty
	}
	b.cash -= notional
	b.positions[pair] = bookPosition{Qty: newQty, AvgCost: newAvg}
}

// applySell records a filled sell, realizing profit against average cost.
// Selling more than held closes the position.
func (b *book) applySell(pair string, qty, price float64) {
	state := b.positions[pair]
	if state.Qty <= 0 {
		return
	}
	if qty > state.Qty {
		qty = state.Qty
	}
	b.realized += (price - state.AvgCost) * qty
	b.cash += qty * price
	remaining := state.Qty - qty
	if remaining <= bookEpsilon {
		delete(b.positions, pair)
	} else {
		b.positions[pair] = bookPosition{Qty: remaining, AvgCost: state.AvgCost}
	}
}

// unrealized marks every open position against the supplied prices.
// Pairs without a mark contribute nothing.
func (b *book) unrealized(marks map[string]float64) float64 {
	var total float64
	for pair, pos := range b.positions {
		mark, ok := marks[pair]
		if !ok || mark <= 0 {
			continue
		}
		total += (mark - pos.AvgCost) * pos.Qty
	}
	return total
}
