package domain

// fulfilmentRank orders the statuses an order moves through once paid.
var fulfilmentRank = map[OrderStatus]int{
	OrderProcessing: 1,
	OrderShipping:   2,
	OrderShipped:    3,
}

// DeriveOrderStatus is the only place that computes an order's aggregate
// status from its items. The aggregate is the minimum progress across the
// items, and the result never moves the order backwards:
//
//   - rejected and shipped are final
//   - a pending order (cash on delivery) stays pending until every item is
//     resolved, then becomes shipped
//   - any pending item holds the order at processing
//   - otherwise any item in transit means shipping
//   - all items resolved (shipped or failed to ship) means shipped
func DeriveOrderStatus(current OrderStatus, items []ItemStatus) OrderStatus {
	if len(items) == 0 {
		return current
	}
	if current == OrderPending {
		if allTerminal(items) {
			return OrderShipped
		}
		return current
	}
	if _, ok := fulfilmentRank[current]; !ok || current == OrderShipped {
		return current
	}

	derived := OrderShipped
	for _, st := range items {
		switch {
		case st == ItemPending:
			derived = OrderProcessing
		case st == ItemShipping && derived != OrderProcessing:
			derived = OrderShipping
		}
	}

	if fulfilmentRank[derived] < fulfilmentRank[current] {
		return current
	}
	return derived
}

func allTerminal(items []ItemStatus) bool {
	for _, st := range items {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

// CanTransition reports whether the order state machine allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case OrderPending:
		return to == OrderProcessing || to == OrderRejected || to == OrderShipped
	case OrderProcessing:
		return to == OrderShipping || to == OrderShipped
	case OrderShipping:
		return to == OrderShipped
	default:
		return false
	}
}
