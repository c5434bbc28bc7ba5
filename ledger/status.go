package ledger

import "shopsync/models"

var statusRank = map[string]int{
	models.OrderStatusOrdered:   1,
	models.OrderStatusInTransit: 2,
	models.OrderStatusDelivered: 3,
}

// canAdvance reports whether a status may move from cur to next.
// Progress is forward-only, so a stale shipping notice arriving after a
// delivery confirmation cannot regress the record. Canceled is
// reachable from any state and terminal.
func canAdvance(cur, next string) bool {
	if cur == next {
		return false
	}
	if cur == models.OrderStatusCanceled {
		return false
	}
	if next == models.OrderStatusCanceled {
		return true
	}
	return statusRank[next] > statusRank[cur]
}
