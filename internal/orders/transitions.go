package orders

import (
	"strings"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// transitions is the canonical order lifecycle. A status missing from the
// map is terminal.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingPayment: {
		enums.OrderStatusPaymentAuthorized,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentAuthorized: {
		enums.OrderStatusAwaitingAssessment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAwaitingAssessment: {
		enums.OrderStatusInspectionPassed,
		enums.OrderStatusInspectionFailed,
		enums.OrderStatusPendingAdminApproval,
	},
	enums.OrderStatusInspectionPassed: {
		enums.OrderStatusPendingAdminApproval,
	},
	enums.OrderStatusInspectionFailed: {
		enums.OrderStatusPendingAdminApproval,
	},
	enums.OrderStatusPendingAdminApproval: {
		enums.OrderStatusAwaitingCollection,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAwaitingCollection: {
		enums.OrderStatusInWarehouse,
	},
	enums.OrderStatusInWarehouse: {
		enums.OrderStatusOutForDelivery,
	},
	enums.OrderStatusOutForDelivery: {
		enums.OrderStatusDelivered,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusCompleted,
		enums.OrderStatusDisputed,
	},
	enums.OrderStatusCompleted: {
		enums.OrderStatusFundsPaidOut,
	},
	enums.OrderStatusDisputed: {
		enums.OrderStatusCancelled,
		enums.OrderStatusCompleted,
	},
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// logisticsHops are the hand-carried fulfilment steps an operator walks an
// order through, one hop per call.
var logisticsHops = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusAwaitingCollection: enums.OrderStatusInWarehouse,
	enums.OrderStatusInWarehouse:        enums.OrderStatusOutForDelivery,
	enums.OrderStatusOutForDelivery:     enums.OrderStatusDelivered,
}

// NextLogisticsHop returns the single legal fulfilment step from the given
// status, if any.
func NextLogisticsHop(from enums.OrderStatus) (enums.OrderStatus, bool) {
	to, ok := logisticsHops[from]
	return to, ok
}

// statusPhrase renders an order status as customer-facing wording. Raw enum
// values never reach a notification.
func statusPhrase(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusAwaitingCollection:
		return "is awaiting collection from the seller"
	case enums.OrderStatusInWarehouse:
		return "has arrived at our warehouse"
	case enums.OrderStatusOutForDelivery:
		return "is out for delivery"
	case enums.OrderStatusDelivered:
		return "has been delivered"
	default:
		return "is now " + strings.ReplaceAll(status.String(), "_", " ")
	}
}
