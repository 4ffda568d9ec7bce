package enums

import "fmt"

// OrderStatus tracks the escrow lifecycle of a purchase.
type OrderStatus string

const (
	OrderStatusPendingPayment       OrderStatus = "pending_payment"
	OrderStatusPaymentAuthorized    OrderStatus = "payment_authorized"
	OrderStatusAwaitingAssessment   OrderStatus = "awaiting_assessment"
	OrderStatusInspectionPassed     OrderStatus = "inspection_passed"
	OrderStatusInspectionFailed     OrderStatus = "inspection_failed"
	OrderStatusPendingAdminApproval OrderStatus = "pending_admin_approval"
	OrderStatusAwaitingCollection   OrderStatus = "awaiting_collection"
	OrderStatusInWarehouse          OrderStatus = "in_warehouse"
	OrderStatusOutForDelivery       OrderStatus = "out_for_delivery"
	OrderStatusDelivered            OrderStatus = "delivered"
	OrderStatusCompleted            OrderStatus = "completed"
	OrderStatusDisputed             OrderStatus = "disputed"
	OrderStatusCancelled            OrderStatus = "cancelled"
	OrderStatusFundsPaidOut         OrderStatus = "funds_paid_out"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPaymentAuthorized,
	OrderStatusAwaitingAssessment,
	OrderStatusInspectionPassed,
	OrderStatusInspectionFailed,
	OrderStatusPendingAdminApproval,
	OrderStatusAwaitingCollection,
	OrderStatusInWarehouse,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusDisputed,
	OrderStatusCancelled,
	OrderStatusFundsPaidOut,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order has reached a final state.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCancelled || o == OrderStatusFundsPaidOut
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
