package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateOffer        OutboxAggregateType = "offer"
	AggregateItem         OutboxAggregateType = "item"
	AggregateInspection   OutboxAggregateType = "inspection_report"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOffer,
	AggregateItem,
	AggregateInspection,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOfferCreated        OutboxEventType = "offer_created"
	EventOfferCountered      OutboxEventType = "offer_countered"
	EventOfferAccepted       OutboxEventType = "offer_accepted"
	EventOfferRejected       OutboxEventType = "offer_rejected"
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStateChanged   OutboxEventType = "order_state_changed"
	EventOrderCancelled      OutboxEventType = "order_cancelled"
	EventPaymentAuthorized   OutboxEventType = "payment_authorized"
	EventInspectionFiled     OutboxEventType = "inspection_filed"
	EventInspectionReviewed  OutboxEventType = "inspection_reviewed"
	EventDisputeOpened       OutboxEventType = "dispute_opened"
	EventDisputeResolved     OutboxEventType = "dispute_resolved"
	EventSellerPayoutCleared OutboxEventType = "seller_payout_cleared"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOfferCreated,
	EventOfferCountered,
	EventOfferAccepted,
	EventOfferRejected,
	EventOrderCreated,
	EventOrderStateChanged,
	EventOrderCancelled,
	EventPaymentAuthorized,
	EventInspectionFiled,
	EventInspectionReviewed,
	EventDisputeOpened,
	EventDisputeResolved,
	EventSellerPayoutCleared,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
