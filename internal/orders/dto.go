package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// LogisticsRequest advances fulfilment one hop with a mandatory audit note.
type LogisticsRequest struct {
	Note string `json:"note" validate:"required,min=3"`
}

// DisputeRequest opens a dispute on a delivered order.
type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,min=10"`
}

// Dispute resolutions.
const (
	ResolutionRefundBuyer = "refund_buyer"
	ResolutionPaySeller   = "pay_seller"
)

// ResolveDisputeRequest records the admin's ruling.
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=refund_buyer pay_seller"`
	Notes      string `json:"notes" validate:"required,min=10"`
}

// OrderSummary is the public representation of an order.
type OrderSummary struct {
	ID               uuid.UUID         `json:"id"`
	OrderNumber      int64             `json:"orderNumber"`
	ItemID           uuid.UUID         `json:"itemId"`
	OfferID          *uuid.UUID        `json:"offerId,omitempty"`
	BuyerID          uuid.UUID         `json:"buyerId"`
	SellerID         uuid.UUID         `json:"sellerId"`
	AgentID          *uuid.UUID        `json:"agentId,omitempty"`
	Status           enums.OrderStatus `json:"status"`
	AmountKobo       int64             `json:"amountKobo"`
	CommissionKobo   int64             `json:"commissionKobo"`
	PaymentReference *string           `json:"paymentReference,omitempty"`
	DeliveryAddress  *string           `json:"deliveryAddress,omitempty"`
	TrackingNote     *string           `json:"trackingNote,omitempty"`
	DisputeReason    *string           `json:"disputeReason,omitempty"`
	PaidAt           *time.Time        `json:"paidAt,omitempty"`
	DeliveredAt      *time.Time        `json:"deliveredAt,omitempty"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
	CancelledAt      *time.Time        `json:"cancelledAt,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// OrderList is one page of orders.
type OrderList struct {
	Items      []OrderSummary `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// PayoutResult reports the settled amounts after a payout clears.
type PayoutResult struct {
	OrderID        uuid.UUID `json:"orderId"`
	AmountKobo     int64     `json:"amountKobo"`
	CommissionKobo int64     `json:"commissionKobo"`
	NetKobo        int64     `json:"netKobo"`
	BalanceAfter   int64     `json:"balanceAfter"`
}

// FromModel maps a persistence row to its public summary.
func FromModel(order *models.Order) OrderSummary {
	if order == nil {
		return OrderSummary{}
	}
	return OrderSummary{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		ItemID:           order.ItemID,
		OfferID:          order.OfferID,
		BuyerID:          order.BuyerID,
		SellerID:         order.SellerID,
		AgentID:          order.AgentID,
		Status:           order.Status,
		AmountKobo:       order.AmountKobo,
		CommissionKobo:   order.CommissionKobo,
		PaymentReference: order.PaymentReference,
		DeliveryAddress:  order.DeliveryAddress,
		TrackingNote:     order.TrackingNote,
		DisputeReason:    order.DisputeReason,
		PaidAt:           order.PaidAt,
		DeliveredAt:      order.DeliveredAt,
		CompletedAt:      order.CompletedAt,
		CancelledAt:      order.CancelledAt,
		CreatedAt:        order.CreatedAt,
	}
}

func summaries(rows []models.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}
