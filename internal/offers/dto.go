package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// CreateOfferRequest opens a negotiation on a listing.
type CreateOfferRequest struct {
	AmountKobo int64 `json:"amountKobo" validate:"required,gt=0"`
}

// CounterOfferRequest carries a counter-bid from either party.
type CounterOfferRequest struct {
	AmountKobo int64 `json:"amountKobo" validate:"required,gt=0"`
}

// OfferSummary is the public representation of an offer.
type OfferSummary struct {
	ID              uuid.UUID         `json:"id"`
	ItemID          uuid.UUID         `json:"itemId"`
	BuyerID         uuid.UUID         `json:"buyerId"`
	SellerID        uuid.UUID         `json:"sellerId"`
	Status          enums.OfferStatus `json:"status"`
	CurrentBidKobo  int64             `json:"currentBidKobo"`
	LastOfferBy     enums.OfferParty  `json:"lastOfferBy"`
	RoundCount      int               `json:"roundCount"`
	AcceptedBidKobo *int64            `json:"acceptedBidKobo,omitempty"`
	ClosedAt        *time.Time        `json:"closedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// AcceptResult returns the closed offer alongside the order it produced so
// the buyer's session can move straight to payment.
type AcceptResult struct {
	Offer       OfferSummary `json:"offer"`
	OrderID     uuid.UUID    `json:"orderId"`
	OrderNumber int64        `json:"orderNumber"`
}

// FromModel maps a persistence row to its public summary.
func FromModel(offer *models.Offer) OfferSummary {
	if offer == nil {
		return OfferSummary{}
	}
	return OfferSummary{
		ID:              offer.ID,
		ItemID:          offer.ItemID,
		BuyerID:         offer.BuyerID,
		SellerID:        offer.SellerID,
		Status:          offer.Status,
		CurrentBidKobo:  offer.CurrentBidKobo,
		LastOfferBy:     offer.LastOfferBy,
		RoundCount:      offer.RoundCount,
		AcceptedBidKobo: offer.AcceptedBidKobo,
		ClosedAt:        offer.ClosedAt,
		CreatedAt:       offer.CreatedAt,
	}
}
