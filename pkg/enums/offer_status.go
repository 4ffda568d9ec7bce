package enums

import "fmt"

// OfferStatus tracks the turn-based negotiation lifecycle of an offer.
type OfferStatus string

const (
	OfferStatusPendingSellerReview OfferStatus = "pending_seller_review"
	OfferStatusPendingBuyerReview  OfferStatus = "pending_buyer_review"
	OfferStatusAccepted            OfferStatus = "accepted"
	OfferStatusRejectedBySeller    OfferStatus = "rejected_by_seller"
	OfferStatusRejectedByBuyer     OfferStatus = "rejected_by_buyer"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusPendingSellerReview,
	OfferStatusPendingBuyerReview,
	OfferStatusAccepted,
	OfferStatusRejectedBySeller,
	OfferStatusRejectedByBuyer,
}

// String implements fmt.Stringer.
func (o OfferStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferStatus.
func (o OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the offer can no longer be mutated.
func (o OfferStatus) IsTerminal() bool {
	switch o {
	case OfferStatusAccepted, OfferStatusRejectedBySeller, OfferStatusRejectedByBuyer:
		return true
	default:
		return false
	}
}

// ParseOfferStatus converts raw input into an OfferStatus.
func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}

// OfferParty identifies which side of the negotiation acted last.
type OfferParty string

const (
	OfferPartyBuyer  OfferParty = "buyer"
	OfferPartySeller OfferParty = "seller"
)

// IsValid reports whether the value is a known OfferParty.
func (p OfferParty) IsValid() bool {
	return p == OfferPartyBuyer || p == OfferPartySeller
}

// Other returns the counterparty.
func (p OfferParty) Other() OfferParty {
	if p == OfferPartyBuyer {
		return OfferPartySeller
	}
	return OfferPartyBuyer
}
