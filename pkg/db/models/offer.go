package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// Offer tracks a turn-based price negotiation over a single item.
type Offer struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID          uuid.UUID         `gorm:"column:item_id;type:uuid;not null;index"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID        uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	Status          enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'pending_seller_review'"`
	CurrentBidKobo  int64             `gorm:"column:current_bid_kobo;not null"`
	LastOfferBy     enums.OfferParty  `gorm:"column:last_offer_by;type:offer_party;not null;default:'buyer'"`
	RoundCount      int               `gorm:"column:round_count;not null;default:1"`
	AcceptedBidKobo *int64            `gorm:"column:accepted_bid_kobo"`
	ClosedAt        *time.Time        `gorm:"column:closed_at"`
	Item            *Item             `gorm:"foreignKey:ItemID"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
