package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// Order is the escrow-style purchase record produced from an accepted offer
// or a direct buy. Money fields are denominated in kobo.
type Order struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       int64              `gorm:"column:order_number;not null;uniqueIndex"`
	ItemID            uuid.UUID          `gorm:"column:item_id;type:uuid;not null;index"`
	OfferID           *uuid.UUID         `gorm:"column:offer_id;type:uuid;index"`
	BuyerID           uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID          uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	AgentID           *uuid.UUID         `gorm:"column:agent_id;type:uuid;index"`
	Status            enums.OrderStatus  `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	AmountKobo        int64              `gorm:"column:amount_kobo;not null"`
	CommissionKobo    int64              `gorm:"column:commission_kobo;not null;default:0"`
	PaymentReference  *string            `gorm:"column:payment_reference;type:text;uniqueIndex"`
	DeliveryAddress   *string            `gorm:"column:delivery_address;type:text"`
	TrackingNote      *string            `gorm:"column:tracking_note;type:text"`
	DisputeReason     *string            `gorm:"column:dispute_reason;type:text"`
	PaidAt            *time.Time         `gorm:"column:paid_at"`
	DeliveredAt       *time.Time         `gorm:"column:delivered_at"`
	CompletedAt       *time.Time         `gorm:"column:completed_at"`
	CancelledAt       *time.Time         `gorm:"column:cancelled_at"`
	Item              *Item              `gorm:"foreignKey:ItemID"`
	Events            []OrderEvent       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	InspectionReports []InspectionReport `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
