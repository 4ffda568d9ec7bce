package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// Item represents a listed good offered for sale by a seller.
type Item struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title       string              `gorm:"column:title;type:text;not null"`
	Description string              `gorm:"column:description;type:text;not null"`
	Category    string              `gorm:"column:category;type:text;not null;index"`
	Condition   enums.ItemCondition `gorm:"column:condition;type:item_condition;not null"`
	PriceKobo   int64               `gorm:"column:price_kobo;not null"`
	Status      enums.ItemStatus    `gorm:"column:status;type:item_status;not null;default:'available'"`
	ImageURLs   []string            `gorm:"column:image_urls;type:jsonb;serializer:json"`
	Location    *string             `gorm:"column:location;type:text"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
