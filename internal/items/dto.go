package items

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// CreateItemRequest carries a new listing submission.
type CreateItemRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=140"`
	Description string   `json:"description" validate:"required,min=10"`
	Category    string   `json:"category" validate:"required"`
	Condition   string   `json:"condition" validate:"required"`
	PriceKobo   int64    `json:"priceKobo" validate:"required,gt=0"`
	ImageURLs   []string `json:"imageUrls" validate:"omitempty,dive,url"`
	Location    *string  `json:"location,omitempty"`
}

// UpdateItemRequest carries the mutable listing fields.
type UpdateItemRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=3,max=140"`
	Description *string  `json:"description,omitempty" validate:"omitempty,min=10"`
	Category    *string  `json:"category,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
	PriceKobo   *int64   `json:"priceKobo,omitempty" validate:"omitempty,gt=0"`
	ImageURLs   []string `json:"imageUrls,omitempty" validate:"omitempty,dive,url"`
	Location    *string  `json:"location,omitempty"`
}

// ListFilters narrows the public browse query.
type ListFilters struct {
	Category string
	Query    string
	SellerID *uuid.UUID
	Status   *enums.ItemStatus
}

// ItemSummary is the public representation of a listing.
type ItemSummary struct {
	ID          uuid.UUID           `json:"id"`
	SellerID    uuid.UUID           `json:"sellerId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Condition   enums.ItemCondition `json:"condition"`
	PriceKobo   int64               `json:"priceKobo"`
	Status      enums.ItemStatus    `json:"status"`
	ImageURLs   []string            `json:"imageUrls,omitempty"`
	Location    *string             `json:"location,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// ItemList is one page of listings.
type ItemList struct {
	Items      []ItemSummary `json:"items"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// FromModel maps a persistence row to its public summary.
func FromModel(item *models.Item) ItemSummary {
	if item == nil {
		return ItemSummary{}
	}
	return ItemSummary{
		ID:          item.ID,
		SellerID:    item.SellerID,
		Title:       item.Title,
		Description: item.Description,
		Category:    item.Category,
		Condition:   item.Condition,
		PriceKobo:   item.PriceKobo,
		Status:      item.Status,
		ImageURLs:   item.ImageURLs,
		Location:    item.Location,
		CreatedAt:   item.CreatedAt,
	}
}
