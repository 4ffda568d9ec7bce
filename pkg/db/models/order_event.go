package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// OrderEvent is an append-only audit record of an order status transition.
type OrderEvent struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ActorID    *uuid.UUID         `gorm:"column:actor_id;type:uuid"`
	ActorRole  *enums.MemberRole  `gorm:"column:actor_role;type:member_role"`
	FromStatus *enums.OrderStatus `gorm:"column:from_status;type:order_status"`
	ToStatus   enums.OrderStatus  `gorm:"column:to_status;type:order_status;not null"`
	Note       *string            `gorm:"column:note;type:text"`
	Metadata   json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
