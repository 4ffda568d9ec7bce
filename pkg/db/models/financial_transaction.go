package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// FinancialTransaction records an immutable money movement tied to an order.
// A partial unique index on (order_id) where type = 'payout' guarantees at
// most one payout row per order.
type FinancialTransaction struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	UserID     uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Type       enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Status     enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'completed'"`
	AmountKobo int64                   `gorm:"column:amount_kobo;not null"`
	Reference  *string                 `gorm:"column:reference;type:text"`
	Metadata   json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}
