package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// CreditTransaction is an append-only entry in a user's platform credit
// ledger. AmountKobo is signed: debits are negative.
type CreditTransaction struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	Type         enums.CreditTransactionType `gorm:"column:type;type:credit_transaction_type;not null"`
	AmountKobo   int64                       `gorm:"column:amount_kobo;not null"`
	BalanceAfter int64                       `gorm:"column:balance_after;not null"`
	OrderID      *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	ItemID       *uuid.UUID                  `gorm:"column:item_id;type:uuid"`
	Note         *string                     `gorm:"column:note;type:text"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
