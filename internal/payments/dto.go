package payments

import (
	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// VerifyRequest carries the gateway reference the client claims was paid.
type VerifyRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// InitializeOutcome hands the client the gateway checkout URL.
type InitializeOutcome struct {
	OrderID          uuid.UUID `json:"orderId"`
	Reference        string    `json:"reference"`
	AmountKobo       int64     `json:"amountKobo"`
	AuthorizationURL string    `json:"authorizationUrl"`
}

// VerifyOutcome reports the order state after verification.
type VerifyOutcome struct {
	OrderID         uuid.UUID         `json:"orderId"`
	Status          enums.OrderStatus `json:"status"`
	Reference       string            `json:"reference"`
	AmountKobo      int64             `json:"amountKobo"`
	AlreadyVerified bool              `json:"alreadyVerified"`
}
