package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// UserSummary is the public representation of a user account.
type UserSummary struct {
	ID            uuid.UUID        `json:"id"`
	Email         string           `json:"email"`
	FirstName     string           `json:"firstName"`
	LastName      string           `json:"lastName"`
	Phone         *string          `json:"phone,omitempty"`
	Role          enums.MemberRole `json:"role"`
	CreditBalance int64            `json:"creditBalanceKobo"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// FromModel maps the persistence model to its public summary.
func FromModel(user *models.User) UserSummary {
	if user == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Phone:         user.Phone,
		Role:          user.Role,
		CreditBalance: user.CreditBalance,
		CreatedAt:     user.CreatedAt,
	}
}
