package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
	"github.com/emekandu/kasuwa-backend/pkg/types"
)

// BalanceAdjuster applies a signed kobo delta to a user's credit balance.
type BalanceAdjuster interface {
	AdjustCreditBalance(ctx context.Context, id uuid.UUID, deltaKobo int64) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GrantRequest tops up a user's platform credit from the back office.
type GrantRequest struct {
	AmountKobo int64   `json:"amountKobo" validate:"required,gt=0"`
	Note       *string `json:"note,omitempty"`
}

// Service records ledger entries while keeping the cached balance in sync.
// Every mutation runs inside a caller-provided transaction.
type Service interface {
	Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.CreditTransaction, error)
	Grant(ctx context.Context, actor types.Actor, userID uuid.UUID, req GrantRequest) (*models.CreditTransaction, error)
	ListLedger(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditTransaction, string, error)
}

// ApplyInput captures one signed credit ledger movement.
type ApplyInput struct {
	UserID     uuid.UUID
	Type       enums.CreditTransactionType
	AmountKobo int64
	OrderID    *uuid.UUID
	ItemID     *uuid.UUID
	Note       *string
}

type service struct {
	repo     Repository
	balances func(tx *gorm.DB) BalanceAdjuster
	tx       txRunner
}

// NewService wires a credits service. The adjuster factory rebinds the users
// repository to the ambient transaction.
func NewService(repo Repository, balances func(tx *gorm.DB) BalanceAdjuster, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if balances == nil {
		return nil, fmt.Errorf("balance adjuster factory required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, balances: balances, tx: tx}, nil
}

// Grant credits a user's balance on admin authority.
func (s *service) Grant(ctx context.Context, actor types.Actor, userID uuid.UUID, req GrantRequest) (*models.CreditTransaction, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if req.AmountKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var entry *models.CreditTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.Apply(ctx, tx, ApplyInput{
			UserID:     userID,
			Type:       enums.CreditTransactionTypeAdminGrant,
			AmountKobo: req.AmountKobo,
			Note:       req.Note,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.CreditTransaction, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for credit movements")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid credit transaction type %q", input.Type))
	}
	if input.AmountKobo == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}

	balance, err := s.balances(tx).AdjustCreditBalance(ctx, input.UserID, input.AmountKobo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient credit balance")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust credit balance")
	}

	entry := &models.CreditTransaction{
		UserID:       input.UserID,
		Type:         input.Type,
		AmountKobo:   input.AmountKobo,
		BalanceAfter: balance,
		OrderID:      input.OrderID,
		ItemID:       input.ItemID,
		Note:         input.Note,
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record credit transaction")
	}
	return entry, nil
}

func (s *service) ListLedger(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CreditTransaction, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.repo.ListByUser(ctx, userID, params)
}
