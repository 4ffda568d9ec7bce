package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/internal/credits"
	"github.com/emekandu/kasuwa-backend/internal/items"
	"github.com/emekandu/kasuwa-backend/internal/notifications"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/outbox"
	"github.com/emekandu/kasuwa-backend/pkg/paystack"
	"github.com/emekandu/kasuwa-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	Notify(ctx context.Context, note notifications.Note) error
	NotifyAll(ctx context.Context, notes []notifications.Note) error
}

type creditApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, input credits.ApplyInput) (*models.CreditTransaction, error)
}

type gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// OrderStore is the slice of order persistence the payment gate needs.
type OrderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateIf(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListIDsByRole(ctx context.Context, role enums.MemberRole) ([]uuid.UUID, error)
}

// Service is the payment verification gate. The gateway's answer is the only
// thing that moves an order out of pending_payment; client-supplied success
// flags are never trusted.
type Service interface {
	Initialize(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*InitializeOutcome, error)
	Verify(ctx context.Context, actor types.Actor, orderID uuid.UUID, reference string) (*VerifyOutcome, error)
}

type service struct {
	orders   func(tx *gorm.DB) OrderStore
	itemRepo items.Repository
	ledger   LedgerRepository
	users    userDirectory
	credits  creditApplier
	gateway  gateway
	tx       txRunner
	events   eventEmitter
	notify   notifier
	fees     config.FeesConfig
	callback string
}

// NewService wires the payments service. The order factory rebinds order
// persistence to the ambient transaction.
func NewService(
	orders func(tx *gorm.DB) OrderStore,
	itemRepo items.Repository,
	ledger LedgerRepository,
	users userDirectory,
	creditSvc creditApplier,
	gw gateway,
	tx txRunner,
	events eventEmitter,
	notify notifier,
	fees config.FeesConfig,
	callbackURL string,
) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order store factory required")
	}
	if itemRepo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if creditSvc == nil {
		return nil, fmt.Errorf("credits service required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		orders:   orders,
		itemRepo: itemRepo,
		ledger:   ledger,
		users:    users,
		credits:  creditSvc,
		gateway:  gw,
		tx:       tx,
		events:   events,
		notify:   notify,
		fees:     fees,
		callback: callbackURL,
	}, nil
}

// Initialize asks the gateway for a checkout session for the buyer's
// pending order.
func (s *service) Initialize(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*InitializeOutcome, error) {
	order, err := s.loadBuyerOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.StateConflict("order", order.Status.String(), "initialize payment")
	}

	buyer, err := s.users.FindByID(ctx, order.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}

	reference := newReference(order.OrderNumber)
	result, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       buyer.Email,
		AmountKobo:  order.AmountKobo,
		Reference:   reference,
		CallbackURL: s.callback,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initialize payment")
	}

	return &InitializeOutcome{
		OrderID:          order.ID,
		Reference:        result.Reference,
		AmountKobo:       order.AmountKobo,
		AuthorizationURL: result.AuthorizationURL,
	}, nil
}

// Verify settles the pending_payment -> payment_authorized transition. The
// reference is checked against the gateway; a verified order marks the item
// sold, records the sale, and debits the buyer's purchase fee atomically.
// Re-verifying an already-settled reference is a no-op.
func (s *service) Verify(ctx context.Context, actor types.Actor, orderID uuid.UUID, reference string) (*VerifyOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	order, err := s.loadBuyerOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaymentAuthorized &&
		order.PaymentReference != nil && *order.PaymentReference == reference {
		return &VerifyOutcome{
			OrderID:         order.ID,
			Status:          order.Status,
			Reference:       reference,
			AmountKobo:      order.AmountKobo,
			AlreadyVerified: true,
		}, nil
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.StateConflict("order", order.Status.String(), "verify payment")
	}
	if !referenceForOrder(reference, order.OrderNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference was not issued for this order")
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}
	if !verified.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment not successful: gateway reported %q", verified.Status))
	}
	if verified.AmountKobo < order.AmountKobo {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment amount mismatch: paid %d kobo, order requires %d kobo", verified.AmountKobo, order.AmountKobo))
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.orders(tx)
		ok, err := store.UpdateIf(ctx, order.ID, enums.OrderStatusPendingPayment, map[string]any{
			"status":            enums.OrderStatusPaymentAuthorized,
			"payment_reference": reference,
			"paid_at":           now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "authorize payment")
		}
		if !ok {
			return pkgerrors.StateConflict("order", order.Status.String(), "verify payment")
		}

		sold, err := s.itemRepo.WithTx(tx).UpdateStatusIf(ctx, order.ItemID, enums.ItemStatusPendingPayment, enums.ItemStatusSold)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item sold")
		}
		if !sold {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item is not reserved for this order")
		}

		sale := &models.FinancialTransaction{
			OrderID:    order.ID,
			UserID:     order.BuyerID,
			Type:       enums.TransactionTypeSale,
			AmountKobo: order.AmountKobo,
			Reference:  &reference,
		}
		if err := s.ledger.WithTx(tx).Record(ctx, sale); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record sale")
		}

		if s.fees.PurchaseFeeKobo > 0 {
			oid := order.ID
			_, err := s.credits.Apply(ctx, tx, credits.ApplyInput{
				UserID:     order.BuyerID,
				Type:       enums.CreditTransactionTypePurchaseFee,
				AmountKobo: -s.fees.PurchaseFeeKobo,
				OrderID:    &oid,
			})
			if err != nil {
				return err
			}
		}

		actorID := actor.UserID
		role := actor.Role
		from := enums.OrderStatusPendingPayment
		event := &models.OrderEvent{
			OrderID:    order.ID,
			ActorID:    &actorID,
			ActorRole:  &role,
			FromStatus: &from,
			ToStatus:   enums.OrderStatusPaymentAuthorized,
		}
		if err := store.AppendEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order event")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentAuthorized,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: map[string]any{
				"orderNumber": order.OrderNumber,
				"reference":   reference,
				"amountKobo":  order.AmountKobo,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	link := fmt.Sprintf("/orders/%s", order.ID)
	notes := []notifications.Note{{
		UserID:  order.SellerID,
		Type:    enums.NotificationTypePaymentAlert,
		Title:   "Payment received",
		Message: fmt.Sprintf("Order #%d has been paid. It is now queued for inspection.", order.OrderNumber),
		Link:    &link,
	}}
	if agentIDs, err := s.users.ListIDsByRole(ctx, enums.MemberRoleAgent); err == nil {
		for _, agentID := range agentIDs {
			notes = append(notes, notifications.Note{
				UserID:  agentID,
				Type:    enums.NotificationTypeOrderAlert,
				Title:   "New assessment task",
				Message: fmt.Sprintf("Order #%d is ready for assessment.", order.OrderNumber),
				Link:    &link,
			})
		}
	}
	_ = s.notify.NotifyAll(ctx, notes)

	return &VerifyOutcome{
		OrderID:    order.ID,
		Status:     enums.OrderStatusPaymentAuthorized,
		Reference:  reference,
		AmountKobo: order.AmountKobo,
	}, nil
}

func (s *service) loadBuyerOrder(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders(nil).FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can pay for this order")
	}
	return order, nil
}

// newReference builds a unique, human-traceable gateway reference.
func newReference(orderNumber int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("ksw_%d_%s", orderNumber, suffix)
}

// referenceForOrder reports whether the reference was minted for the order.
// References embed the order number, so a buyer cannot settle one order with
// a payment initialized for another.
func referenceForOrder(reference string, orderNumber int64) bool {
	return strings.HasPrefix(reference, fmt.Sprintf("ksw_%d_", orderNumber))
}
