package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/internal/credits"
	"github.com/emekandu/kasuwa-backend/internal/items"
	"github.com/emekandu/kasuwa-backend/internal/notifications"
	"github.com/emekandu/kasuwa-backend/internal/payments"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	dbpkg "github.com/emekandu/kasuwa-backend/pkg/db"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/outbox"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
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

type roleDirectory interface {
	ListIDsByRole(ctx context.Context, role enums.MemberRole) ([]uuid.UUID, error)
}

// Service drives the order lifecycle. Every mutation re-validates the actor
// against the stored row, CASes the status, appends an audit event, and
// performs item side effects in the same transaction. Notifications go out
// after commit and never fail the request.
type Service interface {
	OpenFromOffer(ctx context.Context, tx *gorm.DB, offer *models.Offer) (*models.Order, error)
	Purchase(ctx context.Context, actor types.Actor, itemID uuid.UUID) (*OrderSummary, error)
	Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error)
	History(ctx context.Context, actor types.Actor, id uuid.UUID) ([]models.OrderEvent, error)
	ListMine(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error)
	AgentQueue(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error)
	AgentAssigned(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error)
	Cancel(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error)
	AcceptAssessment(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error)
	AdvanceLogistics(ctx context.Context, actor types.Actor, id uuid.UUID, req LogisticsRequest) (*OrderSummary, error)
	ConfirmReceipt(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error)
	Dispute(ctx context.Context, actor types.Actor, id uuid.UUID, req DisputeRequest) (*OrderSummary, error)
	ResolveDispute(ctx context.Context, actor types.Actor, id uuid.UUID, req ResolveDisputeRequest) (*OrderSummary, error)
	ClaimPayout(ctx context.Context, actor types.Actor, id uuid.UUID) (*PayoutResult, error)
}

type service struct {
	repo     Repository
	itemRepo items.Repository
	ledger   payments.LedgerRepository
	users    roleDirectory
	credits  creditApplier
	tx       txRunner
	events   eventEmitter
	notify   notifier
	fees     config.FeesConfig
}

// NewService wires the orders service dependencies.
func NewService(
	repo Repository,
	itemRepo items.Repository,
	ledger payments.LedgerRepository,
	users roleDirectory,
	creditSvc creditApplier,
	tx txRunner,
	events eventEmitter,
	notify notifier,
	fees config.FeesConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
		repo:     repo,
		itemRepo: itemRepo,
		ledger:   ledger,
		users:    users,
		credits:  creditSvc,
		tx:       tx,
		events:   events,
		notify:   notify,
		fees:     fees,
	}, nil
}

// OpenFromOffer creates the pending-payment order for an accepted offer.
// Runs inside the caller's transaction.
func (s *service) OpenFromOffer(ctx context.Context, tx *gorm.DB, offer *models.Offer) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	number, err := repo.NextOrderNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	offerID := offer.ID
	order := &models.Order{
		OrderNumber: number,
		ItemID:      offer.ItemID,
		OfferID:     &offerID,
		BuyerID:     offer.BuyerID,
		SellerID:    offer.SellerID,
		Status:      enums.OrderStatusPendingPayment,
		AmountKobo:  offer.CurrentBidKobo,
	}
	if _, err := repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	metadata, _ := json.Marshal(map[string]any{"offerId": offer.ID})
	event := &models.OrderEvent{
		OrderID:  order.ID,
		ToStatus: enums.OrderStatusPendingPayment,
		Metadata: metadata,
	}
	if err := repo.AppendEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order event")
	}

	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: map[string]any{
			"orderNumber": order.OrderNumber,
			"itemId":      order.ItemID,
			"buyerId":     order.BuyerID,
			"sellerId":    order.SellerID,
			"amountKobo":  order.AmountKobo,
			"offerId":     offer.ID,
		},
		Version: 1,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return order, nil
}

// Purchase buys a listing outright at the asking price. Reserving the item
// and opening the pending-payment order happen in one transaction; losing the
// item CAS means another buyer got there first.
func (s *service) Purchase(ctx context.Context, actor types.Actor, itemID uuid.UUID) (*OrderSummary, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	var opened *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		itemRepo := s.itemRepo.WithTx(tx)
		item, err := itemRepo.FindByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.NotFound("item")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}
		if item.SellerID == actor.UserID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own listing")
		}

		reserved, err := itemRepo.UpdateStatusIf(ctx, item.ID, enums.ItemStatusAvailable, enums.ItemStatusPendingPayment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve item")
		}
		if !reserved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "item is no longer available")
		}

		repo := s.repo.WithTx(tx)
		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := &models.Order{
			OrderNumber: number,
			ItemID:      item.ID,
			BuyerID:     actor.UserID,
			SellerID:    item.SellerID,
			Status:      enums.OrderStatusPendingPayment,
			AmountKobo:  item.PriceKobo,
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		actorID := actor.UserID
		role := actor.Role
		metadata, _ := json.Marshal(map[string]any{"directPurchase": true})
		event := &models.OrderEvent{
			OrderID:   order.ID,
			ActorID:   &actorID,
			ActorRole: &role,
			ToStatus:  enums.OrderStatusPendingPayment,
			Metadata:  metadata,
		}
		if err := repo.AppendEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order event")
		}

		err = s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: map[string]any{
				"orderNumber":    order.OrderNumber,
				"itemId":         order.ItemID,
				"buyerId":        order.BuyerID,
				"sellerId":       order.SellerID,
				"amountKobo":     order.AmountKobo,
				"directPurchase": true,
			},
			Version: 1,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
		}
		opened = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.notify.NotifyAll(ctx, []notifications.Note{
		s.note(opened.BuyerID, enums.NotificationTypeOrderAlert, "Purchase started",
			fmt.Sprintf("Order #%d is reserved for you. Complete payment to secure the item.", opened.OrderNumber), opened.ID),
		s.note(opened.SellerID, enums.NotificationTypeOrderAlert, "Item purchased",
			fmt.Sprintf("A buyer purchased your listing at the asking price. Order #%d is awaiting payment.", opened.OrderNumber), opened.ID),
	})

	summary := FromModel(opened)
	return &summary, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error) {
	order, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	summary := FromModel(order)
	return &summary, nil
}

func (s *service) History(ctx context.Context, actor types.Actor, id uuid.UUID) ([]models.OrderEvent, error) {
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order events")
	}
	return events, nil
}

func (s *service) ListMine(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, next, err := s.repo.ListByParticipant(ctx, actor.UserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return &OrderList{Items: summaries(rows), NextCursor: next}, nil
}

func (s *service) AgentQueue(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error) {
	if !actor.IsAgent() && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required")
	}
	rows, next, err := s.repo.ListAgentQueue(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agent queue")
	}
	return &OrderList{Items: summaries(rows), NextCursor: next}, nil
}

func (s *service) AgentAssigned(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error) {
	if !actor.IsAgent() && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required")
	}
	rows, next, err := s.repo.ListByAgent(ctx, actor.UserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assigned orders")
	}
	return &OrderList{Items: summaries(rows), NextCursor: next}, nil
}

// Cancel aborts a purchase before inspection starts. The item goes back on
// the market, and a paid order is refunded as platform credit.
func (s *service) Cancel(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can cancel the order")
		}
		from := order.Status
		if from != enums.OrderStatusPendingPayment && from != enums.OrderStatusPaymentAuthorized {
			return pkgerrors.StateConflict("order", from.String(), "cancel")
		}

		now := time.Now().UTC()
		if err := s.cas(ctx, repo, order, from, enums.OrderStatusCancelled, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		order.CancelledAt = &now

		if err := s.releaseItem(ctx, tx, order.ItemID); err != nil {
			return err
		}
		if from == enums.OrderStatusPaymentAuthorized {
			if err := s.refundBuyer(ctx, tx, order, "order cancelled before assessment"); err != nil {
				return err
			}
		}

		note := "cancelled by buyer"
		if err := s.appendEvent(ctx, repo, order, actor, from, enums.OrderStatusCancelled, &note, nil); err != nil {
			return err
		}
		cancelled = order
		return s.emit(ctx, tx, enums.EventOrderCancelled, actor, order, from)
	})
	if err != nil {
		return nil, err
	}

	s.notifyOne(ctx, cancelled.SellerID, enums.NotificationTypeOrderAlert, "Order cancelled",
		fmt.Sprintf("Order #%d was cancelled by the buyer. The item is available again.", cancelled.OrderNumber), cancelled.ID)

	summary := FromModel(cancelled)
	return &summary, nil
}

// AcceptAssessment lets an agent claim an unassigned paid order.
func (s *service) AcceptAssessment(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error) {
	if !actor.IsAgent() && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent role required")
	}

	var claimed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}

		ok, err := repo.AssignAgentIf(ctx, order.ID, actor.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim assessment")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already claimed or not awaiting an agent")
		}

		agentID := actor.UserID
		order.AgentID = &agentID
		from := order.Status
		order.Status = enums.OrderStatusAwaitingAssessment

		if err := s.appendEvent(ctx, repo, order, actor, from, enums.OrderStatusAwaitingAssessment, nil, nil); err != nil {
			return err
		}
		claimed = order
		return s.emit(ctx, tx, enums.EventOrderStateChanged, actor, order, from)
	})
	if err != nil {
		return nil, err
	}

	_ = s.notify.NotifyAll(ctx, []notifications.Note{
		s.note(claimed.BuyerID, enums.NotificationTypeOrderAlert, "Inspection scheduled",
			fmt.Sprintf("An agent has picked up order #%d for assessment.", claimed.OrderNumber), claimed.ID),
		s.note(claimed.SellerID, enums.NotificationTypeOrderAlert, "Inspection scheduled",
			fmt.Sprintf("An agent has picked up order #%d for assessment.", claimed.OrderNumber), claimed.ID),
	})

	summary := FromModel(claimed)
	return &summary, nil
}

// AdvanceLogistics walks a post-approval order one fulfilment hop forward.
func (s *service) AdvanceLogistics(ctx context.Context, actor types.Actor, id uuid.UUID, req LogisticsRequest) (*OrderSummary, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if req.Note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audit note required")
	}

	var advanced *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		from := order.Status
		to, ok := NextLogisticsHop(from)
		if !ok {
			return pkgerrors.StateConflict("order", from.String(), "advance logistics")
		}

		updates := map[string]any{
			"status":        to,
			"tracking_note": req.Note,
		}
		now := time.Now().UTC()
		if to == enums.OrderStatusDelivered {
			updates["delivered_at"] = now
		}
		if err := s.cas(ctx, repo, order, from, to, updates); err != nil {
			return err
		}
		order.Status = to
		order.TrackingNote = &req.Note
		if to == enums.OrderStatusDelivered {
			order.DeliveredAt = &now
		}

		if err := s.appendEvent(ctx, repo, order, actor, from, to, &req.Note, nil); err != nil {
			return err
		}
		advanced = order
		return s.emit(ctx, tx, enums.EventOrderStateChanged, actor, order, from)
	})
	if err != nil {
		return nil, err
	}

	notes := []notifications.Note{
		s.note(advanced.BuyerID, enums.NotificationTypeOrderAlert, "Order update",
			fmt.Sprintf("Order #%d %s.", advanced.OrderNumber, statusPhrase(advanced.Status)), advanced.ID),
	}
	if advanced.Status == enums.OrderStatusDelivered {
		notes = append(notes, s.note(advanced.SellerID, enums.NotificationTypeOrderAlert, "Order delivered",
			fmt.Sprintf("Order #%d has been delivered to the buyer.", advanced.OrderNumber), advanced.ID))
	}
	_ = s.notify.NotifyAll(ctx, notes)

	summary := FromModel(advanced)
	return &summary, nil
}

// ConfirmReceipt is the buyer's sign-off that closes the escrow window.
func (s *service) ConfirmReceipt(ctx context.Context, actor types.Actor, id uuid.UUID) (*OrderSummary, error) {
	var completed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm receipt")
		}
		from := order.Status
		if from != enums.OrderStatusDelivered {
			return pkgerrors.StateConflict("order", from.String(), "confirm receipt")
		}

		now := time.Now().UTC()
		if err := s.cas(ctx, repo, order, from, enums.OrderStatusCompleted, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &now

		if err := s.appendEvent(ctx, repo, order, actor, from, enums.OrderStatusCompleted, nil, nil); err != nil {
			return err
		}
		completed = order
		return s.emit(ctx, tx, enums.EventOrderStateChanged, actor, order, from)
	})
	if err != nil {
		return nil, err
	}

	s.notifyOne(ctx, completed.SellerID, enums.NotificationTypeOrderAlert, "Order completed",
		fmt.Sprintf("The buyer confirmed receipt of order #%d. You can now claim your payout.", completed.OrderNumber), completed.ID)

	summary := FromModel(completed)
	return &summary, nil
}

// Dispute freezes a delivered order pending an admin ruling.
func (s *service) Dispute(ctx context.Context, actor types.Actor, id uuid.UUID, req DisputeRequest) (*OrderSummary, error) {
	if req.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}

	var disputed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if order.BuyerID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can open a dispute")
		}
		from := order.Status
		if from != enums.OrderStatusDelivered {
			return pkgerrors.StateConflict("order", from.String(), "dispute")
		}

		if err := s.cas(ctx, repo, order, from, enums.OrderStatusDisputed, map[string]any{
			"status":         enums.OrderStatusDisputed,
			"dispute_reason": req.Reason,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusDisputed
		order.DisputeReason = &req.Reason

		if err := s.appendEvent(ctx, repo, order, actor, from, enums.OrderStatusDisputed, &req.Reason, nil); err != nil {
			return err
		}
		disputed = order
		return s.emit(ctx, tx, enums.EventDisputeOpened, actor, order, from)
	})
	if err != nil {
		return nil, err
	}

	notes := []notifications.Note{
		s.note(disputed.SellerID, enums.NotificationTypeOrderAlert, "Dispute opened",
			fmt.Sprintf("The buyer disputed order #%d. An admin will review it.", disputed.OrderNumber), disputed.ID),
	}
	if adminIDs, err := s.users.ListIDsByRole(ctx, enums.MemberRoleAdmin); err == nil {
		for _, adminID := range adminIDs {
			notes = append(notes, s.note(adminID, enums.NotificationTypeOrderAlert, "Dispute opened",
				fmt.Sprintf("Order #%d was disputed: %s", disputed.OrderNumber, req.Reason), disputed.ID))
		}
	}
	_ = s.notify.NotifyAll(ctx, notes)

	summary := FromModel(disputed)
	return &summary, nil
}

// ResolveDispute applies the admin ruling. Refunding the buyer cancels the
// order, releases the item, and credits the buyer; paying the seller
// completes the order so the payout can be claimed.
func (s *service) ResolveDispute(ctx context.Context, actor types.Actor, id uuid.UUID, req ResolveDisputeRequest) (*OrderSummary, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if req.Notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution notes required")
	}
	if req.Resolution != ResolutionRefundBuyer && req.Resolution != ResolutionPaySeller {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid resolution %q", req.Resolution))
	}

	var resolved *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		from := order.Status
		if from != enums.OrderStatusDisputed {
			return pkgerrors.StateConflict("order", from.String(), "resolve dispute")
		}

		now := time.Now().UTC()
		if req.Resolution == ResolutionRefundBuyer {
			if err := s.cas(ctx, repo, order, from, enums.OrderStatusCancelled, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			}); err != nil {
				return err
			}
			order.Status = enums.OrderStatusCancelled
			order.CancelledAt = &now
			if err := s.releaseItem(ctx, tx, order.ItemID); err != nil {
				return err
			}
			if err := s.refundBuyer(ctx, tx, order, "dispute resolved in buyer's favour"); err != nil {
				return err
			}
		} else {
			if err := s.cas(ctx, repo, order, from, enums.OrderStatusCompleted, map[string]any{
				"status":       enums.OrderStatusCompleted,
				"completed_at": now,
			}); err != nil {
				return err
			}
			order.Status = enums.OrderStatusCompleted
			order.CompletedAt = &now
		}

		metadata, _ := json.Marshal(map[string]any{"resolution": req.Resolution})
		if err := s.appendEvent(ctx, repo, order, actor, from, order.Status, &req.Notes, metadata); err != nil {
			return err
		}
		resolved = order
		return s.emit(ctx, tx, enums.EventDisputeResolved, actor, order, from)
	})
	if err != nil {
		return nil, err
	}

	// both parties get identical text
	message := fmt.Sprintf("The dispute on order #%d was resolved: %s. %s", resolved.OrderNumber, req.Resolution, req.Notes)
	_ = s.notify.NotifyAll(ctx, []notifications.Note{
		s.note(resolved.BuyerID, enums.NotificationTypeOrderAlert, "Dispute resolved", message, resolved.ID),
		s.note(resolved.SellerID, enums.NotificationTypeOrderAlert, "Dispute resolved", message, resolved.ID),
	})

	summary := FromModel(resolved)
	return &summary, nil
}

// ClaimPayout settles a completed order exactly once: CAS to funds_paid_out,
// a unique-index-guarded payout row, the commission row, and the seller's
// credit all land in one transaction.
func (s *service) ClaimPayout(ctx context.Context, actor types.Actor, id uuid.UUID) (*PayoutResult, error) {
	var (
		result *PayoutResult
		paid   *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if order.SellerID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can claim this payout")
		}
		from := order.Status
		if from != enums.OrderStatusCompleted {
			return pkgerrors.StateConflict("order", from.String(), "claim payout")
		}

		commission := s.fees.CommissionKobo(order.AmountKobo)
		net := order.AmountKobo - commission

		if err := s.cas(ctx, repo, order, from, enums.OrderStatusFundsPaidOut, map[string]any{
			"status":          enums.OrderStatusFundsPaidOut,
			"commission_kobo": commission,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusFundsPaidOut
		order.CommissionKobo = commission

		ledger := s.ledger.WithTx(tx)
		payout := &models.FinancialTransaction{
			OrderID:    order.ID,
			UserID:     order.SellerID,
			Type:       enums.TransactionTypePayout,
			AmountKobo: net,
		}
		if err := ledger.Record(ctx, payout); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_financial_transactions_payout_once") {
				return pkgerrors.New(pkgerrors.CodeConflict, "payout already processed for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout")
		}
		if commission > 0 {
			commissionRow := &models.FinancialTransaction{
				OrderID:    order.ID,
				UserID:     order.SellerID,
				Type:       enums.TransactionTypeCommission,
				AmountKobo: commission,
			}
			if err := ledger.Record(ctx, commissionRow); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record commission")
			}
		}

		orderID := order.ID
		entry, err := s.credits.Apply(ctx, tx, credits.ApplyInput{
			UserID:     order.SellerID,
			Type:       enums.CreditTransactionTypePayoutCredit,
			AmountKobo: net,
			OrderID:    &orderID,
		})
		if err != nil {
			return err
		}

		if err := s.appendEvent(ctx, repo, order, actor, from, enums.OrderStatusFundsPaidOut, nil, nil); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, enums.EventSellerPayoutCleared, actor, order, from); err != nil {
			return err
		}

		result = &PayoutResult{
			OrderID:        order.ID,
			AmountKobo:     order.AmountKobo,
			CommissionKobo: commission,
			NetKobo:        net,
			BalanceAfter:   entry.BalanceAfter,
		}
		paid = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyOne(ctx, paid.SellerID, enums.NotificationTypePaymentAlert, "Payout cleared",
		fmt.Sprintf("Your payout of %d kobo for order #%d has been credited.", result.NetKobo, paid.OrderNumber), paid.ID)
	return result, nil
}

// cas performs the status compare-and-swap and verifies the hop is legal.
func (s *service) cas(ctx context.Context, repo Repository, order *models.Order, from, to enums.OrderStatus, updates map[string]any) error {
	if !CanTransition(from, to) {
		return pkgerrors.StateConflict("order", from.String(), to.String())
	}
	ok, err := repo.UpdateIf(ctx, order.ID, from, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.StateConflict("order", from.String(), to.String())
	}
	order.Status = to
	return nil
}

func (s *service) appendEvent(ctx context.Context, repo Repository, order *models.Order, actor types.Actor, from, to enums.OrderStatus, note *string, metadata json.RawMessage) error {
	actorID := actor.UserID
	role := actor.Role
	event := &models.OrderEvent{
		OrderID:    order.ID,
		ActorID:    &actorID,
		ActorRole:  &role,
		FromStatus: &from,
		ToStatus:   to,
		Note:       note,
		Metadata:   metadata,
	}
	if err := repo.AppendEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order event")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, actor types.Actor, order *models.Order, from enums.OrderStatus) error {
	err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
		Data: map[string]any{
			"orderNumber": order.OrderNumber,
			"fromStatus":  from,
			"toStatus":    order.Status,
			"buyerId":     order.BuyerID,
			"sellerId":    order.SellerID,
		},
		Version: 1,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return nil
}

// releaseItem puts a reserved or sold item back on the market.
func (s *service) releaseItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	repo := s.itemRepo.WithTx(tx)
	for _, from := range []enums.ItemStatus{enums.ItemStatusPendingPayment, enums.ItemStatusSold} {
		ok, err := repo.UpdateStatusIf(ctx, itemID, from, enums.ItemStatusAvailable)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release item")
		}
		if ok {
			return nil
		}
	}
	// already available; nothing to release
	return nil
}

// refundBuyer records the refund row and returns the purchase amount to the
// buyer's platform credit.
func (s *service) refundBuyer(ctx context.Context, tx *gorm.DB, order *models.Order, note string) error {
	refund := &models.FinancialTransaction{
		OrderID:    order.ID,
		UserID:     order.BuyerID,
		Type:       enums.TransactionTypeRefund,
		AmountKobo: order.AmountKobo,
	}
	if err := s.ledger.WithTx(tx).Record(ctx, refund); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
	}
	orderID := order.ID
	_, err := s.credits.Apply(ctx, tx, credits.ApplyInput{
		UserID:     order.BuyerID,
		Type:       enums.CreditTransactionTypeRefundCredit,
		AmountKobo: order.AmountKobo,
		OrderID:    &orderID,
		Note:       &note,
	})
	return err
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadVisible(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return order, nil
	}
	if order.BuyerID == actor.UserID || order.SellerID == actor.UserID {
		return order, nil
	}
	if order.AgentID != nil && *order.AgentID == actor.UserID {
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not involve user")
}

func (s *service) note(userID uuid.UUID, noteType enums.NotificationType, title, message string, orderID uuid.UUID) notifications.Note {
	link := fmt.Sprintf("/orders/%s", orderID)
	return notifications.Note{
		UserID:  userID,
		Type:    noteType,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func (s *service) notifyOne(ctx context.Context, userID uuid.UUID, noteType enums.NotificationType, title, message string, orderID uuid.UUID) {
	_ = s.notify.Notify(ctx, s.note(userID, noteType, title, message, orderID))
}
