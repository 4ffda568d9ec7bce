package inspections

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
	"github.com/emekandu/kasuwa-backend/internal/orders"
	"github.com/emekandu/kasuwa-backend/internal/payments"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/outbox"
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

// Service runs the inspection and approval workflow. The agent verdict is
// advisory; the admin review is the final authority on whether the order
// proceeds to collection or is cancelled and refunded.
type Service interface {
	FileReport(ctx context.Context, actor types.Actor, orderID uuid.UUID, req FileReportRequest) (*ReportSummary, error)
	Review(ctx context.Context, actor types.Actor, reportID uuid.UUID, req ReviewRequest) (*ReportSummary, error)
	Get(ctx context.Context, actor types.Actor, reportID uuid.UUID) (*ReportSummary, error)
}

type service struct {
	repo      Repository
	orderRepo orders.Repository
	itemRepo  items.Repository
	ledger    payments.LedgerRepository
	users     roleDirectory
	credits   creditApplier
	tx        txRunner
	events    eventEmitter
	notify    notifier
}

// NewService wires the inspections service dependencies.
func NewService(
	repo Repository,
	orderRepo orders.Repository,
	itemRepo items.Repository,
	ledger payments.LedgerRepository,
	users roleDirectory,
	creditSvc creditApplier,
	tx txRunner,
	events eventEmitter,
	notify notifier,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inspections repository required")
	}
	if orderRepo == nil {
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
		repo:      repo,
		orderRepo: orderRepo,
		itemRepo:  itemRepo,
		ledger:    ledger,
		users:     users,
		credits:   creditSvc,
		tx:        tx,
		events:    events,
		notify:    notify,
	}, nil
}

// FileReport inserts the agent's findings and parks the order for admin
// review. The verdict travels with the audit event, not the order status.
func (s *service) FileReport(ctx context.Context, actor types.Actor, orderID uuid.UUID, req FileReportRequest) (*ReportSummary, error) {
	verdict, err := enums.ParseInspectionVerdict(req.Verdict)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if req.Notes == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inspection notes required")
	}

	var (
		report *models.InspectionReport
		order  *models.Order
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err = s.loadOrder(ctx, orderRepo, orderID)
		if err != nil {
			return err
		}
		assigned := order.AgentID != nil && *order.AgentID == actor.UserID
		if !assigned && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent can file this report")
		}
		if order.Status != enums.OrderStatusAwaitingAssessment {
			return pkgerrors.StateConflict("order", order.Status.String(), "file inspection report")
		}

		agentID := actor.UserID
		if order.AgentID != nil {
			agentID = *order.AgentID
		}
		report = &models.InspectionReport{
			OrderID:      order.ID,
			AgentID:      agentID,
			Verdict:      verdict,
			Notes:        req.Notes,
			PhotoURLs:    req.PhotoURLs,
			ReviewStatus: enums.AdminReviewStatusPending,
		}
		if _, err := s.repo.WithTx(tx).Create(ctx, report); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create inspection report")
		}

		ok, err := orderRepo.UpdateIf(ctx, order.ID, enums.OrderStatusAwaitingAssessment, map[string]any{
			"status": enums.OrderStatusPendingAdminApproval,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.StateConflict("order", order.Status.String(), "file inspection report")
		}
		from := order.Status
		order.Status = enums.OrderStatusPendingAdminApproval

		metadata, _ := json.Marshal(map[string]any{"verdict": verdict, "reportId": report.ID})
		actorID := actor.UserID
		role := actor.Role
		event := &models.OrderEvent{
			OrderID:    order.ID,
			ActorID:    &actorID,
			ActorRole:  &role,
			FromStatus: &from,
			ToStatus:   enums.OrderStatusPendingAdminApproval,
			Note:       &req.Notes,
			Metadata:   metadata,
		}
		if err := orderRepo.AppendEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order event")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInspectionFiled,
			AggregateType: enums.AggregateInspection,
			AggregateID:   report.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: map[string]any{
				"orderId": order.ID,
				"verdict": verdict,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	if adminIDs, err := s.users.ListIDsByRole(ctx, enums.MemberRoleAdmin); err == nil {
		notes := make([]notifications.Note, 0, len(adminIDs))
		for _, adminID := range adminIDs {
			notes = append(notes, s.note(adminID, "Inspection awaiting review",
				fmt.Sprintf("Order #%d has a %s inspection verdict awaiting your review.", order.OrderNumber, verdict), order.ID))
		}
		_ = s.notify.NotifyAll(ctx, notes)
	}

	summary := FromModel(report)
	return &summary, nil
}

// Review applies the admin decision. Approval releases the order to
// collection; rejection cancels it, puts the item back on the market, and
// refunds the buyer as platform credit.
func (s *service) Review(ctx context.Context, actor types.Actor, reportID uuid.UUID, req ReviewRequest) (*ReportSummary, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	decision, err := enums.ParseAdminReviewStatus(req.Decision)
	if err != nil || decision == enums.AdminReviewStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected")
	}

	var (
		report *models.InspectionReport
		order  *models.Order
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		report, err = s.loadReport(ctx, repo, reportID)
		if err != nil {
			return err
		}
		if report.ReviewStatus != enums.AdminReviewStatusPending {
			return pkgerrors.StateConflict("inspection report", string(report.ReviewStatus), "review")
		}

		orderRepo := s.orderRepo.WithTx(tx)
		order, err = s.loadOrder(ctx, orderRepo, report.OrderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPendingAdminApproval {
			return pkgerrors.StateConflict("order", order.Status.String(), "review inspection")
		}

		now := time.Now().UTC()
		ok, err := repo.ReviewIf(ctx, report.ID, decision, actor.UserID, req.Note, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record review")
		}
		if !ok {
			return pkgerrors.StateConflict("inspection report", string(report.ReviewStatus), "review")
		}
		reviewerID := actor.UserID
		report.ReviewStatus = decision
		report.ReviewedBy = &reviewerID
		report.ReviewNote = req.Note
		report.ReviewedAt = &now

		from := order.Status
		if decision == enums.AdminReviewStatusApproved {
			ok, err = orderRepo.UpdateIf(ctx, order.ID, from, map[string]any{
				"status": enums.OrderStatusAwaitingCollection,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
			if !ok {
				return pkgerrors.StateConflict("order", from.String(), "approve inspection")
			}
			order.Status = enums.OrderStatusAwaitingCollection
		} else {
			ok, err = orderRepo.UpdateIf(ctx, order.ID, from, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
			if !ok {
				return pkgerrors.StateConflict("order", from.String(), "reject inspection")
			}
			order.Status = enums.OrderStatusCancelled
			order.CancelledAt = &now

			if _, err := s.itemRepo.WithTx(tx).UpdateStatusIf(ctx, order.ItemID, enums.ItemStatusSold, enums.ItemStatusAvailable); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release item")
			}

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
			note := "inspection rejected by admin"
			_, err := s.credits.Apply(ctx, tx, credits.ApplyInput{
				UserID:     order.BuyerID,
				Type:       enums.CreditTransactionTypeRefundCredit,
				AmountKobo: order.AmountKobo,
				OrderID:    &orderID,
				Note:       &note,
			})
			if err != nil {
				return err
			}
		}

		metadata, _ := json.Marshal(map[string]any{"decision": decision, "reportId": report.ID})
		actorID := actor.UserID
		role := actor.Role
		event := &models.OrderEvent{
			OrderID:    order.ID,
			ActorID:    &actorID,
			ActorRole:  &role,
			FromStatus: &from,
			ToStatus:   order.Status,
			Note:       req.Note,
			Metadata:   metadata,
		}
		if err := orderRepo.AppendEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order event")
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInspectionReviewed,
			AggregateType: enums.AggregateInspection,
			AggregateID:   report.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: map[string]any{
				"orderId":  order.ID,
				"decision": decision,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	if decision == enums.AdminReviewStatusApproved {
		s.notifyOne(ctx, report.AgentID, "Inspection approved",
			fmt.Sprintf("Your inspection of order #%d was approved. The item moves to collection.", order.OrderNumber), order.ID)
	} else {
		message := fmt.Sprintf("Order #%d was cancelled after inspection review. The buyer has been refunded as platform credit.", order.OrderNumber)
		_ = s.notify.NotifyAll(ctx, []notifications.Note{
			s.note(order.BuyerID, "Order cancelled and refunded", message, order.ID),
			s.note(order.SellerID, "Order cancelled and refunded", message, order.ID),
			s.note(report.AgentID, "Order cancelled and refunded", message, order.ID),
		})
	}

	summary := FromModel(report)
	return &summary, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, reportID uuid.UUID) (*ReportSummary, error) {
	report, err := s.loadReport(ctx, s.repo, reportID)
	if err != nil {
		return nil, err
	}
	if report.AgentID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "report does not involve user")
	}
	summary := FromModel(report)
	return &summary, nil
}

func (s *service) loadReport(ctx context.Context, repo Repository, id uuid.UUID) (*models.InspectionReport, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}
	report, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("inspection report")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inspection report")
	}
	return report, nil
}

func (s *service) loadOrder(ctx context.Context, repo orders.Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) note(userID uuid.UUID, title, message string, orderID uuid.UUID) notifications.Note {
	link := fmt.Sprintf("/orders/%s", orderID)
	return notifications.Note{
		UserID:  userID,
		Type:    enums.NotificationTypeOrderAlert,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func (s *service) notifyOne(ctx context.Context, userID uuid.UUID, title, message string, orderID uuid.UUID) {
	_ = s.notify.Notify(ctx, s.note(userID, title, message, orderID))
}
