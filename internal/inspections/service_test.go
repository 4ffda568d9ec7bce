package inspections

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
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
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
	"github.com/emekandu/kasuwa-backend/pkg/types"
)

type stubReportsRepo struct {
	reports map[uuid.UUID]*models.InspectionReport
}

func newStubReportsRepo() *stubReportsRepo {
	return &stubReportsRepo{reports: map[uuid.UUID]*models.InspectionReport{}}
}

func (s *stubReportsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubReportsRepo) Create(ctx context.Context, report *models.InspectionReport) (*models.InspectionReport, error) {
	report.ID = uuid.New()
	s.reports[report.ID] = report
	return report, nil
}

func (s *stubReportsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.InspectionReport, error) {
	report, ok := s.reports[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *report
	return &copied, nil
}

func (s *stubReportsRepo) FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.InspectionReport, error) {
	for _, report := range s.reports {
		if report.OrderID == orderID && report.ReviewStatus == enums.AdminReviewStatusPending {
			copied := *report
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubReportsRepo) ReviewIf(ctx context.Context, id uuid.UUID, decision enums.AdminReviewStatus, reviewerID uuid.UUID, note *string, at time.Time) (bool, error) {
	report, ok := s.reports[id]
	if !ok || report.ReviewStatus != enums.AdminReviewStatusPending {
		return false, nil
	}
	report.ReviewStatus = decision
	report.ReviewedBy = &reviewerID
	report.ReviewNote = note
	report.ReviewedAt = &at
	return true, nil
}

type inspOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
	events []models.OrderEvent
}

func newInspOrdersRepo() *inspOrdersRepo {
	return &inspOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *inspOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *inspOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *inspOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) { return 1001, nil }

func (s *inspOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *inspOrdersRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (s *inspOrdersRepo) ListByStatus(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (s *inspOrdersRepo) ListAgentQueue(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (s *inspOrdersRepo) ListByAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (s *inspOrdersRepo) UpdateIf(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	return true, nil
}

func (s *inspOrdersRepo) AssignAgentIf(ctx context.Context, id, agentID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *inspOrdersRepo) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	s.events = append(s.events, *event)
	return nil
}

func (s *inspOrdersRepo) ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	return s.events, nil
}

type inspItemsRepo struct {
	items map[uuid.UUID]*models.Item
}

func newInspItemsRepo() *inspItemsRepo {
	return &inspItemsRepo{items: map[uuid.UUID]*models.Item{}}
}

func (s *inspItemsRepo) WithTx(tx *gorm.DB) items.Repository { return s }

func (s *inspItemsRepo) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *inspItemsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *inspItemsRepo) List(ctx context.Context, params pagination.Params, filters items.ListFilters) ([]models.Item, string, error) {
	return nil, "", nil
}

func (s *inspItemsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *inspItemsRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.ItemStatus) (bool, error) {
	item, ok := s.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	return true, nil
}

func (s *inspItemsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.items, id)
	return nil
}

type inspLedger struct {
	rows []models.FinancialTransaction
}

func (s *inspLedger) WithTx(tx *gorm.DB) payments.LedgerRepository { return s }

func (s *inspLedger) Record(ctx context.Context, txn *models.FinancialTransaction) error {
	s.rows = append(s.rows, *txn)
	return nil
}

func (s *inspLedger) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinancialTransaction, error) {
	return s.rows, nil
}

func (s *inspLedger) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.FinancialTransaction, string, error) {
	return nil, "", nil
}

type inspDirectory struct {
	admins []uuid.UUID
}

func (s *inspDirectory) ListIDsByRole(ctx context.Context, role enums.MemberRole) ([]uuid.UUID, error) {
	if role == enums.MemberRoleAdmin {
		return s.admins, nil
	}
	return nil, nil
}

type inspCredits struct {
	applied []credits.ApplyInput
}

func (s *inspCredits) Apply(ctx context.Context, tx *gorm.DB, input credits.ApplyInput) (*models.CreditTransaction, error) {
	s.applied = append(s.applied, input)
	return &models.CreditTransaction{UserID: input.UserID, AmountKobo: input.AmountKobo}, nil
}

type inspEmitter struct {
	events []outbox.DomainEvent
}

func (s *inspEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type inspNotifier struct {
	notes []notifications.Note
}

func (s *inspNotifier) Notify(ctx context.Context, note notifications.Note) error {
	s.notes = append(s.notes, note)
	return nil
}

func (s *inspNotifier) NotifyAll(ctx context.Context, notes []notifications.Note) error {
	s.notes = append(s.notes, notes...)
	return nil
}

type inspTxRunner struct{}

func (inspTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type inspFixture struct {
	svc       Service
	repo      *stubReportsRepo
	orderRepo *inspOrdersRepo
	itemRepo  *inspItemsRepo
	ledger    *inspLedger
	credits   *inspCredits
	notifier  *inspNotifier
	emitter   *inspEmitter
	buyerID   uuid.UUID
	sellerID  uuid.UUID
	agentID   uuid.UUID
	order     *models.Order
	item      *models.Item
}

func newInspFixture(t *testing.T) *inspFixture {
	t.Helper()
	f := &inspFixture{
		repo:      newStubReportsRepo(),
		orderRepo: newInspOrdersRepo(),
		itemRepo:  newInspItemsRepo(),
		ledger:    &inspLedger{},
		credits:   &inspCredits{},
		notifier:  &inspNotifier{},
		emitter:   &inspEmitter{},
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
		agentID:   uuid.New(),
	}
	f.item = &models.Item{ID: uuid.New(), SellerID: f.sellerID, Status: enums.ItemStatusSold}
	f.itemRepo.items[f.item.ID] = f.item

	agentID := f.agentID
	f.order = &models.Order{
		ID:          uuid.New(),
		OrderNumber: 1001,
		ItemID:      f.item.ID,
		BuyerID:     f.buyerID,
		SellerID:    f.sellerID,
		AgentID:     &agentID,
		Status:      enums.OrderStatusAwaitingAssessment,
		AmountKobo:  1_100_000,
	}
	f.orderRepo.orders[f.order.ID] = f.order

	svc, err := NewService(
		f.repo, f.orderRepo, f.itemRepo, f.ledger,
		&inspDirectory{admins: []uuid.UUID{uuid.New()}},
		f.credits, inspTxRunner{}, f.emitter, f.notifier,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *inspFixture) agent() types.Actor {
	return types.Actor{UserID: f.agentID, Role: enums.MemberRoleAgent}
}

func (f *inspFixture) admin() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.MemberRoleAdmin}
}

func requireInspCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, code, typed.Code())
}

func (f *inspFixture) file(t *testing.T) *ReportSummary {
	t.Helper()
	report, err := f.svc.FileReport(context.Background(), f.agent(), f.order.ID, FileReportRequest{
		Verdict: "failed",
		Notes:   "screen cracked, does not power on",
	})
	require.NoError(t, err)
	return report
}

func TestFileReportParksOrderForReview(t *testing.T) {
	f := newInspFixture(t)

	report := f.file(t)
	require.Equal(t, enums.AdminReviewStatusPending, report.ReviewStatus)
	require.Equal(t, enums.InspectionVerdictFailed, report.Verdict)
	require.Equal(t, f.agentID, report.AgentID)

	require.Equal(t, enums.OrderStatusPendingAdminApproval, f.order.Status)
	require.Len(t, f.emitter.events, 1)
	require.Equal(t, enums.EventInspectionFiled, f.emitter.events[0].EventType)

	// one seeded admin got pinged
	require.Len(t, f.notifier.notes, 1)
}

func TestFileReportAssignedAgentOnly(t *testing.T) {
	f := newInspFixture(t)

	rival := types.Actor{UserID: uuid.New(), Role: enums.MemberRoleAgent}
	_, err := f.svc.FileReport(context.Background(), rival, f.order.ID, FileReportRequest{
		Verdict: "passed",
		Notes:   "all checks out fine here",
	})
	requireInspCode(t, err, pkgerrors.CodeForbidden)
}

func TestFileReportWrongOrderState(t *testing.T) {
	f := newInspFixture(t)
	f.order.Status = enums.OrderStatusDelivered

	_, err := f.svc.FileReport(context.Background(), f.agent(), f.order.ID, FileReportRequest{
		Verdict: "passed",
		Notes:   "all checks out fine here",
	})
	requireInspCode(t, err, pkgerrors.CodeStateConflict)
}

func TestReviewApproveMovesOrderToCollection(t *testing.T) {
	f := newInspFixture(t)
	report := f.file(t)
	f.notifier.notes = nil

	reviewed, err := f.svc.Review(context.Background(), f.admin(), report.ID, ReviewRequest{Decision: "approved"})
	require.NoError(t, err)
	require.Equal(t, enums.AdminReviewStatusApproved, reviewed.ReviewStatus)
	require.Equal(t, enums.OrderStatusAwaitingCollection, f.order.Status)

	// agent hears about the approval
	require.Len(t, f.notifier.notes, 1)
	require.Equal(t, f.agentID, f.notifier.notes[0].UserID)
	require.Empty(t, f.credits.applied)
}

func TestReviewRejectCancelsAndRefunds(t *testing.T) {
	f := newInspFixture(t)
	report := f.file(t)
	f.notifier.notes = nil

	note := "agent photos confirm damage"
	reviewed, err := f.svc.Review(context.Background(), f.admin(), report.ID, ReviewRequest{Decision: "rejected", Note: &note})
	require.NoError(t, err)
	require.Equal(t, enums.AdminReviewStatusRejected, reviewed.ReviewStatus)
	require.Equal(t, enums.OrderStatusCancelled, f.order.Status)
	require.Equal(t, enums.ItemStatusAvailable, f.item.Status)

	require.Len(t, f.ledger.rows, 1)
	require.Equal(t, enums.TransactionTypeRefund, f.ledger.rows[0].Type)
	require.Len(t, f.credits.applied, 1)
	require.Equal(t, enums.CreditTransactionTypeRefundCredit, f.credits.applied[0].Type)
	require.Equal(t, f.buyerID, f.credits.applied[0].UserID)

	// buyer, seller, and agent each get exactly one notification
	require.Len(t, f.notifier.notes, 3)
	recipients := map[uuid.UUID]int{}
	for _, n := range f.notifier.notes {
		recipients[n.UserID]++
	}
	require.Equal(t, 1, recipients[f.buyerID])
	require.Equal(t, 1, recipients[f.sellerID])
	require.Equal(t, 1, recipients[f.agentID])
}

func TestReviewAdminOnly(t *testing.T) {
	f := newInspFixture(t)
	report := f.file(t)

	_, err := f.svc.Review(context.Background(), f.agent(), report.ID, ReviewRequest{Decision: "approved"})
	requireInspCode(t, err, pkgerrors.CodeForbidden)
}

func TestReviewIsSingleShot(t *testing.T) {
	f := newInspFixture(t)
	report := f.file(t)

	_, err := f.svc.Review(context.Background(), f.admin(), report.ID, ReviewRequest{Decision: "approved"})
	require.NoError(t, err)

	_, err = f.svc.Review(context.Background(), f.admin(), report.ID, ReviewRequest{Decision: "rejected"})
	requireInspCode(t, err, pkgerrors.CodeStateConflict)
}
