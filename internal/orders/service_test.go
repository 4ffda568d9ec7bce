package orders

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
	"github.com/emekandu/kasuwa-backend/internal/payments"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/outbox"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
	"github.com/emekandu/kasuwa-backend/pkg/types"
)

type stubOrdersRepo struct {
	orders     map[uuid.UUID]*models.Order
	events     []models.OrderEvent
	nextNumber int64
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}, nextNumber: 1000}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	s.nextNumber++
	return s.nextNumber, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrdersRepo) ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.BuyerID == userID || order.SellerID == userID {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (s *stubOrdersRepo) ListByStatus(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.Status == status {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (s *stubOrdersRepo) ListAgentQueue(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.Status == enums.OrderStatusPaymentAuthorized && order.AgentID == nil {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (s *stubOrdersRepo) ListByAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.AgentID != nil && *order.AgentID == agentID {
			out = append(out, *order)
		}
	}
	return out, "", nil
}

func (s *stubOrdersRepo) UpdateIf(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	if note, ok := updates["tracking_note"].(string); ok {
		order.TrackingNote = &note
	}
	if reason, ok := updates["dispute_reason"].(string); ok {
		order.DisputeReason = &reason
	}
	if commission, ok := updates["commission_kobo"].(int64); ok {
		order.CommissionKobo = commission
	}
	return true, nil
}

func (s *stubOrdersRepo) AssignAgentIf(ctx context.Context, id, agentID uuid.UUID) (bool, error) {
	order, ok := s.orders[id]
	if !ok || order.Status != enums.OrderStatusPaymentAuthorized || order.AgentID != nil {
		return false, nil
	}
	order.AgentID = &agentID
	order.Status = enums.OrderStatusAwaitingAssessment
	return true, nil
}

func (s *stubOrdersRepo) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	s.events = append(s.events, *event)
	return nil
}

func (s *stubOrdersRepo) ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	var out []models.OrderEvent
	for _, event := range s.events {
		if event.OrderID == orderID {
			out = append(out, event)
		}
	}
	return out, nil
}

type orderItemsRepo struct {
	items map[uuid.UUID]*models.Item
}

func newOrderItemsRepo() *orderItemsRepo {
	return &orderItemsRepo{items: map[uuid.UUID]*models.Item{}}
}

func (s *orderItemsRepo) WithTx(tx *gorm.DB) items.Repository { return s }

func (s *orderItemsRepo) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items[item.ID] = item
	return item, nil
}

func (s *orderItemsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *orderItemsRepo) List(ctx context.Context, params pagination.Params, filters items.ListFilters) ([]models.Item, string, error) {
	return nil, "", nil
}

func (s *orderItemsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *orderItemsRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.ItemStatus) (bool, error) {
	item, ok := s.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	return true, nil
}

func (s *orderItemsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(s.items, id)
	return nil
}

type stubLedger struct {
	rows       []models.FinancialTransaction
	payoutSeen map[uuid.UUID]bool
}

func newStubLedger() *stubLedger {
	return &stubLedger{payoutSeen: map[uuid.UUID]bool{}}
}

func (s *stubLedger) WithTx(tx *gorm.DB) payments.LedgerRepository { return s }

func (s *stubLedger) Record(ctx context.Context, txn *models.FinancialTransaction) error {
	if txn.Type == enums.TransactionTypePayout {
		if s.payoutSeen[txn.OrderID] {
			return gorm.ErrDuplicatedKey
		}
		s.payoutSeen[txn.OrderID] = true
	}
	s.rows = append(s.rows, *txn)
	return nil
}

func (s *stubLedger) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinancialTransaction, error) {
	var out []models.FinancialTransaction
	for _, row := range s.rows {
		if row.OrderID == orderID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubLedger) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.FinancialTransaction, string, error) {
	return nil, "", nil
}

type stubDirectory struct {
	admins []uuid.UUID
	agents []uuid.UUID
}

func (s *stubDirectory) ListIDsByRole(ctx context.Context, role enums.MemberRole) ([]uuid.UUID, error) {
	switch role {
	case enums.MemberRoleAdmin:
		return s.admins, nil
	case enums.MemberRoleAgent:
		return s.agents, nil
	default:
		return nil, nil
	}
}

type stubCredits struct {
	applied []credits.ApplyInput
	balance int64
}

func (s *stubCredits) Apply(ctx context.Context, tx *gorm.DB, input credits.ApplyInput) (*models.CreditTransaction, error) {
	s.applied = append(s.applied, input)
	s.balance += input.AmountKobo
	return &models.CreditTransaction{
		UserID:       input.UserID,
		Type:         input.Type,
		AmountKobo:   input.AmountKobo,
		BalanceAfter: s.balance,
	}, nil
}

type stubOrderEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubOrderEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubOrderNotifier struct {
	notes []notifications.Note
}

func (s *stubOrderNotifier) Notify(ctx context.Context, note notifications.Note) error {
	s.notes = append(s.notes, note)
	return nil
}

func (s *stubOrderNotifier) NotifyAll(ctx context.Context, notes []notifications.Note) error {
	s.notes = append(s.notes, notes...)
	return nil
}

type ordersTxRunner struct{}

func (ordersTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type ordersFixture struct {
	svc       Service
	repo      *stubOrdersRepo
	itemRepo  *orderItemsRepo
	ledger    *stubLedger
	directory *stubDirectory
	credits   *stubCredits
	emitter   *stubOrderEmitter
	notifier  *stubOrderNotifier
	buyerID   uuid.UUID
	sellerID  uuid.UUID
	agentID   uuid.UUID
	item      *models.Item
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	f := &ordersFixture{
		repo:      newStubOrdersRepo(),
		itemRepo:  newOrderItemsRepo(),
		ledger:    newStubLedger(),
		directory: &stubDirectory{admins: []uuid.UUID{uuid.New()}},
		credits:   &stubCredits{},
		emitter:   &stubOrderEmitter{},
		notifier:  &stubOrderNotifier{},
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
		agentID:   uuid.New(),
	}
	f.item = &models.Item{ID: uuid.New(), SellerID: f.sellerID, PriceKobo: 1_100_000, Status: enums.ItemStatusSold}
	f.itemRepo.items[f.item.ID] = f.item

	svc, err := NewService(
		f.repo, f.itemRepo, f.ledger, f.directory, f.credits,
		ordersTxRunner{}, f.emitter, f.notifier,
		config.FeesConfig{ListingFeeKobo: 10000, CommissionPercent: 5},
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *ordersFixture) seed(status enums.OrderStatus) *models.Order {
	order := &models.Order{
		OrderNumber: 1001,
		ItemID:      f.item.ID,
		BuyerID:     f.buyerID,
		SellerID:    f.sellerID,
		Status:      status,
		AmountKobo:  1_100_000,
	}
	f.repo.Create(context.Background(), order)
	return order
}

func (f *ordersFixture) buyer() types.Actor {
	return types.Actor{UserID: f.buyerID, Role: enums.MemberRoleUser}
}

func (f *ordersFixture) seller() types.Actor {
	return types.Actor{UserID: f.sellerID, Role: enums.MemberRoleUser}
}

func (f *ordersFixture) agent() types.Actor {
	return types.Actor{UserID: f.agentID, Role: enums.MemberRoleAgent}
}

func (f *ordersFixture) admin() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.MemberRoleAdmin}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, code, typed.Code())
}

func TestCancelReleasesItem(t *testing.T) {
	f := newOrdersFixture(t)
	f.item.Status = enums.ItemStatusPendingPayment
	order := f.seed(enums.OrderStatusPendingPayment)

	summary, err := f.svc.Cancel(context.Background(), f.buyer(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, summary.Status)
	require.Equal(t, enums.ItemStatusAvailable, f.item.Status)
	require.Empty(t, f.credits.applied)

	require.Len(t, f.notifier.notes, 1)
	require.Equal(t, f.sellerID, f.notifier.notes[0].UserID)
}

func TestCancelPaidOrderRefundsBuyer(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusPaymentAuthorized)

	_, err := f.svc.Cancel(context.Background(), f.buyer(), order.ID)
	require.NoError(t, err)

	require.Equal(t, enums.ItemStatusAvailable, f.item.Status)
	require.Len(t, f.ledger.rows, 1)
	require.Equal(t, enums.TransactionTypeRefund, f.ledger.rows[0].Type)
	require.Len(t, f.credits.applied, 1)
	require.Equal(t, enums.CreditTransactionTypeRefundCredit, f.credits.applied[0].Type)
	require.Equal(t, order.AmountKobo, f.credits.applied[0].AmountKobo)
}

func TestCancelRejectsNonBuyer(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusPendingPayment)

	_, err := f.svc.Cancel(context.Background(), f.seller(), order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCancelRejectsLateStage(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusDelivered)

	_, err := f.svc.Cancel(context.Background(), f.buyer(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAcceptAssessmentClaimsOnce(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusPaymentAuthorized)

	summary, err := f.svc.AcceptAssessment(context.Background(), f.agent(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusAwaitingAssessment, summary.Status)
	require.NotNil(t, summary.AgentID)
	require.Equal(t, f.agentID, *summary.AgentID)

	rival := types.Actor{UserID: uuid.New(), Role: enums.MemberRoleAgent}
	_, err = f.svc.AcceptAssessment(context.Background(), rival, order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAcceptAssessmentRequiresAgentRole(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusPaymentAuthorized)

	_, err := f.svc.AcceptAssessment(context.Background(), f.buyer(), order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestAdvanceLogisticsWalksHops(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusAwaitingCollection)
	admin := f.admin()

	for _, expect := range []enums.OrderStatus{
		enums.OrderStatusInWarehouse,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	} {
		summary, err := f.svc.AdvanceLogistics(context.Background(), admin, order.ID, LogisticsRequest{Note: "moved by ops"})
		require.NoError(t, err)
		require.Equal(t, expect, summary.Status)
	}

	// no hop past delivered
	_, err := f.svc.AdvanceLogistics(context.Background(), admin, order.ID, LogisticsRequest{Note: "again"})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	stored := f.repo.orders[order.ID]
	require.NotNil(t, stored.TrackingNote)
}

func TestAdvanceLogisticsNotifiesReadableStatus(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusAwaitingCollection)

	_, err := f.svc.AdvanceLogistics(context.Background(), f.admin(), order.ID, LogisticsRequest{Note: "collected"})
	require.NoError(t, err)

	require.NotEmpty(t, f.notifier.notes)
	buyerNote := f.notifier.notes[0]
	require.Equal(t, f.buyerID, buyerNote.UserID)
	require.Contains(t, buyerNote.Message, "arrived at our warehouse")
	require.NotContains(t, buyerNote.Message, "in_warehouse")
}

func TestAdvanceLogisticsAdminOnly(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusAwaitingCollection)

	_, err := f.svc.AdvanceLogistics(context.Background(), f.agent(), order.ID, LogisticsRequest{Note: "nope"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestConfirmReceiptCompletesOrder(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusDelivered)

	summary, err := f.svc.ConfirmReceipt(context.Background(), f.buyer(), order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCompleted, summary.Status)

	require.Len(t, f.notifier.notes, 1)
	require.Equal(t, f.sellerID, f.notifier.notes[0].UserID)
}

func TestDisputeNotifiesSellerAndAdmins(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusDelivered)

	summary, err := f.svc.Dispute(context.Background(), f.buyer(), order.ID, DisputeRequest{Reason: "screen is cracked on arrival"})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDisputed, summary.Status)
	require.NotNil(t, summary.DisputeReason)

	// seller plus one seeded admin
	require.Len(t, f.notifier.notes, 2)
}

func TestResolveDisputeRefundBuyer(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusDisputed)

	summary, err := f.svc.ResolveDispute(context.Background(), f.admin(), order.ID, ResolveDisputeRequest{
		Resolution: ResolutionRefundBuyer,
		Notes:      "item not as described, refunding",
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, summary.Status)
	require.Equal(t, enums.ItemStatusAvailable, f.item.Status)

	require.Len(t, f.credits.applied, 1)
	require.Equal(t, enums.CreditTransactionTypeRefundCredit, f.credits.applied[0].Type)

	// identical message text to both parties
	require.Len(t, f.notifier.notes, 2)
	require.Equal(t, f.notifier.notes[0].Message, f.notifier.notes[1].Message)
}

func TestResolveDisputePaySeller(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusDisputed)

	summary, err := f.svc.ResolveDispute(context.Background(), f.admin(), order.ID, ResolveDisputeRequest{
		Resolution: ResolutionPaySeller,
		Notes:      "buyer claim unsubstantiated",
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCompleted, summary.Status)
	require.Empty(t, f.credits.applied)
}

func TestResolveDisputeAdminOnly(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusDisputed)

	_, err := f.svc.ResolveDispute(context.Background(), f.buyer(), order.ID, ResolveDisputeRequest{
		Resolution: ResolutionRefundBuyer,
		Notes:      "refund me please right now",
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestClaimPayoutSettlesExactlyOnce(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusCompleted)

	result, err := f.svc.ClaimPayout(context.Background(), f.seller(), order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(55_000), result.CommissionKobo)
	require.Equal(t, int64(1_045_000), result.NetKobo)
	require.Equal(t, int64(1_045_000), result.BalanceAfter)

	require.Equal(t, enums.OrderStatusFundsPaidOut, f.repo.orders[order.ID].Status)

	rows, err := f.ledger.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, enums.TransactionTypePayout, rows[0].Type)
	require.Equal(t, enums.TransactionTypeCommission, rows[1].Type)

	require.Len(t, f.credits.applied, 1)
	require.Equal(t, enums.CreditTransactionTypePayoutCredit, f.credits.applied[0].Type)
	require.Equal(t, int64(1_045_000), f.credits.applied[0].AmountKobo)

	// a second claim finds the order already settled
	_, err = f.svc.ClaimPayout(context.Background(), f.seller(), order.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestClaimPayoutSellerOrAdminOnly(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusCompleted)

	_, err := f.svc.ClaimPayout(context.Background(), f.buyer(), order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.ClaimPayout(context.Background(), f.admin(), order.ID)
	require.NoError(t, err)
}

func TestOpenFromOfferCreatesPendingPaymentOrder(t *testing.T) {
	f := newOrdersFixture(t)

	offer := &models.Offer{
		ID:             uuid.New(),
		ItemID:         f.item.ID,
		BuyerID:        f.buyerID,
		SellerID:       f.sellerID,
		CurrentBidKobo: 1_100_000,
	}
	order, err := f.svc.OpenFromOffer(context.Background(), &gorm.DB{}, offer)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPendingPayment, order.Status)
	require.Equal(t, int64(1_100_000), order.AmountKobo)
	require.NotNil(t, order.OfferID)
	require.Equal(t, offer.ID, *order.OfferID)
	require.NotZero(t, order.OrderNumber)

	require.Len(t, f.emitter.events, 1)
	require.Equal(t, enums.EventOrderCreated, f.emitter.events[0].EventType)
}

func TestPurchaseReservesItemAndOpensOrder(t *testing.T) {
	f := newOrdersFixture(t)
	f.item.Status = enums.ItemStatusAvailable

	summary, err := f.svc.Purchase(context.Background(), f.buyer(), f.item.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPendingPayment, summary.Status)
	require.Equal(t, f.item.PriceKobo, summary.AmountKobo)
	require.Nil(t, summary.OfferID)
	require.NotZero(t, summary.OrderNumber)

	require.Equal(t, enums.ItemStatusPendingPayment, f.item.Status)

	require.Len(t, f.emitter.events, 1)
	require.Equal(t, enums.EventOrderCreated, f.emitter.events[0].EventType)

	// buyer and seller both hear about it
	require.Len(t, f.notifier.notes, 2)
	require.Equal(t, f.buyerID, f.notifier.notes[0].UserID)
	require.Equal(t, f.sellerID, f.notifier.notes[1].UserID)
}

func TestPurchaseRejectsOwnListing(t *testing.T) {
	f := newOrdersFixture(t)
	f.item.Status = enums.ItemStatusAvailable

	_, err := f.svc.Purchase(context.Background(), f.seller(), f.item.ID)
	requireCode(t, err, pkgerrors.CodeValidation)
	require.Equal(t, enums.ItemStatusAvailable, f.item.Status)
}

func TestPurchaseRejectsReservedItem(t *testing.T) {
	f := newOrdersFixture(t)
	f.item.Status = enums.ItemStatusPendingPayment

	_, err := f.svc.Purchase(context.Background(), f.buyer(), f.item.ID)
	requireCode(t, err, pkgerrors.CodeStateConflict)
	require.Empty(t, f.repo.orders)
	require.Empty(t, f.notifier.notes)
}

func TestGetHiddenFromOutsiders(t *testing.T) {
	f := newOrdersFixture(t)
	order := f.seed(enums.OrderStatusPendingPayment)

	outsider := types.Actor{UserID: uuid.New(), Role: enums.MemberRoleUser}
	_, err := f.svc.Get(context.Background(), outsider, order.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Get(context.Background(), f.admin(), order.ID)
	require.NoError(t, err)
}
