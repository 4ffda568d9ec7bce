package items

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/internal/credits"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
)

type stubItemsRepo struct {
	items   map[uuid.UUID]*models.Item
	updates map[string]any
	deleted []uuid.UUID
}

func newStubItemsRepo() *stubItemsRepo {
	return &stubItemsRepo{items: map[uuid.UUID]*models.Item{}}
}

func (s *stubItemsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubItemsRepo) Create(ctx context.Context, item *models.Item) (*models.Item, error) {
	item.ID = uuid.New()
	s.items[item.ID] = item
	return item, nil
}

func (s *stubItemsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *stubItemsRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Item, string, error) {
	out := make([]models.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, "", nil
}

func (s *stubItemsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	if title, ok := updates["title"].(string); ok {
		s.items[id].Title = title
	}
	if price, ok := updates["price_kobo"].(int64); ok {
		s.items[id].PriceKobo = price
	}
	return nil
}

func (s *stubItemsRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.ItemStatus) (bool, error) {
	item, ok := s.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	return true, nil
}

func (s *stubItemsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.items, id)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubCreditApplier struct {
	applied []credits.ApplyInput
	err     error
}

func (s *stubCreditApplier) Apply(ctx context.Context, tx *gorm.DB, input credits.ApplyInput) (*models.CreditTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.applied = append(s.applied, input)
	return &models.CreditTransaction{UserID: input.UserID, AmountKobo: input.AmountKobo}, nil
}

func newItemsService(t *testing.T, repo *stubItemsRepo, creditsStub *stubCreditApplier) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, creditsStub, config.FeesConfig{ListingFeeKobo: 10000, CommissionPercent: 5})
	require.NoError(t, err)
	return svc
}

func TestServiceCreateDebitsListingFee(t *testing.T) {
	repo := newStubItemsRepo()
	creditsStub := &stubCreditApplier{}
	svc := newItemsService(t, repo, creditsStub)

	sellerID := uuid.New()
	summary, err := svc.Create(context.Background(), sellerID, CreateItemRequest{
		Title:       "Road bicycle",
		Description: "Lightly used aluminium frame",
		Category:    "sports",
		Condition:   "used_good",
		PriceKobo:   4_500_000,
	})
	require.NoError(t, err)
	require.Equal(t, enums.ItemStatusAvailable, summary.Status)
	require.Equal(t, sellerID, summary.SellerID)

	require.Len(t, creditsStub.applied, 1)
	require.Equal(t, int64(-10000), creditsStub.applied[0].AmountKobo)
	require.Equal(t, enums.CreditTransactionTypeListingFee, creditsStub.applied[0].Type)
	require.Equal(t, sellerID, creditsStub.applied[0].UserID)
}

func TestServiceCreateInsufficientCreditFailsWhole(t *testing.T) {
	repo := newStubItemsRepo()
	creditsStub := &stubCreditApplier{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient credit balance")}
	svc := newItemsService(t, repo, creditsStub)

	_, err := svc.Create(context.Background(), uuid.New(), CreateItemRequest{
		Title:       "Road bicycle",
		Description: "Lightly used aluminium frame",
		Category:    "sports",
		Condition:   "used_good",
		PriceKobo:   4_500_000,
	})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestServiceCreateRejectsBadCondition(t *testing.T) {
	svc := newItemsService(t, newStubItemsRepo(), &stubCreditApplier{})

	_, err := svc.Create(context.Background(), uuid.New(), CreateItemRequest{
		Title:       "Road bicycle",
		Description: "Lightly used aluminium frame",
		Category:    "sports",
		Condition:   "mint",
		PriceKobo:   4_500_000,
	})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServiceUpdateOwnerOnly(t *testing.T) {
	repo := newStubItemsRepo()
	svc := newItemsService(t, repo, &stubCreditApplier{})

	sellerID := uuid.New()
	item := &models.Item{SellerID: sellerID, Title: "Desk", Status: enums.ItemStatusAvailable}
	repo.Create(context.Background(), item)

	title := "Standing desk"
	_, err := svc.Update(context.Background(), uuid.New(), item.ID, UpdateItemRequest{Title: &title})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	updated, err := svc.Update(context.Background(), sellerID, item.ID, UpdateItemRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "Standing desk", updated.Title)
}

func TestServiceUpdateBlockedWhileReserved(t *testing.T) {
	repo := newStubItemsRepo()
	svc := newItemsService(t, repo, &stubCreditApplier{})

	sellerID := uuid.New()
	item := &models.Item{SellerID: sellerID, Title: "Desk", Status: enums.ItemStatusPendingPayment}
	repo.Create(context.Background(), item)

	title := "Standing desk"
	_, err := svc.Update(context.Background(), sellerID, item.ID, UpdateItemRequest{Title: &title})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestServiceDeleteAdminOverride(t *testing.T) {
	repo := newStubItemsRepo()
	svc := newItemsService(t, repo, &stubCreditApplier{})

	item := &models.Item{SellerID: uuid.New(), Title: "Desk", Status: enums.ItemStatusAvailable}
	repo.Create(context.Background(), item)

	err := svc.Delete(context.Background(), uuid.New(), enums.MemberRoleUser, item.ID)
	require.Error(t, err)

	err = svc.Delete(context.Background(), uuid.New(), enums.MemberRoleAdmin, item.ID)
	require.NoError(t, err)
	require.Len(t, repo.deleted, 1)
}

func TestServiceGetUnknownItem(t *testing.T) {
	svc := newItemsService(t, newStubItemsRepo(), &stubCreditApplier{})

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
