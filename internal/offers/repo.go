package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
)

// Repository defines persistence operations for offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Offer, string, error)
	ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) ([]models.Offer, string, error)
	UpdateIf(ctx context.Context, id uuid.UUID, from enums.OfferStatus, updates map[string]any) (bool, error)
	CloseOpenForItem(ctx context.Context, itemID, exceptID uuid.UUID, to enums.OfferStatus, now time.Time) ([]models.Offer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an offers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if err := r.db.WithContext(ctx).Create(offer).Error; err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Offer, string, error) {
	return r.list(ctx, params, "buyer_id = ?", buyerID)
}

func (r *repository) ListByItem(ctx context.Context, itemID uuid.UUID, params pagination.Params) ([]models.Offer, string, error) {
	return r.list(ctx, params, "item_id = ?", itemID)
}

func (r *repository) list(ctx context.Context, params pagination.Params, condition string, value any) ([]models.Offer, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where(condition, value).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Offer
	if err := query.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// UpdateIf performs a compare-and-swap keyed on the offer status. It reports
// false when the row was not in the expected state.
func (r *repository) UpdateIf(ctx context.Context, id uuid.UUID, from enums.OfferStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CloseOpenForItem sweeps every still-open offer on the item into the given
// terminal status, skipping exceptID, and returns the swept rows so callers
// can tell the losing buyers. Used when one offer wins.
func (r *repository) CloseOpenForItem(ctx context.Context, itemID, exceptID uuid.UUID, to enums.OfferStatus, now time.Time) ([]models.Offer, error) {
	open := []enums.OfferStatus{
		enums.OfferStatusPendingSellerReview,
		enums.OfferStatusPendingBuyerReview,
	}

	var rows []models.Offer
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND id <> ? AND status IN ?", itemID, exceptID, open).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	err = r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"status": to, "closed_at": now}).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		closedAt := now
		rows[i].Status = to
		rows[i].ClosedAt = &closedAt
	}
	return rows, nil
}
