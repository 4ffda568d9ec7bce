package inspections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// Repository defines persistence operations for inspection reports.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, report *models.InspectionReport) (*models.InspectionReport, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.InspectionReport, error)
	FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.InspectionReport, error)
	ReviewIf(ctx context.Context, id uuid.UUID, decision enums.AdminReviewStatus, reviewerID uuid.UUID, note *string, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inspections repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, report *models.InspectionReport) (*models.InspectionReport, error) {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InspectionReport, error) {
	var report models.InspectionReport
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) FindPendingByOrder(ctx context.Context, orderID uuid.UUID) (*models.InspectionReport, error) {
	var report models.InspectionReport
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND review_status = ?", orderID, enums.AdminReviewStatusPending).
		Order("created_at DESC").
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ReviewIf records the admin decision only while the report is still
// pending. It reports false when another admin got there first.
func (r *repository) ReviewIf(ctx context.Context, id uuid.UUID, decision enums.AdminReviewStatus, reviewerID uuid.UUID, note *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.InspectionReport{}).
		Where("id = ? AND review_status = ?", id, enums.AdminReviewStatusPending).
		Updates(map[string]any{
			"review_status": decision,
			"reviewed_by":   reviewerID,
			"review_note":   note,
			"reviewed_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
