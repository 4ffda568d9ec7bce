package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// Repository defines persistence operations for the users table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	AdjustCreditBalance(ctx context.Context, id uuid.UUID, deltaKobo int64) (int64, error)
	ListIDsByRole(ctx context.Context, role enums.MemberRole) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// ListIDsByRole returns the ids of every active user holding the role.
// Used to fan notifications out to the admin and agent pools.
func (r *repository) ListIDsByRole(ctx context.Context, role enums.MemberRole) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND is_active = ?", role, true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AdjustCreditBalance applies a signed delta and returns the resulting
// balance. Debits that would push the balance negative update zero rows.
func (r *repository) AdjustCreditBalance(ctx context.Context, id uuid.UUID, deltaKobo int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Where("credit_balance + ? >= 0", deltaKobo).
		Update("credit_balance", gorm.Expr("credit_balance + ?", deltaKobo))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var user models.User
	if err := r.db.WithContext(ctx).Select("credit_balance").Where("id = ?", id).First(&user).Error; err != nil {
		return 0, err
	}
	return user.CreditBalance, nil
}
