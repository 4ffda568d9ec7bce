package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
)

// LedgerRepository persists immutable financial transaction rows.
type LedgerRepository interface {
	WithTx(tx *gorm.DB) LedgerRepository
	Record(ctx context.Context, txn *models.FinancialTransaction) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinancialTransaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.FinancialTransaction, string, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository builds a ledger repository bound to the provided DB.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) WithTx(tx *gorm.DB) LedgerRepository {
	if tx == nil {
		return r
	}
	return &ledgerRepository{db: tx}
}

func (r *ledgerRepository) Record(ctx context.Context, txn *models.FinancialTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *ledgerRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.FinancialTransaction, error) {
	var rows []models.FinancialTransaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ledgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.FinancialTransaction, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.FinancialTransaction{}).
		Where("user_id = ?", userID).
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

	var rows []models.FinancialTransaction
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
