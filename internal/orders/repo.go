package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
)

// Repository defines persistence operations for orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	NextOrderNumber(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListByStatus(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, string, error)
	ListAgentQueue(ctx context.Context, params pagination.Params) ([]models.Order, string, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	UpdateIf(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	AssignAgentIf(ctx context.Context, id, agentID uuid.UUID) (bool, error)
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
	ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// NextOrderNumber draws the next human-facing order number from the
// database sequence.
func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.db.WithContext(ctx).Raw("SELECT nextval('order_number_seq')").Scan(&number).Error
	if err != nil {
		return 0, err
	}
	return number, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByParticipant(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("buyer_id = ? OR seller_id = ?", userID, userID)
	})
}

func (r *repository) ListByStatus(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("status = ?", status)
	})
}

// ListAgentQueue returns paid orders no agent has claimed yet.
func (r *repository) ListAgentQueue(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("status = ? AND agent_id IS NULL", enums.OrderStatusPaymentAuthorized)
	})
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("agent_id = ?", agentID)
	})
}

func (r *repository) list(ctx context.Context, params pagination.Params, scope func(*gorm.DB) *gorm.DB) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := scope(r.db.WithContext(ctx).Model(&models.Order{})).
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

	var rows []models.Order
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

// UpdateIf performs a compare-and-swap keyed on the order status. It reports
// false when the row was not in the expected state.
func (r *repository) UpdateIf(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AssignAgentIf claims an unassigned paid order for the agent. The agent_id
// guard keeps two agents from winning the same task.
func (r *repository) AssignAgentIf(ctx context.Context, id, agentID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND agent_id IS NULL", id, enums.OrderStatusPaymentAuthorized).
		Updates(map[string]any{
			"agent_id": agentID,
			"status":   enums.OrderStatusAwaitingAssessment,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
