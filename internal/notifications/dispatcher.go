package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/logger"
)

// Note is one in-app notification addressed to a single user.
type Note struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

// Dispatcher persists in-app notifications. Callers invoke it after their
// transaction commits; a failed delivery is logged and never propagated to
// the request that triggered it.
type Dispatcher struct {
	repo Repository
	logg *logger.Logger
}

// NewDispatcher wires a notification dispatcher.
func NewDispatcher(repo Repository, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &Dispatcher{repo: repo, logg: logg}, nil
}

// Notify stores a single notification.
func (d *Dispatcher) Notify(ctx context.Context, note Note) error {
	if note.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification recipient required")
	}
	if !note.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}

	row := &models.Notification{
		UserID:  note.UserID,
		Type:    note.Type,
		Title:   note.Title,
		Message: note.Message,
		Link:    note.Link,
	}
	if err := d.repo.Create(ctx, row); err != nil {
		if d.logg != nil {
			d.logg.Error(ctx, "notification delivery failed", err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

// NotifyAll attempts delivery to every recipient and aggregates failures.
// One bad recipient never blocks the rest.
func (d *Dispatcher) NotifyAll(ctx context.Context, notes []Note) error {
	var errs []error
	for _, note := range notes {
		if err := d.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}
