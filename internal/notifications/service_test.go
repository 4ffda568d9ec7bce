package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
)

type stubNotificationsRepo struct {
	created   []models.Notification
	createErr func(note *models.Notification) error
	markFound bool
	markedAll int64
}

func (s *stubNotificationsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubNotificationsRepo) Create(ctx context.Context, note *models.Notification) error {
	if s.createErr != nil {
		if err := s.createErr(note); err != nil {
			return err
		}
	}
	s.created = append(s.created, *note)
	return nil
}

func (s *stubNotificationsRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	return s.created, nil, nil
}

func (s *stubNotificationsRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	return notificationMarkResult{Updated: s.markFound, Found: s.markFound}, nil
}

func (s *stubNotificationsRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return s.markedAll, nil
}

func TestServiceListRequiresUser(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServiceListRejectsBadCursor(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "not-base64!"})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestServiceMarkReadNotFound(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{markFound: false})
	require.NoError(t, err)

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceMarkAllReadCount(t *testing.T) {
	svc, err := NewService(&stubNotificationsRepo{markedAll: 4})
	require.NoError(t, err)

	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestDispatcherNotifyAllKeepsGoing(t *testing.T) {
	badUser := uuid.New()
	repo := &stubNotificationsRepo{
		createErr: func(note *models.Notification) error {
			if note.UserID == badUser {
				return errors.New("connection reset")
			}
			return nil
		},
	}
	dispatcher, err := NewDispatcher(repo, nil)
	require.NoError(t, err)

	goodUser := uuid.New()
	err = dispatcher.NotifyAll(context.Background(), []Note{
		{UserID: badUser, Type: enums.NotificationTypeOrderAlert, Title: "Order update", Message: "m"},
		{UserID: goodUser, Type: enums.NotificationTypeOrderAlert, Title: "Order update", Message: "m"},
	})
	require.Error(t, err)

	require.Len(t, repo.created, 1)
	require.Equal(t, goodUser, repo.created[0].UserID)
}

func TestDispatcherRejectsInvalidType(t *testing.T) {
	dispatcher, err := NewDispatcher(&stubNotificationsRepo{}, nil)
	require.NoError(t, err)

	err = dispatcher.Notify(context.Background(), Note{UserID: uuid.New(), Type: "carrier_pigeon"})
	require.Error(t, err)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
