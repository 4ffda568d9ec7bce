package main

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	"github.com/emekandu/kasuwa-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubPubSub struct{ err error }

func (s stubPubSub) Ping(context.Context) error            { return s.err }
func (s stubPubSub) DomainPublisher() *gcppubsub.Publisher { return nil }

type stubRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (r *stubRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if len(r.events) > limit {
		return r.events[:limit], nil
	}
	return r.events, nil
}

func (r *stubRepo) MarkPublished(id uuid.UUID) error {
	r.published = append(r.published, id)
	return nil
}

func (r *stubRepo) MarkFailed(id uuid.UUID, err error) error {
	r.failed = append(r.failed, id)
	return nil
}

type stubResult struct {
	id  string
	err error
}

func (r stubResult) Get(context.Context) (string, error) { return r.id, r.err }

type stubPublisher struct {
	results   map[string]error
	published []string
}

func (p *stubPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	aggregateID := msg.Attributes["aggregate_id"]
	p.published = append(p.published, aggregateID)
	if err, ok := p.results[aggregateID]; ok && err != nil {
		return stubResult{err: err}
	}
	return stubResult{id: "server-id"}
}

func outboxEvent(aggregateID uuid.UUID) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentAuthorized,
		AggregateType: enums.AggregateOrder,
		AggregateID:   aggregateID,
		Payload:       []byte(`{"version":1}`),
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestService(t *testing.T, repo *stubRepo, pub *stubPublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test"}),
		DB:         stubPinger{},
		PubSub:     stubPubSub{},
		Repository: repo,
		Publisher:  pub,
	})
	require.NoError(t, err)
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	first := outboxEvent(uuid.New())
	second := outboxEvent(uuid.New())
	repo := &stubRepo{events: []models.OutboxEvent{first, second}}
	pub := &stubPublisher{}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{first.ID, second.ID}, repo.published)
	require.Empty(t, repo.failed)
	require.Len(t, pub.published, 2)
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	bad := outboxEvent(uuid.New())
	good := outboxEvent(uuid.New())
	repo := &stubRepo{events: []models.OutboxEvent{bad, good}}
	pub := &stubPublisher{results: map[string]error{
		bad.AggregateID.String(): errors.New("topic unavailable"),
	}}
	svc := newTestService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{bad.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{good.ID}, repo.published)
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubPublisher{})

	processed, err := svc.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubPublisher{})
	require.Equal(t, defaultBatchSize, svc.batchSize)
	require.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	require.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, svc.pollInterval)
}
