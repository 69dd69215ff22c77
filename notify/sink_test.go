package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"Gin_postgres_redis_library/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	rows []models.Notification
	fail error
}

func (s *fakeStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.rows = append(s.rows, *n)
	return nil
}

type fakeOutbox struct {
	queue []models.Notification
	fail  error
}

func (o *fakeOutbox) Push(_ context.Context, n models.Notification) error {
	if o.fail != nil {
		return o.fail
	}
	o.queue = append(o.queue, n)
	return nil
}

func (o *fakeOutbox) Pop(context.Context) (*models.Notification, error) {
	if len(o.queue) == 0 {
		return nil, nil
	}
	n := o.queue[0]
	o.queue = o.queue[1:]
	return &n, nil
}

type fakePublisher struct {
	published []models.Notification
	fail      error
}

func (p *fakePublisher) Publish(_ context.Context, n models.Notification) error {
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, n)
	return nil
}

func Test_Sink_Enqueue_StoresUnreadAndPublishes(t *testing.T) {
	// arrange
	store, outbox, pub := &fakeStore{}, &fakeOutbox{}, &fakePublisher{}
	sink := NewSink(store, outbox, pub, nil)

	// act
	err := sink.Enqueue(context.Background(), "u-1", "Your return of 'Dune' has been recorded. Thank you!")

	// assert
	require.NoError(t, err)
	require.Len(t, store.rows, 1)
	assert.Equal(t, "u-1", store.rows[0].UserID)
	assert.False(t, store.rows[0].IsRead)
	assert.NotEmpty(t, store.rows[0].ID)
	require.Len(t, pub.published, 1)
	assert.Equal(t, store.rows[0].ID, pub.published[0].ID)
	assert.Empty(t, outbox.queue)
}

func Test_Sink_Enqueue_PublishFailureIsIgnored(t *testing.T) {
	// arrange
	store := &fakeStore{}
	sink := NewSink(store, &fakeOutbox{}, &fakePublisher{fail: errors.New("redis down")}, nil)

	// act
	err := sink.Enqueue(context.Background(), "u-1", "hello")

	// assert
	assert.NoError(t, err)
	assert.Len(t, store.rows, 1)
}

func Test_Sink_Enqueue_ParksWhenStoreFails(t *testing.T) {
	// arrange
	store, outbox, pub := &fakeStore{fail: errors.New("db down")}, &fakeOutbox{}, &fakePublisher{}
	sink := NewSink(store, outbox, pub, nil)

	// act
	err := sink.Enqueue(context.Background(), "u-1", "hello")

	// assert
	assert.NoError(t, err)
	require.Len(t, outbox.queue, 1)
	assert.Equal(t, "hello", outbox.queue[0].Message)
	assert.Empty(t, pub.published)
}

func Test_Sink_Enqueue_FailsWhenNothingAccepts(t *testing.T) {
	// arrange
	sink := NewSink(&fakeStore{fail: errors.New("db down")}, &fakeOutbox{fail: errors.New("redis down")}, nil, nil)

	// act
	err := sink.Enqueue(context.Background(), "u-1", "hello")

	// assert
	assert.ErrorIs(t, err, ErrUndeliverable)
	assert.ErrorContains(t, err, "db down")
	assert.ErrorContains(t, err, "redis down")
}

func Test_Sink_Drain_ReplaysParkedMessages(t *testing.T) {
	// arrange
	store, outbox, pub := &fakeStore{fail: errors.New("db down")}, &fakeOutbox{}, &fakePublisher{}
	sink := NewSink(store, outbox, pub, nil)
	require.NoError(t, sink.Enqueue(context.Background(), "u-1", "first"))
	require.NoError(t, sink.Enqueue(context.Background(), "u-2", "second"))
	store.fail = nil

	// act
	n, err := sink.Drain(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.rows, 2)
	assert.Equal(t, "first", store.rows[0].Message)
	assert.Equal(t, "second", store.rows[1].Message)
	assert.Len(t, pub.published, 2)
	assert.Empty(t, outbox.queue)
}

func Test_Sink_Drain_StopsAndRequeuesOnFailure(t *testing.T) {
	// arrange
	store, outbox := &fakeStore{fail: errors.New("db down")}, &fakeOutbox{}
	sink := NewSink(store, outbox, nil, nil)
	require.NoError(t, sink.Enqueue(context.Background(), "u-1", "first"))

	// act
	n, err := sink.Drain(context.Background())

	// assert
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, outbox.queue, 1)
}
