package processor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/finance-tracker/internal/model"
	"github.com/nimasrn/finance-tracker/internal/queue"
	"github.com/nimasrn/finance-tracker/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu     sync.Mutex
	months []string
	err    error
}

func (f *fakeRefresher) Refresh(ctx context.Context, month model.Month) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.months = append(f.months, month.String())
	return "text", f.err
}

func (f *fakeRefresher) refreshed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.months...)
}

func setupAdapter(t *testing.T) (redis.RedisAdapter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return adapter, mr
}

func eventMessage(t *testing.T, e *model.TransactionEvent) *queue.Message {
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data}
}

func TestRefreshProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the month and the next one once", func(t *testing.T) {
		adapter, mr := setupAdapter(t)
		refresher := &fakeRefresher{}
		p := NewRefreshProcessor(refresher, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))
		msg := eventMessage(t, &model.TransactionEvent{ID: "e-1", Type: model.EventTransactionCreated, Month: "2024-12"})

		require.NoError(t, p.Process(ctx, msg))
		assert.Equal(t, []string{"2024-12", "2025-01"}, refresher.refreshed())
		assert.True(t, mr.Exists("events:processed:e-1"))
		assert.False(t, mr.Exists("events:lock:e-1"))

		require.NoError(t, p.Process(ctx, msg))
		assert.Len(t, refresher.refreshed(), 2)
	})

	t.Run("undated event is acknowledged without work", func(t *testing.T) {
		adapter, _ := setupAdapter(t)
		refresher := &fakeRefresher{}
		p := NewRefreshProcessor(refresher, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

		require.NoError(t, p.Process(ctx, eventMessage(t, &model.TransactionEvent{ID: "e-2"})))
		assert.Empty(t, refresher.refreshed())
	})

	t.Run("malformed payload is returned as an error", func(t *testing.T) {
		adapter, _ := setupAdapter(t)
		p := NewRefreshProcessor(&fakeRefresher{}, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

		assert.Error(t, p.Process(ctx, &queue.Message{ID: "1-0", Data: []byte("{")}))
	})

	t.Run("refresh failure counts a retry and releases the lock", func(t *testing.T) {
		adapter, mr := setupAdapter(t)
		refresher := &fakeRefresher{err: errors.New("db down")}
		p := NewRefreshProcessor(refresher, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))
		msg := eventMessage(t, &model.TransactionEvent{ID: "e-3", Month: "2024-03"})

		assert.Error(t, p.Process(ctx, msg))
		retries, err := mr.Get("events:retry:e-3")
		require.NoError(t, err)
		assert.Equal(t, "1", retries)
		assert.False(t, mr.Exists("events:lock:e-3"))
		assert.False(t, mr.Exists("events:processed:e-3"))
	})
}

func TestProcessorService_EndToEnd(t *testing.T) {
	adapter, _ := setupAdapter(t)
	refresher := &fakeRefresher{}
	p := NewRefreshProcessor(refresher, NewIdempotencyService(adapter, DefaultIdempotencyConfig()))

	qc := queue.QueueConfig{
		Name:              "finance:tx-events",
		ConsumerGroup:     "insight-refreshers",
		ConsumerName:      "worker",
		MaxRetries:        3,
		VisibilityTimeout: time.Second,
		PollInterval:      20 * time.Millisecond,
		BatchSize:         10,
		EnableDLQ:         true,
	}
	svc, err := NewProcessorService(adapter, p, ServiceConfig{Queue: qc, Consumers: 2, Workers: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	publisher, err := queue.NewQueue(adapter, qc)
	require.NoError(t, err)
	defer publisher.Stop(time.Second)

	tx := &model.Transaction{ID: 9, Date: model.ParseDatePtr("2024-03-10")}
	_, err = publisher.PublishJSON(context.Background(), model.NewTransactionEvent(model.EventTransactionCreated, tx, time.Now()), nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(refresher.refreshed()) == 2
	}, 3*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{"2024-03", "2024-04"}, refresher.refreshed())

	svc.Stop()
	stats := svc.Metrics().Snapshot()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Zero(t, stats.Failed)
}

func TestNewProcessorService_RequiresProcessor(t *testing.T) {
	adapter, _ := setupAdapter(t)
	_, err := NewProcessorService(adapter, nil, ServiceConfig{})
	assert.Error(t, err)
}

func TestServiceMetrics(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)
	m.RecordFailure()

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Processed)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, 20*time.Millisecond, s.AvgDuration)
	assert.Equal(t, 30*time.Millisecond, s.MaxDuration)
	assert.Positive(t, s.RatePerSecond)
}
