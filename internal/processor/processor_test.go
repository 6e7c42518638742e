package processor

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/expense-tracker/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorService_DeliversQueuedMail(t *testing.T) {
	_, adapter := setupTestRedis(t)
	m := &fakeMailer{}
	p := NewOTPMailProcessor(m, NewIdempotencyService(adapter, DefaultIdempotencyConfig()), OTPMailConfig{From: "no-reply@example.com"})

	qc := queue.QueueConfig{
		Name:              "mail:otp",
		ConsumerGroup:     "mailer",
		ConsumerName:      "test",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      20 * time.Millisecond,
		EnableDLQ:         true,
	}
	svc := NewProcessorService(adapter, p, ServiceConfig{Queue: qc, Consumers: 2, Workers: 2})
	require.NoError(t, svc.Start())

	publisher, err := queue.NewQueue(adapter, qc)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := publisher.PublishJSON(ctx, newOTPJob(time.Now()), nil)
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return len(m.Sent()) == 3 }, 3*time.Second, 20*time.Millisecond)

	svc.Stop()
	assert.Equal(t, int64(3), svc.Metrics().Processed)

	stats, err := publisher.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingMessages)
}

func TestServiceMetrics_Snapshot(t *testing.T) {
	m := NewServiceMetrics()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)
	m.RecordFailure()
	m.RecordSkipped()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(1), snap.Skipped)
	assert.Equal(t, 20*time.Millisecond, snap.AvgDuration)
}
