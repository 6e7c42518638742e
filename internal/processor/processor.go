package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/expense-tracker/internal/queue"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/prom"
	"github.com/nimasrn/expense-tracker/pkg/redis"
	"github.com/nimasrn/expense-tracker/pkg/worker"
)

const (
	DefaultProcessingTimeout = 10 * time.Second
	DefaultHealthInterval    = 30 * time.Second
	DefaultMetricsInterval   = 30 * time.Second
	ShutdownTimeout          = time.Minute

	// pending entries above this are reported as consumer lag
	lagWarningThreshold = 1000
)

// Processor handles the messages of one queue.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type ServiceConfig struct {
	Queue             queue.QueueConfig
	Consumers         int
	Workers           int
	BufferSize        int
	ProcessingTimeout time.Duration
	HealthInterval    time.Duration
	MetricsInterval   time.Duration
}

// ProcessorService runs queue consumers that hand messages to a worker pool.
// A consumer waits for its message's result so acknowledgement follows the
// outcome of processing.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	config    ServiceConfig
	processor Processor
	queues    []*queue.Queue
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager[*job]
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

type job struct {
	msg    *queue.Message
	result chan error
	ctx    context.Context
}

func NewProcessorService(adapter redis.RedisAdapter, processor Processor, config ServiceConfig) *ProcessorService {
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.BufferSize <= 0 {
		config.BufferSize = config.Workers * 10
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = DefaultProcessingTimeout
	}
	if config.HealthInterval <= 0 {
		config.HealthInterval = DefaultHealthInterval
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = DefaultMetricsInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ProcessorService{
		adapter:   adapter,
		config:    config,
		processor: processor,
		metrics:   NewServiceMetrics(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.worker = worker.NewWorkerManager(config.BufferSize, config.Workers, s.workerHandler)
	return s
}

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service", "type", s.processor.GetType(), "queue", s.config.Queue.Name)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker.Start(s.ctx)
	}()

	for i := 0; i < s.config.Consumers; i++ {
		qc := s.config.Queue
		qc.ConsumerName = fmt.Sprintf("%s-instance-%d", qc.ConsumerName, i)

		q, err := queue.NewQueue(s.adapter, qc)
		if err != nil {
			return fmt.Errorf("failed to create queue consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("failed to start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("processor service started", "consumers", len(s.queues), "workers", s.config.Workers)
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	snap := s.metrics.Snapshot()
	logger.Info("processor metrics",
		"processed", snap.Processed,
		"failed", snap.Failed,
		"skipped", snap.Skipped,
		"rate_per_second", snap.RatePerSecond,
		"avg_duration_ms", snap.AvgDuration.Milliseconds())

	name := s.config.Queue.Name
	prom.SetGaugeVec(prom.SystemQueue, prom.MetricWorkerBufferSize, float64(s.worker.GetUnreadCount()), name)

	if len(s.queues) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// every consumer shares the stream and group, one reading is enough
	if stats, err := s.queues[0].GetStats(ctx); err == nil {
		prom.SetGaugeVec(prom.SystemQueue, prom.MetricQueueDepth, float64(stats.TotalMessages), name)
		prom.SetGaugeVec(prom.SystemQueue, prom.MetricQueuePending, float64(stats.PendingMessages), name)
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}

	if len(s.queues) > 0 {
		stats, err := s.queues[0].GetStats(ctx)
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "error", err)
			return
		}
		if stats.PendingMessages > lagWarningThreshold {
			logger.Warn("health check: queue has high lag", "pending_messages", stats.PendingMessages)
		}
	}
	logger.Debug("health check ok")
}

// Stop drains consumers first, then the worker pool.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")

	var qwg sync.WaitGroup
	for i, q := range s.queues {
		qwg.Add(1)
		go func(index int, q *queue.Queue) {
			defer qwg.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("error stopping queue consumer", "consumer", index, "error", err)
			}
		}(i, q)
	}
	qwg.Wait()

	s.worker.Exit()
	s.cancel()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("processor service stopped")
}

func (s *ProcessorService) Metrics() Snapshot {
	return s.metrics.Snapshot()
}

// messageHandler runs on a consumer goroutine and blocks until a worker
// has processed msg.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.ProcessingTimeout)
	defer cancel()

	j := &job{msg: msg, result: make(chan error, 1), ctx: jobCtx}
	if err := s.worker.Enqueue(jobCtx, j); err != nil {
		return fmt.Errorf("enqueue to worker pool: %w", err)
	}

	select {
	case err := <-j.result:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout waiting for worker to process message: %w", jobCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(_ context.Context, workerIndex int, j *job) {
	if j.ctx.Err() != nil {
		logger.Warn("job expired before processing", "worker", workerIndex, "message_id", j.msg.ID)
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	switch {
	case err == nil:
		s.metrics.RecordSuccess(time.Since(start))
	case errors.Is(err, ErrSkipped):
		s.metrics.RecordSkipped()
		err = nil
	default:
		s.metrics.RecordFailure()
		logger.Error("failed to process message", "worker", workerIndex, "message_id", j.msg.ID, "attempt", j.msg.Attempts, "error", err)
	}

	// buffered, never blocks
	j.result <- err
}
