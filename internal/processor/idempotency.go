package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/redis"
)

var (
	ErrAlreadyProcessed  = errors.New("message already processed")
	ErrLockAcquireFailed = errors.New("failed to acquire processing lock")
)

type IdempotencyConfig struct {
	// LockTTL bounds how long a crashed worker can block a message.
	LockTTL time.Duration

	ProcessedTTL time.Duration

	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		LockKeyPrefix:      "mail:lock:",
		ProcessedKeyPrefix: "mail:processed:",
	}
}

// IdempotencyService keeps a job from being delivered twice: a short lock
// while it is in flight and a long lived marker once it succeeded.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	JobID        string
	lockAcquired bool
}

func (s *IdempotencyService) lockKey(jobID string) string {
	return s.config.LockKeyPrefix + jobID
}

func (s *IdempotencyService) processedKey(jobID string) string {
	return s.config.ProcessedKeyPrefix + jobID
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, jobID string) (*ProcessingContext, error) {
	done, err := s.redis.Exist(ctx, s.processedKey(jobID))
	if err != nil {
		// a duplicate mail is preferable to a lost one
		logger.Warn("failed to check processed marker", "job_id", jobID, "error", err)
	} else if done {
		return nil, ErrAlreadyProcessed
	}

	value := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.lockKey(jobID), value, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "job_id", jobID, "lock_ttl", s.config.LockTTL)
	return &ProcessingContext{JobID: jobID, lockAcquired: true}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.processedKey(pc.JobID), []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	return s.ReleaseLock(ctx, pc)
}

// MarkFailure releases the lock so the next delivery can retry.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	logger.Warn("job processing failed, will retry", "job_id", pc.JobID, "reason", reason)
	return s.ReleaseLock(ctx, pc)
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	if err := s.redis.Del(context.WithoutCancel(ctx), s.lockKey(pc.JobID)); err != nil {
		logger.Warn("failed to release lock", "job_id", pc.JobID, "error", err)
		return err
	}
	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, jobID string) (bool, error) {
	return s.redis.Exist(ctx, s.processedKey(jobID))
}
