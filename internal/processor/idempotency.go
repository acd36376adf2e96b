package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/conciliai/reconcile-gateway/pkg/logger"
	"github.com/conciliai/reconcile-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("attempt already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire attempt lock")
	ErrMaxRetriesExceeded = errors.New("maximum delivery retries exceeded")
)

// IdempotencyConfig tunes the Redis keys that guard extraction attempts
// against duplicate stream deliveries.
type IdempotencyConfig struct {
	// LockTTL bounds how long one consumer may hold an attempt. It must
	// exceed the worst-case extraction time or a second consumer can start
	// the same attempt mid-flight.
	LockTTL time.Duration

	// ProcessedTTL is how long a finished attempt stays marked. Redeliveries
	// inside this window are acked without touching the database.
	ProcessedTTL time.Duration

	// MaxRetries caps failed deliveries per attempt before it is parked.
	MaxRetries int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "extract:retry:",
		LockKeyPrefix:      "extract:lock:",
		ProcessedKeyPrefix: "extract:done:",
	}
}

// IdempotencyService makes attempt processing exactly-once-ish: a SetNX lock
// keeps two consumers off the same attempt, and a processed marker absorbs
// stream redeliveries after the attempt already ingested or failed.
//
// The credit ledger does not rely on this service for correctness. The state
// machine's guarded transitions are the authority; this layer only avoids
// wasted extraction calls.
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

// ProcessingContext is the held lock for one attempt delivery.
type ProcessingContext struct {
	AttemptID    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

func (s *IdempotencyService) retryKey(attemptID string) string {
	return s.config.RetryKeyPrefix + attemptID
}

func (s *IdempotencyService) lockKey(attemptID string) string {
	return s.config.LockKeyPrefix + attemptID
}

func (s *IdempotencyService) processedKey(attemptID string) string {
	return s.config.ProcessedKeyPrefix + attemptID
}

// AcquireProcessingLock claims an attempt for this consumer. It refuses
// attempts that already finished, attempts past the retry budget, and
// attempts another consumer currently holds.
func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, attemptID string) (*ProcessingContext, error) {
	exists, err := s.redis.Exist(s.processedKey(attemptID))
	if err != nil {
		// A failed read must not stall the stream; a duplicate extraction is
		// recoverable, a stuck attempt is not.
		logger.Warn("processed-marker check failed", "attempt_id", attemptID, "error", err)
	} else if exists > 0 {
		logger.Info("attempt already processed, acking redelivery", "attempt_id", attemptID)
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, attemptID)
	if err != nil {
		logger.Warn("retry-counter read failed", "attempt_id", attemptID, "error", err)
		retryCount = 0
	}
	if retryCount >= s.config.MaxRetries {
		logger.Error("attempt exhausted its delivery retries", "attempt_id", attemptID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: attempt_id=%s, retries=%d", ErrMaxRetriesExceeded, attemptID, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(s.lockKey(attemptID), lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("attempt lock write failed", "attempt_id", attemptID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Info("attempt lock held by another consumer", "attempt_id", attemptID)
		return nil, ErrLockAcquireFailed
	}

	logger.Info("attempt lock acquired",
		"attempt_id", attemptID,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &ProcessingContext{
		AttemptID:    attemptID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

// MarkSuccess records the attempt as finished and drops its lock and retry
// counter. Redeliveries within ProcessedTTL are then acked up front.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(s.processedKey(pc.AttemptID), []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("processed-marker write failed", "attempt_id", pc.AttemptID, "error", err)
		return fmt.Errorf("failed to mark attempt processed: %w", err)
	}

	s.cleanup(pc)

	logger.Info("attempt marked processed",
		"attempt_id", pc.AttemptID,
		"retry_count", pc.RetryCount)
	return nil
}

// MarkFailure bumps the retry counter and releases the lock so the stream can
// redeliver the attempt to any consumer.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	newRetryCount := pc.RetryCount + 1
	retryValue := []byte(strconv.Itoa(newRetryCount))

	// The counter outlives the lock so retries accumulate across deliveries.
	if err := s.redis.Set(s.retryKey(pc.AttemptID), retryValue, s.config.ProcessedTTL); err != nil {
		logger.Error("retry-counter write failed", "attempt_id", pc.AttemptID, "error", err)
	}

	if err := s.redis.Del(s.lockKey(pc.AttemptID)); err != nil {
		logger.Warn("attempt lock removal failed", "attempt_id", pc.AttemptID, "error", err)
	}

	logger.Warn("attempt processing failed, eligible for redelivery",
		"attempt_id", pc.AttemptID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return nil
}

// ReleaseLock frees the attempt without recording an outcome, used when the
// consumer bails out before reaching a terminal state.
func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}

	if err := s.redis.Del(s.lockKey(pc.AttemptID)); err != nil {
		logger.Warn("attempt lock release failed", "attempt_id", pc.AttemptID, "error", err)
		return err
	}

	pc.lockAcquired = false
	logger.Debug("attempt lock released", "attempt_id", pc.AttemptID)
	return nil
}

func (s *IdempotencyService) cleanup(pc *ProcessingContext) {
	if err := s.redis.Del(s.lockKey(pc.AttemptID)); err != nil {
		logger.Warn("attempt lock cleanup failed", "attempt_id", pc.AttemptID, "error", err)
	}
	if err := s.redis.Del(s.retryKey(pc.AttemptID)); err != nil {
		logger.Warn("retry-counter cleanup failed", "attempt_id", pc.AttemptID, "error", err)
	}
	pc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, attemptID string) (int, error) {
	raw, err := s.redis.Get(s.retryKey(attemptID))
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}

	retryCount, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, nil
	}
	return retryCount, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, attemptID string) (bool, error) {
	exists, err := s.redis.Exist(s.processedKey(attemptID))
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
