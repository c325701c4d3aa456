package job

import (
	"context"
	"sync"
	"time"

	"atmservice/internal/model"
	"atmservice/internal/repository"

	"go.uber.org/zap"
)

// Publisher delivers one outbox message to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key, payload string) error
}

// OutboxSender polls PENDING outbox messages and publishes them in id order.
// A message that keeps failing is marked FAILED after maxRetryCount attempts.
type OutboxSender struct {
	outboxRepo    repository.OutboxRepository
	publisher     Publisher
	logger        *zap.Logger
	interval      time.Duration
	batchSize     int
	maxRetryCount int
	stopCh        chan struct{}
	stopOnce      sync.Once
}

func NewOutboxSender(outboxRepo repository.OutboxRepository, publisher Publisher, logger *zap.Logger,
	interval time.Duration, batchSize, maxRetryCount int) *OutboxSender {
	return &OutboxSender{
		outboxRepo:    outboxRepo,
		publisher:     publisher,
		logger:        logger.With(zap.String("component", "outbox_sender")),
		interval:      interval,
		batchSize:     batchSize,
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("outbox sender started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox sender stopped: context done")
			return
		case <-s.stopCh:
			s.logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ProcessPending runs one polling round and returns how many messages were
// published.
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("load pending outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.send(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outboxRepo.MarkAsSent(ctx, msg.ID); err != nil {
			s.logger.Error("mark outbox message sent", zap.Int64("id", msg.ID), zap.Error(err))
			return false
		}
		s.logger.Debug("outbox message sent",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("event_type", msg.EventType))
		return true
	}

	s.logger.Warn("publish outbox message",
		zap.Int64("id", msg.ID),
		zap.Int("retry_count", msg.RetryCount),
		zap.Error(err))

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("increment outbox retry count", zap.Int64("id", msg.ID), zap.Error(err))
	}
	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("mark outbox message failed", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			s.logger.Error("outbox message gave up after max retries", zap.Int64("id", msg.ID))
		}
	}
	return false
}
