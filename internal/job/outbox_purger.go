package job

import (
	"context"
	"fmt"
	"time"

	"atmservice/internal/clock"
	"atmservice/internal/repository"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OutboxPurger deletes SENT outbox messages older than the retention window
// on a cron schedule.
type OutboxPurger struct {
	outboxRepo repository.OutboxRepository
	clock      clock.Clock
	retention  time.Duration
	logger     *zap.Logger
	cron       *cron.Cron
}

// NewOutboxPurger accepts standard five-field schedules and descriptors such as
// "@daily" or "@every 1h".
func NewOutboxPurger(outboxRepo repository.OutboxRepository, clk clock.Clock, schedule string,
	retention time.Duration, logger *zap.Logger) (*OutboxPurger, error) {
	p := &OutboxPurger{
		outboxRepo: outboxRepo,
		clock:      clk,
		retention:  retention,
		logger:     logger.With(zap.String("component", "outbox_purger")),
		cron:       cron.New(cron.WithLocation(time.UTC)),
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.Purge(context.Background()) }); err != nil {
		return nil, fmt.Errorf("outbox purge schedule %q: %w", schedule, err)
	}
	return p, nil
}

func (p *OutboxPurger) Start() {
	p.cron.Start()
	p.logger.Info("outbox purger started", zap.Duration("retention", p.retention))
}

// Stop waits for a running purge to finish or ctx to expire.
func (p *OutboxPurger) Stop(ctx context.Context) {
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (p *OutboxPurger) Purge(ctx context.Context) int64 {
	before := p.clock.Now().Add(-p.retention)
	n, err := p.outboxRepo.PurgeSent(ctx, before)
	if err != nil {
		p.logger.Error("purge sent outbox messages", zap.Error(err))
		return 0
	}
	if n > 0 {
		p.logger.Info("purged sent outbox messages", zap.Int64("count", n), zap.Time("before", before))
	}
	return n
}
