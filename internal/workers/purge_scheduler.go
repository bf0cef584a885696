package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/storefront-dev/storefront/internal/tasks"
)

// Enqueuer is the part of the asynq client the scheduler needs
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PurgeScheduler enqueues a session:purge task each time the cron schedule is due
type PurgeScheduler struct {
	client   Enqueuer
	schedule cron.Schedule
	expr     string
	logger   zerolog.Logger
	next     time.Time
}

// NewPurgeScheduler parses the standard 5-field cron expression
func NewPurgeScheduler(client Enqueuer, expr string, logger zerolog.Logger) (*PurgeScheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", expr, err)
	}
	return &PurgeScheduler{
		client:   client,
		schedule: schedule,
		expr:     expr,
		logger:   logger,
	}, nil
}

// Next is the time of the next purge
func (p *PurgeScheduler) Next() time.Time {
	return p.next
}

// Tick enqueues the purge when it is due and moves on to the next run. The
// first tick only computes the next run.
func (p *PurgeScheduler) Tick(now time.Time) {
	if p.next.IsZero() {
		p.next = p.schedule.Next(now)
		p.logger.Info().
			Str("schedule", p.expr).
			Time("next_purge_at", p.next).
			Msg("Session purge scheduled")
		return
	}

	if now.Before(p.next) {
		return
	}

	task, err := tasks.NewPurgeSessionsTask(now)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to create purge task")
		return
	}

	// A failed enqueue is retried on the next tick
	if _, err := p.client.Enqueue(task, asynq.Queue("low"), asynq.Timeout(10*time.Minute), asynq.MaxRetry(3)); err != nil {
		p.logger.Error().Err(err).Msg("Failed to enqueue purge task")
		return
	}

	p.next = p.schedule.Next(now)
	p.logger.Info().
		Time("next_purge_at", p.next).
		Msg("Session purge task enqueued")
}

// Run checks the schedule every minute until ctx is done
func (p *PurgeScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	p.Tick(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.Tick(now)
		}
	}
}
