package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/storefront-dev/storefront/internal/session"
	"github.com/storefront-dev/storefront/internal/tasks"
)

// HandlePurgeSessions deletes visitor sessions that have expired
func HandlePurgeSessions(ctx context.Context, t *asynq.Task, manager *session.Manager, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	var removed int64
	if payload.Before.IsZero() {
		removed, err = manager.Purge(ctx)
	} else {
		removed, err = manager.PurgeBefore(ctx, payload.Before)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to purge expired sessions")
		return err
	}

	logger.Info().
		Int64("removed", removed).
		Msg("Expired sessions purged")

	return nil
}
