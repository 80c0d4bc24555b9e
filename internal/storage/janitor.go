package storage

import (
	"context"
	"time"

	"classportal/internal/logger"
	"classportal/internal/queue"
)

// Handlers returns the queue handlers that release blobs of deleted records.
func Handlers(s *Service) map[string]queue.HandlerFunc {
	return map[string]queue.HandlerFunc{
		queue.TypeStorageRelease: func(ctx context.Context, msg queue.Message) error {
			return s.Release(ctx, string(msg.Body))
		},
	}
}

// SweepEvery deletes orphaned uploads older than olderThan on every tick until ctx is done.
func (s *Service) SweepEvery(ctx context.Context, every, olderThan time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOrphans(ctx, olderThan)
			if err != nil {
				logger.Warn().Err(err).Msg("sweep failed")
				continue
			}
			if n > 0 {
				logger.Info().Int("removed", n).Msg("swept orphaned uploads")
			}
		}
	}
}
