package recurring

import (
	"context"
	"time"

	"github.com/cleared-dev/pocketledger/internal/log"
)

// Run calls ProcessDue once at startup and then every interval until ctx
// is cancelled. It always returns nil; per-run failures are logged.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	s.logger.InfoContext(ctx, "recurring worker started", "interval", interval.String())

	s.runOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "recurring worker stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.ProcessDue(ctx, s.now()); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "recurring run failed", log.FieldError, err)
	}
}
