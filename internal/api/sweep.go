package api

import (
	"context"
	"time"

	"github.com/hirehub/hirehub-core/internal/auth"
)

// sweepLoop periodically expires stale sessions and purges expired token
// rows until ctx is cancelled.
func (s *Server) sweepLoop(ctx context.Context) {
	interval := time.Duration(s.secCfg.Session.SweepInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute //nolint:mnd // default sweep interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one pass. Sessions whose token expired are logged out (and
// their subscribers notified) by the manager; logged-out sessions nobody
// watches are forgotten.
func (s *Server) sweep(ctx context.Context) {
	dropped := s.sessions.Sweep(ctx)

	var purged int64
	if s.db != nil {
		n, err := auth.DeleteExpired(ctx, s.db, s.now())
		if err != nil {
			s.logger.Warn("purging expired session tokens failed", "error", err)
		}
		purged = n
	}

	if dropped > 0 || purged > 0 {
		s.logger.Debug("session sweep", "sessions_dropped", dropped, "tokens_purged", purged)
	}
}
