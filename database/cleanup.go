package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupAuditLog deletes audit rows older than the retention period.
// A retention of zero days keeps everything.
func CleanupAuditLog(ctx context.Context, s *Store, retentionDays int, now time.Time, logger *zap.Logger) {
	if retentionDays <= 0 {
		return
	}
	logger.Info("starting cleanup of old audit entries", zap.Int("retention_days", retentionDays))

	cutoff := now.AddDate(0, 0, -retentionDays)
	n, err := s.PruneAuditLog(ctx, cutoff)
	if err != nil {
		logger.Error("audit cleanup failed", zap.Error(err))
		return
	}

	logger.Info("finished cleanup of old audit entries", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
}
