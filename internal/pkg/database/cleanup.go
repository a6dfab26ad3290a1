package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultRetention = 8 * 24 * time.Hour

// Cleanup removes journal events older than retention.
func (db *Database) Cleanup(ctx context.Context, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetention
	}
	tag, err := db.pool.Exec(ctx, "DELETE FROM device_event WHERE time_stamp < $1", time.Now().Add(-retention))
	if err != nil {
		return err
	}
	zap.L().Info("cleaned up device events", zap.Int64("deleted", tag.RowsAffected()))
	return nil
}
