package database

import (
	"context"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

func (d *Database) Write(ctx context.Context, events model.DeviceEvents) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, event := range events {
		var command *int32
		if event.Command != nil {
			c := int32(*event.Command)
			command = &c
		}
		var result *string
		if event.Result != "" {
			result = &event.Result
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO device_event (id, kind, uid, system_id, component_id, command, result, time_stamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, event.ID, event.Kind.String(), int64(event.UID), int16(event.SystemID), int16(event.ComponentID), command, result, event.Timestamp); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
