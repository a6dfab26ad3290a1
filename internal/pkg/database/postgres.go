package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anicoll/dronelink/internal/pkg/model"
)

const defaultEventWindow = 48 * time.Hour

type Database struct {
	pool *pgxpool.Pool
}

func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{
		pool: pool,
	}
}

// Connect opens a pool against dsn and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewDatabase(pool), nil
}

func (db *Database) Close() error {
	if db.pool == nil {
		return nil
	}
	db.pool.Close()
	return nil
}

// GetEvents returns the journal of one device between from and to, newest first.
// A missing to means now and a missing from means two days before to.
func (db *Database) GetEvents(ctx context.Context, uid uint64, from, to *time.Time) (model.DeviceEvents, error) {
	start, end := eventRange(from, to, time.Now())
	const query = `
	SELECT id, kind, uid, system_id, component_id, command, result, time_stamp
	FROM device_event
	WHERE uid = $1 AND time_stamp BETWEEN $2 AND $3
	ORDER BY time_stamp DESC;
	`

	rows, err := db.pool.Query(ctx, query, int64(uid), start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) (model.DeviceEvents, error) {
	var events model.DeviceEvents
	for rows.Next() {
		var (
			event       model.DeviceEvent
			kind        string
			uid         int64
			systemID    int16
			componentID int16
			command     *int32
			result      *string
		)
		if err := rows.Scan(&event.ID, &kind, &uid, &systemID, &componentID, &command, &result, &event.Timestamp); err != nil {
			return nil, err
		}
		event.Kind = model.EventKind(kind)
		event.UID = uint64(uid)
		event.SystemID = uint8(systemID)
		event.ComponentID = uint8(componentID)
		if command != nil {
			cmd := model.Command(*command)
			event.Command = &cmd
		}
		if result != nil {
			event.Result = *result
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		if err == pgx.ErrNoRows {
			return events, nil
		}
		return nil, err
	}

	return events, nil
}

func eventRange(from, to *time.Time, now time.Time) (time.Time, time.Time) {
	end := now
	if to != nil {
		end = *to
	}
	start := end.Add(-defaultEventWindow)
	if from != nil {
		start = *from
	}
	return start, end
}
