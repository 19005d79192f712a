package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
)

// ScheduleRepository implements repositories.ScheduleRepository
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new ScheduleRepository
func NewScheduleRepository(db *sql.DB) repositories.ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetByDevice retrieves all schedule events for a device
func (r *ScheduleRepository) GetByDevice(ctx context.Context, deviceID int) ([]*models.ScheduleEvent, error) {
	query := `
		SELECT id, device_id, time, state
		FROM schedule_events
		WHERE device_id = ?
		ORDER BY time
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule events: %w", err)
	}
	defer rows.Close()

	return scanScheduleEvents(rows)
}

// GetAll retrieves every schedule event
func (r *ScheduleRepository) GetAll(ctx context.Context) ([]*models.ScheduleEvent, error) {
	query := `
		SELECT id, device_id, time, state
		FROM schedule_events
		ORDER BY device_id, time
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule events: %w", err)
	}
	defer rows.Close()

	return scanScheduleEvents(rows)
}

// Replace swaps a device's full event list in one transaction.
// Saving a schedule is always a full rewrite, matching the evaluator's
// full-reload policy.
func (r *ScheduleRepository) Replace(ctx context.Context, deviceID int, events []*models.ScheduleEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_events WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("failed to clear schedule events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO schedule_events (device_id, time, state) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		if _, err := stmt.ExecContext(ctx, deviceID, event.Time, event.State); err != nil {
			return fmt.Errorf("failed to insert schedule event %s: %w", event.Time, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule: %w", err)
	}

	return nil
}

func scanScheduleEvents(rows *sql.Rows) ([]*models.ScheduleEvent, error) {
	var events []*models.ScheduleEvent
	for rows.Next() {
		event := &models.ScheduleEvent{}
		if err := rows.Scan(&event.ID, &event.DeviceID, &event.Time, &event.State); err != nil {
			return nil, fmt.Errorf("failed to scan schedule event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
