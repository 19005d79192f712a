package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
)

// TriggerRepository implements repositories.TriggerRepository
type TriggerRepository struct {
	db *sql.DB
}

// NewTriggerRepository creates a new TriggerRepository
func NewTriggerRepository(db *sql.DB) repositories.TriggerRepository {
	return &TriggerRepository{db: db}
}

// Create creates a new battery trigger
func (r *TriggerRepository) Create(ctx context.Context, trigger *models.BatteryTrigger) error {
	query := `
		INSERT INTO battery_triggers
			(user_id, integration_id, device_id, inverter_serial, threshold_pct, direction, action, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		trigger.UserID,
		trigger.IntegrationID,
		trigger.DeviceID,
		trigger.InverterSerial,
		trigger.ThresholdPct,
		trigger.Direction,
		trigger.Action,
		trigger.Enabled,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create battery trigger: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted trigger ID: %w", err)
	}

	trigger.ID = int(id)
	trigger.CreatedAt = now

	return nil
}

// GetByUser retrieves all battery triggers owned by a user
func (r *TriggerRepository) GetByUser(ctx context.Context, userID int) ([]*models.BatteryTrigger, error) {
	query := `
		SELECT id, user_id, integration_id, device_id, inverter_serial, threshold_pct, direction, action, enabled, created_at
		FROM battery_triggers
		WHERE user_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query battery triggers: %w", err)
	}
	defer rows.Close()

	return scanTriggers(rows)
}

// GetEnabledByIntegration retrieves enabled triggers for one integration
func (r *TriggerRepository) GetEnabledByIntegration(ctx context.Context, integrationID int) ([]*models.BatteryTrigger, error) {
	query := `
		SELECT id, user_id, integration_id, device_id, inverter_serial, threshold_pct, direction, action, enabled, created_at
		FROM battery_triggers
		WHERE integration_id = ? AND enabled = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query battery triggers: %w", err)
	}
	defer rows.Close()

	return scanTriggers(rows)
}

// Update updates an existing battery trigger
func (r *TriggerRepository) Update(ctx context.Context, trigger *models.BatteryTrigger) error {
	query := `
		UPDATE battery_triggers
		SET device_id = ?, inverter_serial = ?, threshold_pct = ?, direction = ?, action = ?, enabled = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		trigger.DeviceID,
		trigger.InverterSerial,
		trigger.ThresholdPct,
		trigger.Direction,
		trigger.Action,
		trigger.Enabled,
		trigger.ID,
		trigger.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update battery trigger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("battery trigger %d not found for user %d", trigger.ID, trigger.UserID)
	}

	return nil
}

// Delete deletes a battery trigger owned by the given user
func (r *TriggerRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM battery_triggers WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete battery trigger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("battery trigger %d not found for user %d", id, userID)
	}

	return nil
}

func scanTriggers(rows *sql.Rows) ([]*models.BatteryTrigger, error) {
	var triggers []*models.BatteryTrigger
	for rows.Next() {
		trigger := &models.BatteryTrigger{}
		err := rows.Scan(
			&trigger.ID,
			&trigger.UserID,
			&trigger.IntegrationID,
			&trigger.DeviceID,
			&trigger.InverterSerial,
			&trigger.ThresholdPct,
			&trigger.Direction,
			&trigger.Action,
			&trigger.Enabled,
			&trigger.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battery trigger: %w", err)
		}
		triggers = append(triggers, trigger)
	}
	return triggers, rows.Err()
}
