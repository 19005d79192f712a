package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
)

// DeviceRepository implements repositories.DeviceRepository
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *sql.DB) repositories.DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create creates a new device
func (r *DeviceRepository) Create(ctx context.Context, device *models.Device) error {
	if device.Timezone == "" {
		device.Timezone = "UTC"
	}

	query := `
		INSERT INTO devices (user_id, name, timezone, created_at)
		VALUES (?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, device.UserID, device.Name, device.Timezone, now)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted device ID: %w", err)
	}

	device.ID = int(id)
	device.CreatedAt = now

	return nil
}

// GetByID retrieves a device by ID
func (r *DeviceRepository) GetByID(ctx context.Context, id int) (*models.Device, error) {
	query := `
		SELECT id, user_id, name, timezone, created_at
		FROM devices
		WHERE id = ?
	`

	device := &models.Device{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.Timezone,
		&device.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device not found with ID: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// GetOwned retrieves a device only when it belongs to the given user
func (r *DeviceRepository) GetOwned(ctx context.Context, id, userID int) (*models.Device, error) {
	query := `
		SELECT id, user_id, name, timezone, created_at
		FROM devices
		WHERE id = ? AND user_id = ?
	`

	device := &models.Device{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.Timezone,
		&device.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device %d not found for user %d", id, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// GetByUser retrieves all devices owned by a user
func (r *DeviceRepository) GetByUser(ctx context.Context, userID int) ([]*models.Device, error) {
	query := `
		SELECT id, user_id, name, timezone, created_at
		FROM devices
		WHERE user_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// GetAll retrieves every device
func (r *DeviceRepository) GetAll(ctx context.Context) ([]*models.Device, error) {
	query := `
		SELECT id, user_id, name, timezone, created_at
		FROM devices
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	return scanDevices(rows)
}

// UpdateTimezone updates a device's timezone
func (r *DeviceRepository) UpdateTimezone(ctx context.Context, id int, timezone string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE devices SET timezone = ? WHERE id = ?`, timezone, id)
	if err != nil {
		return fmt.Errorf("failed to update device timezone: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device not found with ID: %d", id)
	}

	return nil
}

// Delete deletes a device owned by the given user; schedule events cascade
func (r *DeviceRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device %d not found for user %d", id, userID)
	}

	return nil
}

func scanDevices(rows *sql.Rows) ([]*models.Device, error) {
	var devices []*models.Device
	for rows.Next() {
		device := &models.Device{}
		if err := rows.Scan(&device.ID, &device.UserID, &device.Name, &device.Timezone, &device.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}
