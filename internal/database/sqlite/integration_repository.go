package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
)

// IntegrationRepository implements repositories.IntegrationRepository
type IntegrationRepository struct {
	db *sql.DB
}

// NewIntegrationRepository creates a new IntegrationRepository
func NewIntegrationRepository(db *sql.DB) repositories.IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// Create creates a new integration
func (r *IntegrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	query := `
		INSERT INTO integrations (user_id, integration_type, name, settings_json, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		integration.UserID,
		integration.Type,
		integration.Name,
		string(integration.SettingsJSON),
		integration.IsActive,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create integration: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted integration ID: %w", err)
	}

	integration.ID = int(id)
	integration.CreatedAt = now

	return nil
}

// GetByID retrieves an integration owned by the given user
func (r *IntegrationRepository) GetByID(ctx context.Context, id, userID int) (*models.Integration, error) {
	query := `
		SELECT id, user_id, integration_type, name, settings_json, is_active, created_at
		FROM integrations
		WHERE id = ? AND user_id = ?
	`

	integration, err := scanIntegration(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("integration %d not found for user %d", id, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	return integration, nil
}

// GetByUser retrieves all integrations owned by a user
func (r *IntegrationRepository) GetByUser(ctx context.Context, userID int) ([]*models.Integration, error) {
	query := `
		SELECT id, user_id, integration_type, name, settings_json, is_active, created_at
		FROM integrations
		WHERE user_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	return scanIntegrations(rows)
}

// GetActive retrieves all active integrations across users,
// used by the background refresher
func (r *IntegrationRepository) GetActive(ctx context.Context) ([]*models.Integration, error) {
	query := `
		SELECT id, user_id, integration_type, name, settings_json, is_active, created_at
		FROM integrations
		WHERE is_active = 1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active integrations: %w", err)
	}
	defer rows.Close()

	return scanIntegrations(rows)
}

// Update updates an integration's name, type and settings
func (r *IntegrationRepository) Update(ctx context.Context, integration *models.Integration) error {
	query := `
		UPDATE integrations
		SET name = ?, integration_type = ?, settings_json = ?
		WHERE id = ? AND user_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		integration.Name,
		integration.Type,
		string(integration.SettingsJSON),
		integration.ID,
		integration.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("integration %d not found for user %d", integration.ID, integration.UserID)
	}

	return nil
}

// SetActive toggles an integration's active flag
func (r *IntegrationRepository) SetActive(ctx context.Context, id, userID int, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE integrations SET is_active = ? WHERE id = ? AND user_id = ?`,
		active, id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set integration active flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("integration %d not found for user %d", id, userID)
	}

	return nil
}

// Delete deletes an integration owned by the given user
func (r *IntegrationRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM integrations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("integration %d not found for user %d", id, userID)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntegration(row rowScanner) (*models.Integration, error) {
	integration := &models.Integration{}
	var settings string
	err := row.Scan(
		&integration.ID,
		&integration.UserID,
		&integration.Type,
		&integration.Name,
		&settings,
		&integration.IsActive,
		&integration.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	integration.SettingsJSON = []byte(settings)
	return integration, nil
}

func scanIntegrations(rows *sql.Rows) ([]*models.Integration, error) {
	var integrations []*models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}
