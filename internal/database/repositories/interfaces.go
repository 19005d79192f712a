package repositories

import (
	"context"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
)

// UserRepository defines user data access operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

// DeviceRepository defines device data access operations
type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id int) (*models.Device, error)
	GetByUser(ctx context.Context, userID int) ([]*models.Device, error)
	GetAll(ctx context.Context) ([]*models.Device, error)
	GetOwned(ctx context.Context, id, userID int) (*models.Device, error)
	UpdateTimezone(ctx context.Context, id int, timezone string) error
	Delete(ctx context.Context, id, userID int) error
}

// ScheduleRepository defines schedule event data access operations
type ScheduleRepository interface {
	GetByDevice(ctx context.Context, deviceID int) ([]*models.ScheduleEvent, error)
	// Replace swaps a device's full event list in one transaction
	Replace(ctx context.Context, deviceID int, events []*models.ScheduleEvent) error
	GetAll(ctx context.Context) ([]*models.ScheduleEvent, error)
}

// IntegrationRepository defines integration data access operations
type IntegrationRepository interface {
	Create(ctx context.Context, integration *models.Integration) error
	GetByID(ctx context.Context, id, userID int) (*models.Integration, error)
	GetByUser(ctx context.Context, userID int) ([]*models.Integration, error)
	GetActive(ctx context.Context) ([]*models.Integration, error)
	Update(ctx context.Context, integration *models.Integration) error
	SetActive(ctx context.Context, id, userID int, active bool) error
	Delete(ctx context.Context, id, userID int) error
}

// TriggerRepository defines battery trigger data access operations
type TriggerRepository interface {
	Create(ctx context.Context, trigger *models.BatteryTrigger) error
	GetByUser(ctx context.Context, userID int) ([]*models.BatteryTrigger, error)
	GetEnabledByIntegration(ctx context.Context, integrationID int) ([]*models.BatteryTrigger, error)
	Update(ctx context.Context, trigger *models.BatteryTrigger) error
	Delete(ctx context.Context, id, userID int) error
}
