package database

import (
	"database/sql"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/sqlite"
)

// Repositories holds all repository instances
type Repositories struct {
	User        repositories.UserRepository
	Device      repositories.DeviceRepository
	Schedule    repositories.ScheduleRepository
	Integration repositories.IntegrationRepository
	Trigger     repositories.TriggerRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		User:        sqlite.NewUserRepository(db),
		Device:      sqlite.NewDeviceRepository(db),
		Schedule:    sqlite.NewScheduleRepository(db),
		Integration: sqlite.NewIntegrationRepository(db),
		Trigger:     sqlite.NewTriggerRepository(db),
	}
}
