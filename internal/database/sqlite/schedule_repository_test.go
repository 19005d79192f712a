package sqlite

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		PRAGMA foreign_keys = ON;

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE schedule_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			time TEXT NOT NULL,
			state TEXT NOT NULL CHECK (state IN ('ON', 'OFF'))
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO users (username, password_hash) VALUES ('tester', 'x')`); err != nil {
		t.Fatalf("Failed to insert test user: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO devices (user_id, name, timezone) VALUES (1, 'pump', 'America/Cancun')`); err != nil {
		t.Fatalf("Failed to insert test device: %v", err)
	}

	return db
}

func TestScheduleRepository_ReplaceAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	events := []*models.ScheduleEvent{
		{DeviceID: 1, Time: "07:00", State: models.StateOn},
		{DeviceID: 1, Time: "22:00", State: models.StateOff},
	}
	if err := repo.Replace(ctx, 1, events); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	got, err := repo.GetByDevice(ctx, 1)
	if err != nil {
		t.Fatalf("GetByDevice failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Time != "07:00" || got[0].State != models.StateOn {
		t.Errorf("Unexpected first event: %+v", got[0])
	}
	if got[1].Time != "22:00" || got[1].State != models.StateOff {
		t.Errorf("Unexpected second event: %+v", got[1])
	}
}

func TestScheduleRepository_ReplaceIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	events := []*models.ScheduleEvent{
		{DeviceID: 1, Time: "07:00", State: models.StateOn},
	}

	// Saving the same schedule twice must not duplicate rows
	for i := 0; i < 2; i++ {
		if err := repo.Replace(ctx, 1, events); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
	}

	got, err := repo.GetByDevice(ctx, 1)
	if err != nil {
		t.Fatalf("GetByDevice failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 event after re-save, got %d", len(got))
	}
}

func TestScheduleRepository_ReplaceWithEmptyClears(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	if err := repo.Replace(ctx, 1, []*models.ScheduleEvent{
		{DeviceID: 1, Time: "07:00", State: models.StateOn},
	}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if err := repo.Replace(ctx, 1, nil); err != nil {
		t.Fatalf("Replace with empty list failed: %v", err)
	}

	got, err := repo.GetByDevice(ctx, 1)
	if err != nil {
		t.Fatalf("GetByDevice failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Expected no events, got %d", len(got))
	}
}

func TestScheduleRepository_GetAll(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScheduleRepository(db)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO devices (user_id, name) VALUES (1, 'heater')`); err != nil {
		t.Fatalf("Failed to insert second device: %v", err)
	}

	if err := repo.Replace(ctx, 1, []*models.ScheduleEvent{
		{DeviceID: 1, Time: "07:00", State: models.StateOn},
	}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := repo.Replace(ctx, 2, []*models.ScheduleEvent{
		{DeviceID: 2, Time: "18:30", State: models.StateOn},
	}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	got, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events across devices, got %d", len(got))
	}
}
