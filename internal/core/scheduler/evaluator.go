package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Event is one evaluated schedule entry
type Event struct {
	Time    string // "HH:MM" in the device's timezone
	State   string
	minutes int // minutes since midnight, precomputed at reload
}

// Evaluator fires device state transitions when wall-clock time in the
// device's timezone matches a stored event. It keeps full in-memory copies
// of the schedule and timezone maps and rebuilds them wholesale on reload.
type Evaluator struct {
	mu        sync.RWMutex
	schedules map[string][]Event
	timezones map[string]string
	locations map[string]*time.Location
	lastFired map[string]string // dedup key -> minute stamp it last fired in

	store  *devices.StateStore
	logger *logrus.Logger
	cron   *cron.Cron

	running bool
	now     func() time.Time
}

// NewEvaluator creates a schedule evaluator writing into the given state store
func NewEvaluator(store *devices.StateStore, logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		schedules: make(map[string][]Event),
		timezones: make(map[string]string),
		locations: make(map[string]*time.Location),
		lastFired: make(map[string]string),
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins the per-minute evaluation tick
func (e *Evaluator) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("evaluator is already running")
	}

	// Tick at second zero of every minute. SkipIfStillRunning guards the
	// same-minute double-fire case alongside the lastFired map.
	e.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		),
	)

	if _, err := e.cron.AddFunc("0 * * * * *", func() {
		e.Evaluate(e.now())
	}); err != nil {
		return fmt.Errorf("failed to schedule evaluation tick: %w", err)
	}

	e.cron.Start()
	e.running = true
	e.logger.Info("Schedule evaluator started")

	return nil
}

// Stop stops the evaluation tick, waiting for an in-flight tick to finish
func (e *Evaluator) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return fmt.Errorf("evaluator is not running")
	}

	stopCtx := e.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		e.logger.Warn("Timeout waiting for evaluation tick to complete")
	}

	e.running = false
	e.logger.Info("Schedule evaluator stopped")

	return nil
}

// Reload rebuilds the schedule and timezone maps from the database.
// Called at startup and after every schedule edit; always a full rebuild.
func (e *Evaluator) Reload(ctx context.Context, deviceRepo repositories.DeviceRepository, scheduleRepo repositories.ScheduleRepository) error {
	deviceRows, err := deviceRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	eventRows, err := scheduleRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedule events: %w", err)
	}

	timezones := make(map[string]string, len(deviceRows))
	for _, device := range deviceRows {
		timezones[strconv.Itoa(device.ID)] = device.Timezone
	}

	schedules := make(map[string][]Event)
	for _, row := range eventRows {
		minutes, err := ParseEventTime(row.Time)
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"device_id": row.DeviceID,
				"time":      row.Time,
			}).Warn("Skipping schedule event with invalid time")
			continue
		}
		deviceID := strconv.Itoa(row.DeviceID)
		schedules[deviceID] = append(schedules[deviceID], Event{
			Time:    row.Time,
			State:   row.State,
			minutes: minutes,
		})
	}

	e.mu.Lock()
	e.schedules = schedules
	e.timezones = timezones
	e.mu.Unlock()

	// Every scheduled device starts from OFF until something sets it
	for deviceID := range schedules {
		e.store.SetDefault(deviceID)
	}

	e.logger.WithFields(logrus.Fields{
		"devices": len(schedules),
		"events":  len(eventRows),
	}).Info("Schedules reloaded")

	return nil
}

// Evaluate runs one tick against the given instant. Exported so the tick
// and tests share the same path.
func (e *Evaluator) Evaluate(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	currentStamps := make(map[string]struct{})

	for deviceID, events := range e.schedules {
		loc, err := e.location(deviceID)
		if err != nil {
			e.logger.WithError(err).WithField("device_id", deviceID).
				Warn("Skipping device with invalid timezone")
			continue
		}

		local := now.In(loc)
		minutes := local.Hour()*60 + local.Minute()
		stamp := local.Format("2006-01-02 15:04")
		currentStamps[stamp] = struct{}{}

		for _, event := range events {
			if event.minutes != minutes {
				continue
			}

			key := fmt.Sprintf("%s-%s-%s", deviceID, event.Time, event.State)
			if e.lastFired[key] == stamp {
				continue
			}
			e.lastFired[key] = stamp

			e.logger.WithFields(logrus.Fields{
				"device_id": deviceID,
				"time":      event.Time,
				"state":     event.State,
				"local":     stamp,
			}).Info("Schedule event fired")

			// The hardware polls state; nothing is pushed to it
			e.store.Set(deviceID, event.State, devices.SourceSchedule)
		}
	}

	e.pruneFired(currentStamps)
}

// location resolves and caches a device's timezone
func (e *Evaluator) location(deviceID string) (*time.Location, error) {
	tz := e.timezones[deviceID]
	if tz == "" {
		tz = "UTC"
	}

	if loc, ok := e.locations[tz]; ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	e.locations[tz] = loc
	return loc, nil
}

// pruneFired drops dedup entries for minutes that have already passed;
// the guard only matters within a single calendar minute
func (e *Evaluator) pruneFired(currentStamps map[string]struct{}) {
	for key, stamp := range e.lastFired {
		if _, live := currentStamps[stamp]; !live {
			delete(e.lastFired, key)
		}
	}
}

// ParseEventTime converts "HH:MM" to minutes since midnight
func ParseEventTime(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in time: %s", value)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in time: %s", value)
	}

	return hour*60 + minute, nil
}
