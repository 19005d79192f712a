package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/espcontrol/espcontrol-backend-go/internal/adapters/growatt"
	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/repositories"
	"github.com/espcontrol/espcontrol-backend-go/pkg/errors"
)

// Service manages one vendor instance per configured integration. Instances
// hold the login session and the fetch cache, so data requests for the same
// account reuse both.
type Service struct {
	integrationRepo repositories.IntegrationRepository
	triggerRepo     repositories.TriggerRepository
	store           *devices.StateStore
	cfg             config.GrowattConfig
	logger          *logrus.Logger

	cacheTTL        time.Duration
	refreshInterval time.Duration
	loginTimeout    time.Duration
	requestTimeout  time.Duration

	mu        sync.Mutex
	instances map[int]*growatt.Integration
	lastSide  map[int]string // trigger ID -> side of the threshold last observed

	cron *cron.Cron
}

// NewService creates the integrations service
func NewService(integrationRepo repositories.IntegrationRepository, triggerRepo repositories.TriggerRepository, store *devices.StateStore, cfg config.GrowattConfig, logger *logrus.Logger) *Service {
	return &Service{
		integrationRepo: integrationRepo,
		triggerRepo:     triggerRepo,
		store:           store,
		cfg:             cfg,
		logger:          logger,
		cacheTTL:        parseDuration(cfg.CacheTTL, 25*time.Second),
		refreshInterval: parseDuration(cfg.RefreshInterval, 5*time.Minute),
		loginTimeout:    parseDuration(cfg.LoginTimeout, 24*time.Hour),
		requestTimeout:  parseDuration(cfg.RequestTimeout, 30*time.Second),
		instances:       make(map[int]*growatt.Integration),
		lastSide:        make(map[int]string),
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Start launches the background refresh loop
func (s *Service) Start() error {
	if s.cron != nil {
		return nil
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	spec := fmt.Sprintf("@every %s", s.refreshInterval)
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshInterval)
		defer cancel()
		s.RefreshAll(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule integration refresh: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("interval", s.refreshInterval.String()).Info("Integration refresh loop started")
	return nil
}

// Stop halts the refresh loop, waiting for a running refresh to finish
func (s *Service) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetData returns vendor data for an integration, served from cache when it
// is fresh enough for an interactive request
func (s *Service) GetData(ctx context.Context, integration *models.Integration) (*growatt.FetchResult, error) {
	instance, err := s.instanceFor(integration)
	if err != nil {
		return nil, err
	}

	if cached := instance.CachedData(s.cacheTTL); cached != nil {
		return cached, nil
	}

	result, err := instance.FetchData(ctx)
	if err != nil {
		return nil, err
	}

	s.evaluateTriggers(ctx, integration.ID, result)
	return result, nil
}

// RefreshAll fetches fresh data for every active integration. Errors are
// logged per integration so one broken account does not starve the rest.
func (s *Service) RefreshAll(ctx context.Context) {
	active, err := s.integrationRepo.GetActive(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list active integrations for refresh")
		return
	}

	for _, integration := range active {
		instance, err := s.instanceFor(integration)
		if err != nil {
			s.logger.WithError(err).WithField("integration_id", integration.ID).Error("Skipping integration refresh")
			continue
		}

		result, err := instance.FetchData(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("integration_id", integration.ID).Warn("Integration refresh failed")
			continue
		}

		s.evaluateTriggers(ctx, integration.ID, result)
	}
}

// DropInstance discards the cached vendor instance for an integration,
// called when the integration is deleted or its settings change
func (s *Service) DropInstance(integrationID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, integrationID)
}

// instanceFor returns the vendor instance for an integration, creating or
// replacing it as the stored settings dictate
func (s *Service) instanceFor(integration *models.Integration) (*growatt.Integration, error) {
	var settings growatt.Settings
	if err := json.Unmarshal(integration.SettingsJSON, &settings); err != nil {
		return nil, errors.WithDetails(errors.ErrBadRequest, fmt.Sprintf("invalid settings for integration %d", integration.ID))
	}
	if settings.Username == "" || settings.Password == "" {
		return nil, errors.WithDetails(errors.ErrBadRequest, fmt.Sprintf("integration %d is missing vendor credentials", integration.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if instance, ok := s.instances[integration.ID]; ok {
		if instance.CredentialsMatch(settings) {
			instance.UpdateSettings(settings)
			return instance, nil
		}
		// Credentials changed: the old session is useless
		instance.Client().Invalidate()
		delete(s.instances, integration.ID)
	}

	baseURL := settings.Server
	if baseURL == "" {
		baseURL = s.cfg.ServerURL
	}

	client := growatt.NewClient(baseURL, settings.Username, settings.Password, s.loginTimeout, s.requestTimeout, s.logger)
	instance := growatt.NewIntegration(client, settings, s.cfg.PanelFamilies, s.cfg.APIOnlySerials, s.logger)
	s.instances[integration.ID] = instance
	return instance, nil
}

// evaluateTriggers checks every enabled battery trigger of an integration
// against fresh data and flips device states on threshold crossings
func (s *Service) evaluateTriggers(ctx context.Context, integrationID int, result *growatt.FetchResult) {
	triggers, err := s.triggerRepo.GetEnabledByIntegration(ctx, integrationID)
	if err != nil {
		s.logger.WithError(err).WithField("integration_id", integrationID).Error("Failed to load battery triggers")
		return
	}
	if len(triggers) == 0 {
		return
	}

	percentages := make(map[string]float64, len(result.Inverters))
	for _, inverter := range result.Inverters {
		pct, err := strconv.ParseFloat(inverter.BatteryPercentage, 64)
		if err != nil {
			continue
		}
		percentages[inverter.InverterID] = pct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, trigger := range triggers {
		pct, ok := percentages[trigger.InverterSerial]
		if !ok {
			continue
		}

		side := models.DirectionAbove
		if pct < trigger.ThresholdPct {
			side = models.DirectionBelow
		}

		prev, seen := s.lastSide[trigger.ID]
		s.lastSide[trigger.ID] = side

		// Fire only on a crossing, never on the first observation
		if !seen || prev == side || side != trigger.Direction {
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"trigger_id": trigger.ID,
			"device_id":  trigger.DeviceID,
			"serial":     trigger.InverterSerial,
			"percentage": pct,
			"threshold":  trigger.ThresholdPct,
			"direction":  trigger.Direction,
			"action":     trigger.Action,
		}).Info("Battery trigger fired")

		s.store.Set(strconv.Itoa(trigger.DeviceID), trigger.Action, devices.SourceTrigger)
	}
}
