package growatt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Integration pairs a vendor client with one integration's settings and
// caches the last successful fetch. All data consumers go through here so a
// burst of requests costs one vendor round-trip.
type Integration struct {
	client        *Client
	settings      Settings
	panelFamilies []string
	apiOnly       map[string]bool
	logger        *logrus.Logger

	mu        sync.Mutex
	lastFetch *FetchResult
}

// NewIntegration builds an integration wrapper from decoded settings.
// Serials pinned API-only come both from the settings and from server-wide
// configuration.
func NewIntegration(client *Client, settings Settings, panelFamilies, globalAPIOnly []string, logger *logrus.Logger) *Integration {
	apiOnly := make(map[string]bool, len(settings.APIOnlySerials)+len(globalAPIOnly))
	for _, serial := range settings.APIOnlySerials {
		apiOnly[serial] = true
	}
	for _, serial := range globalAPIOnly {
		apiOnly[serial] = true
	}

	return &Integration{
		client:        client,
		settings:      settings,
		panelFamilies: panelFamilies,
		apiOnly:       apiOnly,
		logger:        logger,
	}
}

// Client exposes the underlying vendor client
func (i *Integration) Client() *Client {
	return i.client
}

// UpdateSettings refreshes the filter settings without dropping the session.
// Credential changes require a new integration instance.
func (i *Integration) UpdateSettings(settings Settings) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.settings.PlantID = settings.PlantID
	i.settings.DeviceSerialNumbers = settings.DeviceSerialNumbers

	apiOnly := make(map[string]bool, len(i.apiOnly))
	for serial, pinned := range i.apiOnly {
		apiOnly[serial] = pinned
	}
	for _, serial := range settings.APIOnlySerials {
		apiOnly[serial] = true
	}
	i.apiOnly = apiOnly
}

// CredentialsMatch reports whether the given settings use the same account
func (i *Integration) CredentialsMatch(settings Settings) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.settings.Username == settings.Username &&
		i.settings.Password == settings.Password &&
		i.settings.Server == settings.Server
}

// CachedData returns the last fetch if it is younger than maxAge
func (i *Integration) CachedData(maxAge time.Duration) *FetchResult {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.lastFetch == nil || time.Since(i.lastFetch.FetchedAt) > maxAge {
		return nil
	}
	return i.lastFetch
}

// FetchData performs a full vendor fetch, replacing the cache on success.
// A vendor error invalidates the session so the next attempt re-logs-in.
func (i *Integration) FetchData(ctx context.Context) (*FetchResult, error) {
	if err := i.client.EnsureLogin(ctx); err != nil {
		return nil, err
	}

	plants, err := i.client.FetchAllPlantData(ctx)
	if err != nil {
		i.client.Invalidate()
		return nil, fmt.Errorf("vendor fetch failed: %w", err)
	}

	i.mu.Lock()
	settings := i.settings
	apiOnly := i.apiOnly
	panelFamilies := i.panelFamilies
	i.mu.Unlock()

	result := &FetchResult{
		Plants:    plants,
		FetchedAt: time.Now(),
	}

	serialFilter := make(map[string]bool, len(settings.DeviceSerialNumbers))
	for _, serial := range settings.DeviceSerialNumbers {
		serialFilter[serial] = true
	}

	for plantID, plant := range plants {
		if settings.PlantID != "" && settings.PlantID != plantID {
			continue
		}
		for serial, device := range plant.Devices {
			if len(serialFilter) > 0 && !serialFilter[serial] {
				continue
			}
			result.Inverters = append(result.Inverters, i.summarize(ctx, plantID, plant.PlantName, device, apiOnly, panelFamilies))
		}
	}

	i.mu.Lock()
	i.lastFetch = result
	i.mu.Unlock()

	return result, nil
}

func (i *Integration) summarize(ctx context.Context, plantID, plantName string, device *DeviceData, apiOnly map[string]bool, panelFamilies []string) InverterSummary {
	capability := ResolveCapability(device, apiOnly, panelFamilies)

	status := device.StatusData
	source := SourceAPI

	if capability.UsePanel {
		panelStatus, err := i.client.FetchPanelStatus(ctx, plantID, device.Serial)
		if err != nil {
			// Fall back to whatever partial API data exists
			i.logger.WithError(err).WithFields(logrus.Fields{
				"serial": device.Serial,
				"reason": capability.Reason,
			}).Warn("Panel status fetch failed, using API data")
		} else {
			status = panelStatus
			source = SourcePanel
		}
	}

	summary := InverterSummary{
		PlantName:         plantName,
		InverterID:        device.Serial,
		SystemStatus:      NA,
		BatteryVoltage:    NA,
		BatteryPower:      NA,
		BatteryPercentage: NA,
		ACInputPower:      NA,
		ACOutputPower:     NA,
		SolarPanelPower:   NA,
		InverterType:      orNA(device.DeviceType),
		Source:            source,
	}

	if status != nil {
		summary.SystemStatus = orNA(status.Status)
		summary.BatteryVoltage = orNA(status.VBat)
		summary.BatteryPower = negated(status.BatPower)
		summary.BatteryPercentage = orNA(status.Capacity)
		summary.ACInputPower = orNA(status.GridPower)
		summary.ACOutputPower = orNA(status.LoadPower)
		summary.SolarPanelPower = orNA(status.PanelPower)
	}

	return summary
}
