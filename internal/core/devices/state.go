package devices

import (
	"sync"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
	"github.com/sirupsen/logrus"
)

// ChangeListener is notified after every state write. Listeners must not
// block; the store calls them synchronously under no lock.
type ChangeListener func(deviceID, state, source string)

// Sources of state changes
const (
	SourceManual   = "manual"
	SourceSchedule = "schedule"
	SourceTrigger  = "trigger"
)

// StateStore holds the desired ON/OFF state per device. The state is the
// server's last-set value, not a confirmed physical state; the hardware
// polls it and is trusted to converge.
type StateStore struct {
	mu        sync.RWMutex
	states    map[string]string
	listeners []ChangeListener
	logger    *logrus.Logger
}

// NewStateStore creates an empty state store
func NewStateStore(logger *logrus.Logger) *StateStore {
	return &StateStore{
		states: make(map[string]string),
		logger: logger,
	}
}

// Subscribe registers a change listener. Must be called before the store
// is shared with handlers and timers.
func (s *StateStore) Subscribe(listener ChangeListener) {
	s.listeners = append(s.listeners, listener)
}

// Get returns the current state for a device, defaulting to OFF for
// devices the store has never seen
func (s *StateStore) Get(deviceID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if state, ok := s.states[deviceID]; ok {
		return state
	}
	return models.StateOff
}

// Set writes a device's state and notifies listeners
func (s *StateStore) Set(deviceID, state, source string) {
	s.mu.Lock()
	prev := s.states[deviceID]
	s.states[deviceID] = state
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"device_id": deviceID,
		"state":     state,
		"previous":  prev,
		"source":    source,
	}).Info("Device state updated")

	for _, listener := range s.listeners {
		listener(deviceID, state, source)
	}
}

// SetDefault writes OFF for a device without notifying listeners,
// used when rebuilding state at process start
func (s *StateStore) SetDefault(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.states[deviceID]; !ok {
		s.states[deviceID] = models.StateOff
	}
}

// Snapshot returns a copy of all known device states
func (s *StateStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string, len(s.states))
	for id, state := range s.states {
		snapshot[id] = state
	}
	return snapshot
}

// IsValidState reports whether the value is a state the hardware understands
func IsValidState(state string) bool {
	return state == models.StateOn || state == models.StateOff
}
