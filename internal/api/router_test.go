package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/auth"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/integrations"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/scheduler"
	"github.com/espcontrol/espcontrol-backend-go/internal/database"
	"github.com/espcontrol/espcontrol-backend-go/internal/websocket"
)

const testSchema = `
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

	CREATE TABLE integrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		integration_type TEXT NOT NULL,
		name TEXT NOT NULL,
		settings_json TEXT NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE battery_triggers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		integration_id INTEGER NOT NULL REFERENCES integrations(id) ON DELETE CASCADE,
		device_id INTEGER NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		inverter_serial TEXT NOT NULL,
		threshold_pct REAL NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('below', 'above')),
		action TEXT NOT NULL CHECK (action IN ('ON', 'OFF')),
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
`

type testEnv struct {
	router *gin.Engine
	token  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (username, password_hash) VALUES ('john', ?)`, string(hash))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO devices (user_id, name, timezone) VALUES (1, 'pump', 'America/Cancun')`)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", TokenExpiry: 3600},
		Growatt: config.GrowattConfig{
			CacheTTL:        "25s",
			RefreshInterval: "5m",
			LoginTimeout:    "24h",
			RequestTimeout:  "5s",
			PanelFamilies:   []string{"SPH"},
		},
	}

	repos := database.NewRepositories(db)
	authService := auth.NewService(repos.User, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, logger)
	store := devices.NewStateStore(logger)
	evaluator := scheduler.NewEvaluator(store, logger)
	require.NoError(t, evaluator.Reload(context.Background(), repos.Device, repos.Schedule))
	integrationService := integrations.NewService(repos.Integration, repos.Trigger, store, cfg.Growatt, logger)
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	t.Cleanup(wsHub.Stop)

	router := NewRouter(cfg, repos, db, logger, authService, store, evaluator, integrationService, wsHub)

	env := &testEnv{router: router}

	resp := env.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"username": "john",
		"password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data.Token)
	env.token = body.Data.Token

	return env
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"username": "john",
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func pollState(t *testing.T, env *testEnv, deviceID string) string {
	t.Helper()

	resp := env.request(t, http.MethodGet, "/api/v1/poll?deviceId="+deviceID, nil, "")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		DeviceID string `json:"deviceId"`
		State    string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, deviceID, body.DeviceID)
	return body.State
}

func TestPollDefaultsToOff(t *testing.T) {
	env := setupTestEnv(t)

	assert.Equal(t, "OFF", pollState(t, env, "1"))
}

func TestPollRequiresDeviceParam(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/v1/poll", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSetStateRequiresAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/devices/1/state", gin.H{"state": "ON"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestSetStateFlowsToPoll(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/devices/1/state", gin.H{"state": "ON"}, env.token)
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, "ON", pollState(t, env, "1"))
}

func TestSetStateValidatesValue(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/devices/1/state", gin.H{"state": "on"}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/v1/devices/1/state", gin.H{}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSetStateUnknownDevice(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/devices/999/state", gin.H{"state": "ON"}, env.token)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestScheduleRoundTrip(t *testing.T) {
	env := setupTestEnv(t)

	schedule := gin.H{
		"timezone": "America/Cancun",
		"events": []gin.H{
			{"time": "07:00", "state": "ON"},
			{"time": "22:00", "state": "OFF"},
		},
	}

	resp := env.request(t, http.MethodPut, "/api/v1/devices/1/schedule", schedule, env.token)
	require.Equal(t, http.StatusOK, resp.Code)

	get := env.request(t, http.MethodGet, "/api/v1/devices/1/schedule", nil, env.token)
	require.Equal(t, http.StatusOK, get.Code)

	var body struct {
		Data struct {
			Timezone string `json:"timezone"`
			Events   []struct {
				Time  string `json:"time"`
				State string `json:"state"`
			} `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &body))
	assert.Equal(t, "America/Cancun", body.Data.Timezone)
	require.Len(t, body.Data.Events, 2)
	assert.Equal(t, "07:00", body.Data.Events[0].Time)
	assert.Equal(t, "ON", body.Data.Events[0].State)
}

func TestScheduleValidation(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPut, "/api/v1/devices/1/schedule", gin.H{
		"timezone": "America/Cancun",
		"events":   []gin.H{{"time": "25:00", "state": "ON"}},
	}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPut, "/api/v1/devices/1/schedule", gin.H{
		"timezone": "Mars/Olympus",
		"events":   []gin.H{{"time": "07:00", "state": "ON"}},
	}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPut, "/api/v1/devices/1/schedule", gin.H{
		"timezone": "America/Cancun",
		"events":   "not-an-array",
	}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeviceLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/devices", gin.H{
		"name":     "heater",
		"timezone": "UTC",
	}, env.token)
	require.Equal(t, http.StatusOK, resp.Code)

	list := env.request(t, http.MethodGet, "/api/v1/devices", nil, env.token)
	require.Equal(t, http.StatusOK, list.Code)

	var body struct {
		Data []struct {
			ID    int    `json:"id"`
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	// The list is ordered by name, so "heater" sorts first
	assert.Equal(t, "heater", body.Data[0].Name)
	assert.Equal(t, "OFF", body.Data[0].State)

	del := env.request(t, http.MethodDelete, "/api/v1/devices/2", nil, env.token)
	assert.Equal(t, http.StatusOK, del.Code)
}

func TestIntegrationCRUDValidation(t *testing.T) {
	env := setupTestEnv(t)

	// Missing credentials is rejected up front
	resp := env.request(t, http.MethodPost, "/api/v1/integrations", gin.H{
		"integration_type": "growatt",
		"name":             "solar",
		"settings":         gin.H{"username": "john"},
	}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/v1/integrations", gin.H{
		"integration_type": "unknown",
		"name":             "solar",
		"settings":         gin.H{"username": "john", "password": "x"},
	}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/v1/integrations", gin.H{
		"integration_type": "growatt",
		"name":             "solar",
		"settings":         gin.H{"username": "john", "password": "x"},
	}, env.token)
	require.Equal(t, http.StatusOK, resp.Code)

	list := env.request(t, http.MethodGet, "/api/v1/integrations", nil, env.token)
	require.Equal(t, http.StatusOK, list.Code)

	toggle := env.request(t, http.MethodPatch, "/api/v1/integrations/1/active", gin.H{"is_active": false}, env.token)
	assert.Equal(t, http.StatusOK, toggle.Code)

	del := env.request(t, http.MethodDelete, "/api/v1/integrations/1", nil, env.token)
	assert.Equal(t, http.StatusOK, del.Code)
}

func TestTriggerValidation(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/v1/integrations", gin.H{
		"integration_type": "growatt",
		"name":             "solar",
		"settings":         gin.H{"username": "john", "password": "x"},
	}, env.token)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/v1/triggers", gin.H{
		"integration_id":  1,
		"device_id":       1,
		"inverter_serial": "SN100",
		"threshold_pct":   30,
		"direction":       "sideways",
		"action":          "ON",
	}, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.request(t, http.MethodPost, "/api/v1/triggers", gin.H{
		"integration_id":  1,
		"device_id":       1,
		"inverter_serial": "SN100",
		"threshold_pct":   30,
		"direction":       "below",
		"action":          "ON",
	}, env.token)
	require.Equal(t, http.StatusOK, resp.Code)

	list := env.request(t, http.MethodGet, "/api/v1/triggers", nil, env.token)
	assert.Equal(t, http.StatusOK, list.Code)
}
