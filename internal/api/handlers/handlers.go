package handlers

import (
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/espcontrol/espcontrol-backend-go/internal/config"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/auth"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/integrations"
	"github.com/espcontrol/espcontrol-backend-go/internal/core/scheduler"
	"github.com/espcontrol/espcontrol-backend-go/internal/database"
	"github.com/espcontrol/espcontrol-backend-go/internal/websocket"
)

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg                *config.Config
	repos              *database.Repositories
	db                 *sql.DB
	log                *logrus.Logger
	authService        *auth.Service
	store              *devices.StateStore
	evaluator          *scheduler.Evaluator
	integrationService *integrations.Service
	wsHub              *websocket.Hub
	startedAt          time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, repos *database.Repositories, db *sql.DB, logger *logrus.Logger, authService *auth.Service, store *devices.StateStore, evaluator *scheduler.Evaluator, integrationService *integrations.Service, wsHub *websocket.Hub) *Handlers {
	return &Handlers{
		cfg:                cfg,
		repos:              repos,
		db:                 db,
		log:                logger,
		authService:        authService,
		store:              store,
		evaluator:          evaluator,
		integrationService: integrationService,
		wsHub:              wsHub,
		startedAt:          time.Now(),
	}
}
