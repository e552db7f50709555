package app

import (
	"context"

	"biteback/config"
	"biteback/internal/controllers"
	"biteback/internal/database"
	"biteback/internal/events"
	"biteback/internal/handlers/middleware"
	"biteback/internal/jobs"
	"biteback/internal/repositories"
	"biteback/internal/services"
	"biteback/internal/websockets"

	logger "github.com/Bparsons0904/goLogger"
)

type App struct {
	Database    database.DB
	Config      config.Config
	EventBus    *events.EventBus
	Middleware  middleware.Middleware
	Websocket   *websockets.Manager
	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.InitConfig()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events, config)
	repos := repositories.New(db, config)

	service, err := services.New(db, config)
	if err != nil {
		return &App{}, log.Err("failed to create services", err)
	}

	websocket, err := websockets.New(eventBus, service.Auth, repos)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	if config.SchedulerEnabled {
		if err := jobs.RegisterAllJobs(service.Scheduler, repos); err != nil {
			return &App{}, log.Err("failed to register jobs", err)
		}
	}

	app := &App{
		Database:    db,
		Config:      config,
		EventBus:    eventBus,
		Middleware:  middleware.New(repos, service.Auth, service.Metrics),
		Websocket:   websocket,
		Services:    service,
		Repos:       repos,
		Controllers: controllers.New(service, repos, eventBus),
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	nilChecks := map[string]bool{
		"eventBus":    a.EventBus == nil,
		"websocket":   a.Websocket == nil,
		"auth":        a.Services.Auth == nil,
		"voucher":     a.Services.Voucher == nil,
		"proofStore":  a.Services.ProofStore == nil,
		"metrics":     a.Services.Metrics == nil,
		"scheduler":   a.Services.Scheduler == nil,
		"transaction": a.Services.Transaction == nil,
		"ledger":      a.Controllers.Ledger == nil,
		"redemption":  a.Controllers.Redemption == nil,
		"stats":       a.Controllers.Stats == nil,
	}

	for name, missing := range nilChecks {
		if missing {
			return log.Error("nil check failed", "component", name)
		}
	}

	return nil
}

// Start runs background work that must outlive request handling.
func (a *App) Start(ctx context.Context) error {
	if !a.Config.SchedulerEnabled {
		return nil
	}
	return a.Services.Scheduler.Start(ctx)
}

func (a *App) Close() (err error) {
	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.Services.Scheduler != nil && a.Services.Scheduler.IsRunning() {
		if closeErr := a.Services.Scheduler.Stop(context.Background()); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
