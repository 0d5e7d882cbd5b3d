// Package app wires configuration, storage and services into a runnable
// service. Both the HTTP server and the CLI subcommands build on it.
package app

import (
	"context"
	"fmt"

	"github.com/abhisek/lessonpath/internal/attempts"
	"github.com/abhisek/lessonpath/internal/config"
	"github.com/abhisek/lessonpath/internal/lessons"
	"github.com/abhisek/lessonpath/internal/llm"
	"github.com/abhisek/lessonpath/internal/logger"
	"github.com/abhisek/lessonpath/internal/progression"
	"github.com/abhisek/lessonpath/internal/server"
	"github.com/abhisek/lessonpath/internal/spacedrep"
	"github.com/abhisek/lessonpath/internal/store"
	"github.com/abhisek/lessonpath/internal/validator"
)

// Options overrides parts of the wiring. Zero values use the configured
// defaults.
type Options struct {
	Log *logger.Logger

	// Provider replaces the LLM provider built from configuration.
	Provider llm.Provider
}

// App holds the wired services. Close releases the store.
type App struct {
	Config config.Config
	Log    *logger.Logger
	Store  *store.Store

	Lessons     *lessons.Service
	Validator   *validator.Dispatcher
	Recorder    *attempts.Recorder
	Progression *progression.Engine
}

// New opens (and migrates) the store and builds every service.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	log := opts.Log
	if log == nil {
		var err error
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, err
		}
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("resolve database: %w", err)
	}
	st, err := store.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = llm.NewProvider(ctx, cfg.LLM, log)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("llm provider: %w", err)
		}
	}
	if provider == nil {
		log.Info("model grading disabled: no LLM provider configured")
	}

	graderCfg := validator.DefaultGraderConfig()
	graderCfg.Timeout = cfg.LLM.Timeout

	dispatcher := validator.NewDispatcher(st, log)
	dispatcher.Register(validator.KindDelegated, validator.NewHTTPRunner(cfg.RunnerURL, cfg.RunnerTimeout))
	dispatcher.Register(validator.KindModelGraded, validator.NewModelGrader(provider, graderCfg))

	sched := spacedrep.NewScheduler(log)
	return &App{
		Config:      cfg,
		Log:         log,
		Store:       st,
		Lessons:     lessons.NewService(st, log),
		Validator:   dispatcher,
		Recorder:    attempts.NewRecorder(st, sched, log),
		Progression: progression.NewEngine(st, sched, log),
	}, nil
}

// Server builds the HTTP front end over the app's services.
func (a *App) Server() *server.Server {
	return server.New(server.Deps{
		Lessons:     a.Lessons,
		Validator:   a.Validator,
		Recorder:    a.Recorder,
		Progression: a.Progression,
		Log:         a.Log,
		CORSOrigins: a.Config.CORSOrigins,
	})
}

func (a *App) Close() error {
	a.Log.Sync()
	return a.Store.Close()
}
