// Package app provides the application context for hearth-ctl.
// It allows dependency injection for testing.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hearth-panel/hearth-ctl/internal/allocation"
	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/daemon"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/provision"
	"github.com/hearth-panel/hearth-ctl/internal/store"
	"github.com/hearth-panel/hearth-ctl/internal/variables"
)

// App holds the application dependencies
type App struct {
	// Paths holds the configured paths
	Paths *config.Paths

	// Config is the loaded panel configuration
	Config *config.Config

	// Store is the panel database
	Store *store.Store

	// Daemon talks to node daemons
	Daemon daemon.Client

	// Recorder receives server activity events
	Recorder audit.Recorder

	closers []func()
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithConfig sets a loaded configuration
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithStore sets an open store
func WithStore(st *store.Store) Option {
	return func(a *App) {
		a.Store = st
	}
}

// WithDaemon sets a custom daemon client
func WithDaemon(c daemon.Client) Option {
	return func(a *App) {
		a.Daemon = c
	}
}

// WithRecorder sets a custom activity recorder
func WithRecorder(r audit.Recorder) Option {
	return func(a *App) {
		a.Recorder = r
	}
}

// New creates a new App with the given options. Nothing is opened until
// Open is called.
func New(opts ...Option) *App {
	app := &App{
		Paths: config.DefaultPaths(),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// Open fills in every dependency not provided as an option: the default
// configuration, the SQLite store, the HTTP daemon client, and the activity
// recorder (JSONL files, plus NATS when activity.nats_url is set).
func (a *App) Open(ctx context.Context) error {
	if a.Config == nil {
		a.Config = config.Default(a.Paths)
	}

	if a.Store == nil {
		if err := os.MkdirAll(filepath.Dir(a.Config.Database.Path), 0755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		st, err := store.Open(ctx, a.Config.Database.Path)
		if err != nil {
			return err
		}
		a.Store = st
		a.closers = append(a.closers, func() { st.Close() })
	}

	if a.Daemon == nil {
		a.Daemon = daemon.NewHTTPClient(a.Config.Daemon.Timeout)
	}

	if a.Recorder == nil {
		recorders := audit.Multi{audit.NewLogger(a.Config.Activity.Dir)}
		if url := a.Config.Activity.NatsURL; url != "" {
			pub, err := audit.NewPublisher(url, a.Config.Activity.Subject)
			if err != nil {
				logging.Warn("activity will not be published", "error", err)
			} else {
				recorders = append(recorders, pub)
				a.closers = append(a.closers, pub.Close)
			}
		}
		a.Recorder = recorders
	}

	return nil
}

// Close releases what Open acquired, most recent first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Creator returns a server creator wired to the app's dependencies
func (a *App) Creator() *provision.Creator {
	return provision.NewCreator(a.Store, a.Daemon, a.Recorder, a.Config)
}

// Deleter returns a server deleter wired to the app's dependencies
func (a *App) Deleter() *provision.Deleter {
	return provision.NewDeleter(a.Store, a.Daemon, a.Recorder, a.Config)
}

// Allocations returns the allocation service for existing servers
func (a *App) Allocations() *allocation.Service {
	return allocation.NewService(a.Store, a.Config.Allocations, a.Recorder)
}

// Validator returns an egg variable validator backed by the store
func (a *App) Validator() *variables.Validator {
	return variables.NewValidator(a.Store)
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
