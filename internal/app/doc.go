// Package app provides the application context for hearth-ctl.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Paths    *config.Paths   // File system paths
//	    Config   *config.Config  // Panel configuration
//	    Store    *store.Store    // SQLite database
//	    Daemon   daemon.Client   // Node daemon client
//	    Recorder audit.Recorder  // Server activity
//	}
//
// # Creating an App
//
// Use New with functional options, then Open to fill in the rest:
//
//	// Production usage
//	a := app.New(app.WithConfig(cfg))
//	if err := a.Open(ctx); err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithStore(st),
//	    app.WithDaemon(daemon.NewMockClient()),
//	    app.WithRecorder(&audit.Memory{}),
//	)
//
// # Services
//
// Creator, Deleter, Allocations and Validator return services bound to the
// App's dependencies.
package app
