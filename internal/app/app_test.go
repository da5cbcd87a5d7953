package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hearth-panel/hearth-ctl/internal/audit"
	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/daemon"
)

func TestNew(t *testing.T) {
	app := New()

	if app == nil {
		t.Fatal("New() returned nil")
	}

	// Should have default paths
	if app.Paths == nil {
		t.Error("Paths should not be nil")
	}

	// Nothing is opened before Open
	if app.Store != nil || app.Daemon != nil {
		t.Error("New should not open dependencies")
	}
}

func TestNew_MultipleOptions(t *testing.T) {
	customPaths := config.NewPaths("/custom/config", "/custom/state")
	customConfig := config.Default(customPaths)
	mock := daemon.NewMockClient()
	recorder := &audit.Memory{}

	app := New(
		WithPaths(customPaths),
		WithConfig(customConfig),
		WithDaemon(mock),
		WithRecorder(recorder),
	)

	if app.Paths != customPaths {
		t.Error("Paths not set correctly")
	}
	if app.Config != customConfig {
		t.Error("Config not set correctly")
	}
	if app.Daemon != mock {
		t.Error("Daemon not set correctly")
	}
	if app.Recorder != recorder {
		t.Error("Recorder not set correctly")
	}
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	paths := config.NewPaths(filepath.Join(tmpDir, "config"), filepath.Join(tmpDir, "state"))

	app := New(WithPaths(paths))
	if err := app.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer app.Close()

	if app.Config == nil || app.Config.Database.Path != filepath.Join(paths.StateDir, config.DatabaseFileName) {
		t.Errorf("Config = %+v, want defaults for paths", app.Config)
	}
	if app.Store == nil {
		t.Fatal("Store should be opened")
	}
	if _, ok := app.Daemon.(*daemon.HTTPClient); !ok {
		t.Errorf("Daemon = %T, want *daemon.HTTPClient", app.Daemon)
	}
	if _, ok := app.Recorder.(audit.Multi); !ok {
		t.Errorf("Recorder = %T, want audit.Multi", app.Recorder)
	}

	if app.Creator() == nil || app.Deleter() == nil || app.Allocations() == nil || app.Validator() == nil {
		t.Error("service constructors should not return nil")
	}
}

func TestSetDefault(t *testing.T) {
	// Save original default
	original := Default
	defer func() { Default = original }()

	customApp := New(WithPaths(config.NewPaths("/a", "/b")))
	SetDefault(customApp)

	if Default != customApp {
		t.Error("SetDefault did not update Default")
	}
}

func TestResetDefault(t *testing.T) {
	// Save original default
	original := Default
	defer func() { Default = original }()

	// Set a custom default
	customApp := New(WithPaths(config.NewPaths("/a", "/b")))
	SetDefault(customApp)

	// Reset to default
	ResetDefault()

	// Should have a new default app with default paths
	if Default == customApp {
		t.Error("ResetDefault did not create new Default")
	}
	if Default.Paths == nil {
		t.Error("ResetDefault should create app with default paths")
	}
}
