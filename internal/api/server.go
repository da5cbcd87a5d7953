// Package api serves the application HTTP API used by billing and
// automation systems to create and manage servers.
package api

import (
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearth-panel/hearth-ctl/internal/app"
	"github.com/hearth-panel/hearth-ctl/internal/config"
)

// Version is reported by /health.
var Version = "dev"

var startTime = time.Now()

// Server holds the handlers' dependencies.
type Server struct {
	app *app.App
}

// New builds the Fiber app for a. The bearer token in cfg guards every
// /api route when set.
func New(a *app.App, cfg config.APIConfig) *fiber.App {
	s := &Server{app: a}

	f := fiber.New(fiber.Config{
		AppName:               "hearth-ctl",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	f.Use(recover.New())
	f.Use(Metrics())

	f.Get("/health", Health())
	f.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := f.Group("/api/application", RequireToken(cfg.Token))
	api.Post("/servers", s.createServer)
	api.Get("/servers/:id", s.getServer)
	api.Delete("/servers/:id", s.deleteServer)
	api.Post("/servers/:id/allocations", s.addAllocation)
	api.Delete("/servers/:id/allocations/:allocation", s.removeAllocation)
	api.Put("/servers/:id/allocations/:allocation/primary", s.setPrimaryAllocation)
	api.Patch("/servers/:id/allocations/:allocation", s.updateAllocationNotes)
	api.Delete("/nodes/:node/allocations/:allocation", s.deleteNodeAllocation)
	api.Get("/users/external/:external_id", s.getUserByExternalID)

	return f
}

// Health reports liveness and build information.
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"time":       time.Now(),
			"version":    Version,
			"uptime":     time.Since(startTime).String(),
			"go_version": runtime.Version(),
		})
	}
}
