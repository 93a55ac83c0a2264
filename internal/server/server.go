// Package server is the thin fiber adapter that demonstrates the §6 wire
// contract end to end: one streaming endpoint and a small conversation CRUD
// surface over the Orchestrator, grounded on ai-notetaking-be's
// internal/server.New (fiber.New + cors.New + otelfiber.Middleware, routes
// registered from a container).
package server

import (
	"log"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"ai-notetaking-be/internal/bootstrap"
	"ai-notetaking-be/internal/config"
)

// Server wraps the fiber app.
type Server struct {
	app *fiber.App
	cfg *config.Config
}

// New builds a fiber app with CORS, tracing middleware, and the council
// routes registered against container.
func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     join(cfg.App.CorsAllowedOrigins),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Use(otelfiber.Middleware())

	registerRoutes(app, container)

	return &Server{app: app, cfg: cfg}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Run starts listening. The server itself never loads its own config or
// builds its own container — that stays in cmd/council, the same split
// ai-notetaking-be draws between internal/server and cmd/rest.
func (s *Server) Run() error {
	log.Printf("council server listening on :%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	h := &conversationHandler{container: c}

	api := app.Group("/api")
	conversations := api.Group("/conversations")
	conversations.Post("/", h.create)
	conversations.Get("/", h.list)
	conversations.Get("/:id", h.get)
	conversations.Delete("/:id", h.delete)
	conversations.Post("/:id/messages", h.postMessage)
}

func join(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}
