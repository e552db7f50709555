package handlers

import (
	"biteback/internal/app"
	"biteback/internal/handlers/middleware"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
)

type Handler struct {
	middleware middleware.Middleware
	log        logger.Logger
	router     fiber.Router
}

func Router(router fiber.Router, app *app.App) (err error) {
	router.Get("/metrics", adaptor.HTTPHandler(app.Services.Metrics.Handler()))
	setupWebSocketRoute(router, app)

	api := router.Group("/api", app.Middleware.Metrics())
	HealthHandler(api, app.Config)

	protected := api.Group("", app.Middleware.RequireAuth())
	NewUserHandler(*app, protected).Register()
	NewRestaurantHandler(*app, protected).Register()
	NewMissionHandler(*app, protected).Register()
	NewVoucherHandler(*app, protected).Register()

	return nil
}

func setupWebSocketRoute(router fiber.Router, app *app.App) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(func(c *websocket.Conn) {
		app.Websocket.HandleWebSocket(c)
	}))
}
