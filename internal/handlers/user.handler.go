package handlers

import (
	"biteback/internal/app"
	statsController "biteback/internal/controllers/stats"
	userController "biteback/internal/controllers/users"
	"biteback/internal/handlers/middleware"
	"biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	Handler
	controller userController.UserControllerInterface
	stats      statsController.StatsControllerInterface
}

func NewUserHandler(app app.App, router fiber.Router) *UserHandler {
	return &UserHandler{
		controller: app.Controllers.User,
		stats:      app.Controllers.Stats,
		Handler: Handler{
			log:        logger.New("handlers").File("user_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *UserHandler) Register() {
	users := h.router.Group("/users")
	users.Get("/me", h.getCurrentUser)
	users.Put("/me", h.updateCurrentUser)
	users.Post("/me/login", h.recordLogin)
	users.Get("/me/stats", h.middleware.RequireRole(models.RoleCustomer), h.getCustomerStats)
}

func (h *UserHandler) getCurrentUser(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	return c.JSON(fiber.Map{"user": h.controller.GetProfile(c.UserContext(), user)})
}

func (h *UserHandler) updateCurrentUser(c *fiber.Ctx) error {
	var request userController.ProfileRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	profile, err := h.controller.UpdateProfile(c.UserContext(), middleware.GetUser(c), request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"user": profile})
}

func (h *UserHandler) recordLogin(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if err := h.controller.RecordLogin(c.UserContext(), user); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"user": user.ToProfile()})
}

func (h *UserHandler) getCustomerStats(c *fiber.Ctx) error {
	stats, err := h.stats.CustomerStats(c.UserContext(), middleware.GetUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
