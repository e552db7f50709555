package handlers

import (
	"biteback/internal/app"
	missionController "biteback/internal/controllers/missions"
	restaurantController "biteback/internal/controllers/restaurants"
	statsController "biteback/internal/controllers/stats"
	"biteback/internal/handlers/middleware"
	"biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type RestaurantHandler struct {
	Handler
	controller restaurantController.RestaurantControllerInterface
	missions   missionController.MissionControllerInterface
	stats      statsController.StatsControllerInterface
}

func NewRestaurantHandler(app app.App, router fiber.Router) *RestaurantHandler {
	return &RestaurantHandler{
		controller: app.Controllers.Restaurant,
		missions:   app.Controllers.Mission,
		stats:      app.Controllers.Stats,
		Handler: Handler{
			log:        logger.New("handlers").File("restaurant_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *RestaurantHandler) Register() {
	restaurants := h.router.Group("/restaurants")
	restaurants.Get("/", h.browse)

	mine := restaurants.Group("/mine", h.middleware.RequireRole(models.RoleBusiness))
	mine.Get("/", h.getMine)
	mine.Post("/", h.createMine)
	mine.Put("/", h.updateMine)
	mine.Get("/missions", h.listMyMissions)
	mine.Get("/stats", h.getMyStats)
}

func (h *RestaurantHandler) browse(c *fiber.Ctx) error {
	restaurants, err := h.controller.Browse(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"restaurants": restaurants})
}

func (h *RestaurantHandler) getMine(c *fiber.Ctx) error {
	restaurant, err := h.controller.GetMine(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"restaurant": restaurant})
}

func (h *RestaurantHandler) createMine(c *fiber.Ctx) error {
	var request restaurantController.RestaurantRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	restaurant, err := h.controller.CreateMine(c.UserContext(), middleware.GetUser(c), request)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"restaurant": restaurant})
}

func (h *RestaurantHandler) updateMine(c *fiber.Ctx) error {
	var request restaurantController.RestaurantRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	restaurant, err := h.controller.UpdateMine(c.UserContext(), middleware.GetUser(c), request)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"restaurant": restaurant})
}

func (h *RestaurantHandler) listMyMissions(c *fiber.Ctx) error {
	missions, err := h.missions.ListMine(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"missions": missions})
}

func (h *RestaurantHandler) getMyStats(c *fiber.Ctx) error {
	stats, err := h.stats.RestaurantStats(c.UserContext(), middleware.GetUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
