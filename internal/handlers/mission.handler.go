package handlers

import (
	"biteback/internal/app"
	ledgerController "biteback/internal/controllers/ledger"
	missionController "biteback/internal/controllers/missions"
	statsController "biteback/internal/controllers/stats"
	"biteback/internal/handlers/middleware"
	"biteback/internal/models"
	"biteback/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MissionHandler struct {
	Handler
	missions missionController.MissionControllerInterface
	ledger   ledgerController.LedgerControllerInterface
	stats    statsController.StatsControllerInterface
}

func NewMissionHandler(app app.App, router fiber.Router) *MissionHandler {
	return &MissionHandler{
		missions: app.Controllers.Mission,
		ledger:   app.Controllers.Ledger,
		stats:    app.Controllers.Stats,
		Handler: Handler{
			log:        logger.New("handlers").File("mission_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *MissionHandler) Register() {
	business := h.middleware.RequireRole(models.RoleBusiness)
	customer := h.middleware.RequireRole(models.RoleCustomer)

	missions := h.router.Group("/missions")
	missions.Post("/", business, h.createMission)
	missions.Get("/:id", h.getMission)
	missions.Put("/:id", business, h.updateMission)
	missions.Put("/:id/image", business, h.updateMissionImage)
	missions.Delete("/:id", business, h.deleteMission)
	missions.Get("/:id/stats", business, h.getMissionStats)

	missions.Get("/:id/completion", customer, h.getCompletion)
	missions.Post("/:id/steps/:index/proof", customer, h.submitStepProof)
	missions.Post("/:id/finalize", customer, h.finalize)
	missions.Post("/:id/complete", customer, h.complete)
}

func (h *MissionHandler) createMission(c *fiber.Ctx) error {
	var request missionController.MissionRequest
	var cover []byte

	if isMultipart(c) {
		if err := c.App().Config().JSONDecoder([]byte(c.FormValue(payloadFormField)), &request); err != nil {
			return badRequest(c, "Invalid mission data")
		}
		image, err := formImage(c, imageFormField)
		if err != nil {
			return respondError(c, err)
		}
		cover = image
	} else if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	mission, err := h.missions.Create(c.UserContext(), middleware.GetUser(c), request, cover)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"mission": mission})
}

func (h *MissionHandler) getMission(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	mission, err := h.missions.Get(c.UserContext(), missionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"mission": mission})
}

func (h *MissionHandler) updateMission(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	var request missionController.MissionRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	mission, err := h.missions.Update(c.UserContext(), middleware.GetUser(c), missionID, request)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"mission": mission})
}

func (h *MissionHandler) updateMissionImage(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	image, err := formImage(c, imageFormField)
	if err != nil {
		return respondError(c, err)
	}
	if image == nil {
		return badRequest(c, "image is required")
	}

	mission, err := h.missions.UpdateImage(c.UserContext(), middleware.GetUser(c), missionID, image)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"mission": mission})
}

func (h *MissionHandler) deleteMission(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	if err := h.missions.Delete(c.UserContext(), middleware.GetUser(c), missionID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MissionHandler) getMissionStats(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	stats, err := h.stats.MissionStats(c.UserContext(), middleware.GetUser(c), missionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(stats)
}

func (h *MissionHandler) getCompletion(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	state, err := h.ledger.GetState(c.UserContext(), middleware.GetUser(c).ID, missionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(state)
}

func (h *MissionHandler) submitStepProof(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	stepIndex, err := c.ParamsInt("index")
	if err != nil {
		return badRequest(c, "Invalid step index")
	}

	image, err := formImage(c, imageFormField)
	if err != nil {
		return respondError(c, err)
	}
	if image == nil {
		return badRequest(c, "image is required")
	}

	state, err := h.ledger.SubmitStepProof(c.UserContext(), middleware.GetUser(c).ID, missionID, stepIndex, image)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(state)
}

func (h *MissionHandler) finalize(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	voucherID, err := h.ledger.Finalize(c.UserContext(), middleware.GetUser(c).ID, missionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"voucherId": voucherID})
}

func (h *MissionHandler) complete(c *fiber.Ctx) error {
	missionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid mission id")
	}

	// Without a form the call can still return an already issued voucher.
	var uploads []services.ProofUpload
	if isMultipart(c) {
		if uploads, err = stepUploads(c); err != nil {
			return respondError(c, err)
		}
	}

	voucherID, err := h.ledger.Complete(c.UserContext(), middleware.GetUser(c).ID, missionID, uploads)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"voucherId": voucherID})
}
