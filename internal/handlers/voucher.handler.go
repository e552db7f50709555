package handlers

import (
	"biteback/internal/app"
	ledgerController "biteback/internal/controllers/ledger"
	redemptionController "biteback/internal/controllers/redemption"
	"biteback/internal/handlers/middleware"
	"biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/fiber/v2"
)

type VoucherHandler struct {
	Handler
	ledger     ledgerController.LedgerControllerInterface
	redemption redemptionController.RedemptionControllerInterface
}

type voucherRequest struct {
	Payload string `json:"payload"`
}

func NewVoucherHandler(app app.App, router fiber.Router) *VoucherHandler {
	return &VoucherHandler{
		ledger:     app.Controllers.Ledger,
		redemption: app.Controllers.Redemption,
		Handler: Handler{
			log:        logger.New("handlers").File("voucher_handler"),
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *VoucherHandler) Register() {
	business := h.middleware.RequireRole(models.RoleBusiness)

	vouchers := h.router.Group("/vouchers")
	vouchers.Get("/:id/qr", h.middleware.RequireRole(models.RoleCustomer), h.getQRCode)
	vouchers.Post("/review", business, h.review)
	vouchers.Post("/redeem", business, h.redeem)
}

func (h *VoucherHandler) getQRCode(c *fiber.Ctx) error {
	png, err := h.ledger.VoucherQR(
		c.UserContext(),
		middleware.GetUser(c).ID,
		c.Params("id"),
		c.QueryInt("size"),
	)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(png)
}

func (h *VoucherHandler) review(c *fiber.Ctx) error {
	var request voucherRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	review, err := h.redemption.Review(c.UserContext(), middleware.GetUser(c), request.Payload)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(review)
}

func (h *VoucherHandler) redeem(c *fiber.Ctx) error {
	log := h.log.TraceFromContext(c.UserContext()).Function("redeem")

	var request voucherRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user := middleware.GetUser(c)
	summary, err := h.redemption.Redeem(c.UserContext(), user, request.Payload)
	if err != nil {
		log.Info("redeem rejected", "userID", user.ID, "error", err.Error())
		return respondError(c, err)
	}

	return c.JSON(summary)
}
