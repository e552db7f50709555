package handlers

import (
	"errors"

	"biteback/internal/types"

	"github.com/gofiber/fiber/v2"
)

var errorStatuses = []struct {
	kind   error
	status int
}{
	{types.ErrValidation, fiber.StatusBadRequest},
	{types.ErrInvalidPayload, fiber.StatusBadRequest},
	{types.ErrUnauthorized, fiber.StatusUnauthorized},
	{types.ErrForbidden, fiber.StatusForbidden},
	{types.ErrNotFound, fiber.StatusNotFound},
	{types.ErrAlreadyRedeemed, fiber.StatusConflict},
	{types.ErrAlreadyCompleted, fiber.StatusConflict},
	{types.ErrConcurrentModification, fiber.StatusConflict},
	{types.ErrStore, fiber.StatusServiceUnavailable},
}

func statusFor(err error) int {
	for _, entry := range errorStatuses {
		if errors.Is(err, entry.kind) {
			return entry.status
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	return fiber.StatusInternalServerError
}

// respondError writes {"error": ...} with the status for the error's kind.
// Store and unclassified failures do not leak their details.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)

	message := err.Error()
	switch status {
	case fiber.StatusServiceUnavailable:
		message = "storage temporarily unavailable, retry later"
	case fiber.StatusInternalServerError:
		message = "internal server error"
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}
