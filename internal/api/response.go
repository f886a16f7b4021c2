package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// writeError maps service sentinels onto HTTP statuses. Everything
// unrecognized is a 500 with the detail kept out of the response body.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, rfq.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, rfq.ErrValidation),
		errors.Is(err, rfq.ErrInvalidTransition),
		errors.Is(err, rfq.ErrStatusConflict),
		errors.Is(err, rfq.ErrDuplicateIdempotencyKey),
		errors.Is(err, rfq.ErrDuplicateProviderMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, rfq.ErrAuth):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
