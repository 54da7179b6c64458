package handlers

import (
	"errors"
	"log"

	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var statusByCode = map[string]int{
	services.CodeSlotUnavailable:      fiber.StatusConflict,
	services.CodeTooLateToCancel:      fiber.StatusUnprocessableEntity,
	services.CodeInvalidTransition:    fiber.StatusConflict,
	services.CodeGatewayError:         fiber.StatusBadGateway,
	services.CodeInvalidSignature:     fiber.StatusUnauthorized,
	services.CodeNotFound:             fiber.StatusNotFound,
	services.CodeForbidden:            fiber.StatusForbidden,
	services.CodeSubscriptionUnusable: fiber.StatusUnprocessableEntity,
	services.CodeValidation:           fiber.StatusBadRequest,
}

// respondError answers with the status for a service error code. Anything
// else is logged and hidden behind a 500.
func respondError(c *fiber.Ctx, err error) error {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		status, ok := statusByCode[svcErr.Code]
		if !ok {
			status = fiber.StatusInternalServerError
		}
		if svcErr.Err != nil {
			log.Printf("⚠️ %s %s: %v", c.Method(), c.Path(), svcErr.Err)
		}
		return c.Status(status).JSON(fiber.Map{"error": svcErr.Message, "code": svcErr.Code})
	}

	log.Printf("🔥 %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message, "code": services.CodeValidation})
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(param))
	return id, err == nil
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
