package handlers

import (
	"errors"
	"log"

	"github.com/anjiri1684/studio_booking/payments"
	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
)

type PaymentHandler struct {
	resolver *services.PaymentResolver
}

func NewPaymentHandler(resolver *services.PaymentResolver) *PaymentHandler {
	return &PaymentHandler{resolver: resolver}
}

// HandlePaymentWebhook acknowledges every authentic event with 200, including
// duplicates and events for unknown transactions, so the gateway stops
// retrying them. Only a failed checksum or an internal error is refused.
func (h *PaymentHandler) HandlePaymentWebhook(c *fiber.Ctx) error {
	payload := c.Body()
	event, err := payments.ParseEvent(payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	outcome, err := h.resolver.HandleEvent(c.UserContext(), payload)
	if errors.Is(err, services.ErrInvalidSignature) {
		log.Printf("⚠️ Rejected webhook for transaction %s: bad checksum", event.Transaction.ID)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature", "code": services.CodeInvalidSignature})
	}
	if err != nil {
		log.Printf("🔥 Webhook for transaction %s failed: %v", event.Transaction.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not process webhook"})
	}

	log.Printf("Received webhook %s for transaction %s (%s): %s", event.Name, event.Transaction.ID, event.Transaction.Status, outcome)
	return c.JSON(fiber.Map{"message": "Webhook received", "outcome": outcome})
}
