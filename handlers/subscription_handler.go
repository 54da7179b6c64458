package handlers

import (
	"context"

	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type GuestRegistrationRequest struct {
	FullName string  `json:"full_name" validate:"required,min=2"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	Phone    *string `json:"phone,omitempty"`
}

type PurchaseSubscriptionRequest struct {
	PackageID string `json:"package_id" validate:"required,uuid"`
	CardToken string `json:"card_token,omitempty"`
	Recurring bool   `json:"recurring"`
	// Registration is required when the request carries no token.
	Registration *GuestRegistrationRequest `json:"registration,omitempty"`
}

type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
	purchases     *services.PurchaseService
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService, purchases *services.PurchaseService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, purchases: purchases}
}

func (h *SubscriptionHandler) Purchase(c *fiber.Ctx) error {
	var req PurchaseSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	purchase := services.PurchaseRequest{
		PackageID: uuid.MustParse(req.PackageID),
		CardToken: req.CardToken,
		Recurring: req.Recurring,
	}
	if actor, ok := middleware.CurrentActor(c); ok {
		purchase.CustomerID = &actor.ID
	}
	if req.Registration != nil {
		purchase.Guest = &services.GuestRegistration{
			FullName: req.Registration.FullName,
			Email:    req.Registration.Email,
			Password: req.Registration.Password,
			Phone:    req.Registration.Phone,
		}
	}

	result, err := h.purchases.Purchase(c.UserContext(), purchase)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if result.Intent.Status == models.IntentFailed {
		status = fiber.StatusPaymentRequired
	}
	return c.Status(status).JSON(result)
}

func (h *SubscriptionHandler) Mine(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)
	subscriptions, err := h.subscriptions.ListForCustomer(c.UserContext(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": subscriptions})
}

func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	return h.withSubscription(c, h.subscriptions.Get)
}

func (h *SubscriptionHandler) Pause(c *fiber.Ctx) error {
	return h.withSubscription(c, h.subscriptions.Pause)
}

func (h *SubscriptionHandler) Resume(c *fiber.Ctx) error {
	return h.withSubscription(c, h.subscriptions.Resume)
}

func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	return h.withSubscription(c, h.subscriptions.Cancel)
}

func (h *SubscriptionHandler) Payments(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid subscription ID")
	}

	payments, err := h.subscriptions.Payments(c.UserContext(), id, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": payments})
}

func (h *SubscriptionHandler) withSubscription(c *fiber.Ctx, op func(context.Context, uuid.UUID, services.Actor) (*models.Subscription, error)) error {
	actor, _ := middleware.CurrentActor(c)
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid subscription ID")
	}

	subscription, err := op(c.UserContext(), id, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(subscription)
}
