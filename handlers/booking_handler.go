package handlers

import (
	"strconv"
	"time"

	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	SlotID         string  `json:"slot_id" validate:"required,uuid"`
	SubscriptionID *string `json:"subscription_id,omitempty" validate:"omitempty,uuid"`
	PackageID      *string `json:"package_id,omitempty" validate:"omitempty,uuid"`
	TrainerID      *string `json:"trainer_id,omitempty" validate:"omitempty,uuid"`
	// CustomerID lets staff book on behalf of a customer.
	CustomerID *string `json:"customer_id,omitempty" validate:"omitempty,uuid"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type RescheduleBookingRequest struct {
	NewSlotID string `json:"new_slot_id" validate:"required,uuid"`
}

type BookingHandler struct {
	bookings *services.BookingService
}

func NewBookingHandler(bookings *services.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	in := services.CreateBookingInput{CustomerID: actor.ID, SlotID: uuid.MustParse(req.SlotID)}
	in.SubscriptionID, _ = parseOptionalID(req.SubscriptionID)
	in.TrainerID, _ = parseOptionalID(req.TrainerID)
	if packageID, _ := parseOptionalID(req.PackageID); packageID != nil {
		in.PackageID = *packageID
	}
	if customerID, _ := parseOptionalID(req.CustomerID); customerID != nil && *customerID != actor.ID {
		if !actor.IsStaff() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only staff can book for another customer", "code": services.CodeForbidden})
		}
		in.CustomerID = *customerID
	}

	booking, err := h.bookings.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(booking)
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid booking ID")
	}

	var req CancelBookingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Cannot parse JSON")
		}
		if err := validate.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	booking, err := h.bookings.Cancel(c.UserContext(), id, actor, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

func (h *BookingHandler) Reschedule(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid booking ID")
	}

	var req RescheduleBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	oldBooking, newBooking, err := h.bookings.Reschedule(c.UserContext(), id, uuid.MustParse(req.NewSlotID), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"booking": newBooking, "previous_booking": oldBooking})
}

func (h *BookingHandler) Confirm(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid booking ID")
	}

	booking, err := h.bookings.Confirm(c.UserContext(), id, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid booking ID")
	}

	booking, err := h.bookings.Get(c.UserContext(), id, actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(booking)
}

// List serves GET /bookings?subscription_id=&status=.
func (h *BookingHandler) List(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)

	filter := services.BookingFilter{Status: c.Query("status")}
	if raw := c.Query("subscription_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid subscription_id")
		}
		filter.SubscriptionID = &id
	}

	bookings, err := h.bookings.List(c.UserContext(), actor, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": bookings})
}

// Upcoming serves GET /bookings/upcoming-reminder?hours=. Without hours the
// configured reminder window applies.
func (h *BookingHandler) Upcoming(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)

	var window time.Duration
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 || hours > 24*30 {
			return badRequest(c, "hours must be between 1 and 720")
		}
		window = time.Duration(hours) * time.Hour
	}

	bookings, err := h.bookings.Upcoming(c.UserContext(), actor, window)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": bookings})
}

// AvailableSlots serves GET /slots/available?from=&to=&trainer_id= with
// RFC 3339 bounds.
func (h *BookingHandler) AvailableSlots(c *fiber.Ctx) error {
	var q services.SlotQuery
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "from must be an RFC 3339 timestamp")
		}
		q.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "to must be an RFC 3339 timestamp")
		}
		q.To = to
	}
	if raw := c.Query("trainer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid trainer_id")
		}
		q.TrainerID = &id
	}

	slots, err := h.bookings.AvailableSlots(c.UserContext(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": slots})
}
