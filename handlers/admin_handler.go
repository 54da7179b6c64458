package handlers

import (
	"errors"
	"time"

	"github.com/anjiri1684/studio_booking/jobs"
	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
)

type AdminPackageRequest struct {
	Name          string `json:"name" validate:"required"`
	SessionsCount int    `json:"sessions_count" validate:"required,gt=0"`
	PriceInCents  int64  `json:"price_in_cents" validate:"required,gt=0"`
	Currency      string `json:"currency,omitempty" validate:"omitempty,len=3"`
	ValidityDays  int    `json:"validity_days" validate:"required,gt=0"`
}

type CreateSlotRequest struct {
	StartsAt  string  `json:"starts_at" validate:"required"`
	EndsAt    string  `json:"ends_at" validate:"required"`
	TrainerID *string `json:"trainer_id,omitempty" validate:"omitempty,uuid"`
}

type BlockSlotRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

type AdminHandler struct {
	catalog *services.CatalogService
	runner  *jobs.Runner
}

func NewAdminHandler(catalog *services.CatalogService, runner *jobs.Runner) *AdminHandler {
	return &AdminHandler{catalog: catalog, runner: runner}
}

// PublicPackages lists what can be bought; it is mounted outside /admin.
func (h *AdminHandler) PublicPackages(c *fiber.Ctx) error {
	packages, err := h.catalog.ListPackages(c.UserContext(), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": packages})
}

func (h *AdminHandler) ListPackages(c *fiber.Ctx) error {
	packages, err := h.catalog.ListPackages(c.UserContext(), c.QueryBool("include_inactive"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": packages})
}

func (h *AdminHandler) CreatePackage(c *fiber.Ctx) error {
	var req AdminPackageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pkg, err := h.catalog.CreatePackage(c.UserContext(), services.NewPackage{
		Name:          req.Name,
		SessionsCount: req.SessionsCount,
		PriceInCents:  req.PriceInCents,
		Currency:      req.Currency,
		ValidityDays:  req.ValidityDays,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pkg)
}

func (h *AdminHandler) DeactivatePackage(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid package ID")
	}
	if err := h.catalog.DeactivatePackage(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) CreateSlot(c *fiber.Ctx) error {
	var req CreateSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return badRequest(c, "starts_at must be an RFC 3339 timestamp")
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return badRequest(c, "ends_at must be an RFC 3339 timestamp")
	}
	trainerID, _ := parseOptionalID(req.TrainerID)

	slot, err := h.catalog.CreateSlot(c.UserContext(), services.NewSlot{StartsAt: startsAt, EndsAt: endsAt, TrainerID: trainerID})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

func (h *AdminHandler) BlockSlot(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid slot ID")
	}
	var req BlockSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	slot, err := h.catalog.BlockSlot(c.UserContext(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slot)
}

func (h *AdminHandler) UnblockSlot(c *fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "Invalid slot ID")
	}

	slot, err := h.catalog.UnblockSlot(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slot)
}

func (h *AdminHandler) ListJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": h.runner.Names()})
}

// RunJob runs a batch job synchronously and returns its report.
func (h *AdminHandler) RunJob(c *fiber.Ctx) error {
	name := c.Params("job")
	report, err := h.runner.Run(c.UserContext(), name)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown job", "code": services.CodeNotFound})
	case errors.Is(err, jobs.ErrAlreadyRunning):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Job is already running"})
	case err != nil:
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"job": name, "report": report})
}
