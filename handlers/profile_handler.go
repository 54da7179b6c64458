package handlers

import (
	"strings"

	"github.com/anjiri1684/studio_booking/middleware"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UpdateProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
}

type ProfileHandler struct {
	db *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)

	var user models.User
	if err := h.db.WithContext(c.UserContext()).Where("id = ?", actor.ID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(user)
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, _ := middleware.CurrentActor(c)

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	db := h.db.WithContext(c.UserContext())
	var user models.User
	if err := db.Where("id = ?", actor.ID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if err := db.Model(&user).Select("full_name", "phone").Updates(&user).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
