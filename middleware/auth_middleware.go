package middleware

import (
	"strings"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/anjiri1684/studio_booking/services"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

// OptionalAuth validates a bearer token when one is sent and lets anonymous
// requests through untouched.
func OptionalAuth(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok || actor.Role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden: Admin access required",
			})
		}
		return c.Next()
	}
}

// CurrentActor reads the user_id and role claims of the validated token. It
// reports false for anonymous requests, for tokens missing either claim and
// for the internal system role.
func CurrentActor(c *fiber.Ctx) (services.Actor, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return services.Actor{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return services.Actor{}, false
	}

	rawID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil || role == "" || role == services.SystemActor.Role {
		return services.Actor{}, false
	}
	return services.Actor{ID: id, Role: role}, true
}
