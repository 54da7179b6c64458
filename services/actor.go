package services

import (
	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
)

// Actor is whoever asked for an operation: an authenticated user or the system
// (jobs, webhook resolution).
type Actor struct {
	ID   uuid.UUID
	Role string
}

var SystemActor = Actor{Role: "system"}

func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdmin || a.Role == SystemActor.Role
}

func (a Actor) canAccess(ownerID uuid.UUID) bool {
	return a.IsStaff() || a.ID == ownerID
}
