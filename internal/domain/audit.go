package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord logs a configuration or field mutation inside an organization.
type AuditRecord struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ActorID    uuid.UUID
	EntityType EntityType
	EntityID   *uuid.UUID
	Action     AuditAction
	Changes    map[string]any
	CreatedAt  time.Time
}
