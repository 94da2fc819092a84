package model

import (
	"time"

	"github.com/google/uuid"
)

// Event is a bookable occasion that belongs to a workspace.  Its seats
// and tables are EventObject rows.
//
// Fields:
//  ID          – primary key identifier.
//  WorkspaceID – owning workspace; membership in it decides the role.
//  Name        – display name.
//  StartsAt    – optional start time.
//  CreatedAt   – creation timestamp.
type Event struct {
	ID          uuid.UUID  // events.id
	WorkspaceID uuid.UUID  // events.workspace_id
	Name        string     // events.name
	StartsAt    *time.Time // events.starts_at (nullable)
	CreatedAt   time.Time  // events.created_at
}
