package model

import "github.com/google/uuid"

// WorkspaceMember grants a user a role inside a workspace.  Role is stored
// as free text ("admin", "attendee"); unknown values grant nothing.
type WorkspaceMember struct {
	WorkspaceID uuid.UUID // workspace_members.workspace_id
	UserID      uuid.UUID // workspace_members.user_id
	Role        string    // workspace_members.role
}
