package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/model"
)

// Identity is either Authenticated or Guest.  The interface is sealed;
// consumers switch on the two concrete types.
type Identity interface {
	identity()
}

// Authenticated carries a validated session.
type Authenticated struct {
	Session model.SessionInfo
}

// Guest is a connection without a session.  Guests see broadcasts but
// cannot issue commands that need a user.
type Guest struct{}

func (Authenticated) identity() {}
func (Guest) identity()         {}

// UserOf returns the user behind id, if any.
func UserOf(id Identity) (uuid.UUID, bool) {
	switch v := id.(type) {
	case Authenticated:
		return v.Session.UserID, true
	case Guest:
		return uuid.Nil, false
	}
	return uuid.Nil, false
}

// Role is a workspace scoped permission level.  Higher values include the
// lower ones.
type Role int

const (
	RoleGuest Role = iota
	RoleAttendee
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAttendee:
		return "attendee"
	}
	return "guest"
}

// ParseRole maps a stored role string.  Unknown values are RoleGuest.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "attendee":
		return RoleAttendee
	}
	return RoleGuest
}

// MembershipStore looks up a user's role string in a workspace.
type MembershipStore interface {
	Role(ctx context.Context, workspaceID, userID uuid.UUID) (role string, found bool, err error)
}

// RoleResolver derives workspace roles from membership rows.
type RoleResolver struct {
	members MembershipStore
	log     *slog.Logger
}

func NewRoleResolver(members MembershipStore, log *slog.Logger) *RoleResolver {
	if log == nil {
		log = slog.Default()
	}
	return &RoleResolver{members: members, log: log}
}

// WorkspaceRole returns the role of id in workspaceID.  Guests and
// non-members are RoleGuest.  A store failure is returned so privileged
// commands can fail instead of running with a downgraded role.
func (r *RoleResolver) WorkspaceRole(ctx context.Context, id Identity, workspaceID uuid.UUID) (Role, error) {
	switch v := id.(type) {
	case Guest:
		return RoleGuest, nil
	case Authenticated:
		raw, found, err := r.members.Role(ctx, workspaceID, v.Session.UserID)
		if err != nil {
			return RoleGuest, fmt.Errorf("workspace role: %w", err)
		}
		if !found {
			return RoleGuest, nil
		}
		return ParseRole(raw), nil
	}
	return RoleGuest, nil
}

// JoinRole is WorkspaceRole for connection admission: errors degrade to
// RoleGuest and are logged.
func (r *RoleResolver) JoinRole(ctx context.Context, id Identity, workspaceID uuid.UUID) Role {
	role, err := r.WorkspaceRole(ctx, id, workspaceID)
	if err != nil {
		r.log.Warn("role lookup failed, joining as guest", "workspace_id", workspaceID, "err", err)
		return RoleGuest
	}
	return role
}
