package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/seatsync/internal/database"
)

// WorkspaceMemberRepo answers membership lookups for authorization.
type WorkspaceMemberRepo struct {
	db *database.DB
}

func NewWorkspaceMemberRepo(db *database.DB) *WorkspaceMemberRepo {
	return &WorkspaceMemberRepo{db: db}
}

// Role returns the stored role string of userID in workspaceID.  found is
// false when the user is not a member.
func (r *WorkspaceMemberRepo) Role(ctx context.Context, workspaceID, userID uuid.UUID) (role string, found bool, err error) {
	const q = `SELECT role FROM workspace_members WHERE workspace_id = ? AND user_id = ? LIMIT 1`
	err = r.db.QueryRowContext(ctx, r.db.Rebind(q), workspaceID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return role, true, nil
}
