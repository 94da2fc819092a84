package repository

import (
	"strings"

	"github.com/google/uuid"
)

// inClause returns "?, ?, ?" for n values and the ids as query args.
func inClause(ids []uuid.UUID) (string, []interface{}) {
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	return strings.Join(placeholders, ", "), args
}
