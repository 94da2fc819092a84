package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatsync/internal/repository"
)

var positionCols = []string{"event_object_id", "position_x", "position_y", "position_z", "rotation"}

func TestMoveObject(t *testing.T) {
	db, mock := setupSQL(t)
	m := NewLayoutMutator(db)
	eventID, obj := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE object_positions SET position_x = ?")).
		WithArgs(1.5, 2.0, 0.0, obj, eventID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM object_positions p")).
		WithArgs(obj, eventID).
		WillReturnRows(sqlmock.NewRows(positionCols).AddRow(obj.String(), 1.5, 2.0, 0.0, 90.0))

	p, err := m.MoveObject(context.Background(), eventID, obj, 1.5, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, obj, p.EventObjectID)
	assert.Equal(t, 1.5, p.X)
	assert.Equal(t, 90.0, p.Rotation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveObject_UnknownObject(t *testing.T) {
	db, mock := setupSQL(t)
	m := NewLayoutMutator(db)
	eventID, obj := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE object_positions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM object_positions p")).
		WillReturnRows(sqlmock.NewRows(positionCols))

	_, err := m.MoveObject(context.Background(), eventID, obj, 1, 1, 1)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
