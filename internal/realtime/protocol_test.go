package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatsync/internal/model"
)

func TestDecodeCommand(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()

	cmd, err := DecodeCommand([]byte(`{"action":"reserve","request_id":"r1","seat_ids":["` + s1.String() + `","` + s2.String() + `","` + s1.String() + `"]}`))
	require.NoError(t, err)
	assert.Equal(t, ReserveCommand{ID: "r1", SeatIDs: []uuid.UUID{s1, s2}}, cmd)

	cmd, err = DecodeCommand([]byte(`{"action":"release","request_id":"r2","seat_id":"` + s1.String() + `"}`))
	require.NoError(t, err)
	assert.Equal(t, ReleaseCommand{ID: "r2", SeatID: s1}, cmd)

	cmd, err = DecodeCommand([]byte(`{"action":"moveObjectInLayout","request_id":"r3","seat_id":"` + s2.String() + `","x":1.5,"y":0,"z":-2}`))
	require.NoError(t, err)
	assert.Equal(t, MoveCommand{ID: "r3", SeatID: s2, X: 1.5, Y: 0, Z: -2}, cmd)
	assert.Equal(t, ActionMove, cmd.Action())
}

func TestDecodeCommand_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		reqID string
	}{
		{"not json", `{not json`, UnknownRequestID},
		{"missing request id", `{"action":"reserve","seat_ids":[]}`, UnknownRequestID},
		{"numeric request id", `{"action":"reserve","request_id":7}`, UnknownRequestID},
		{"bad uuid", `{"action":"release","request_id":"r9","seat_id":"nope"}`, "r9"},
		{"unknown action", `{"action":"dance","request_id":"r4"}`, "r4"},
		{"missing action", `{"request_id":"r5"}`, "r5"},
		{"empty seat list", `{"action":"reserve","request_id":"r6","seat_ids":[]}`, "r6"},
		{"move without z", `{"action":"moveObjectInLayout","request_id":"r7","seat_id":"` + uuid.NewString() + `","x":1,"y":2}`, "r7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tc.frame))
			var de *DecodeError
			require.True(t, errors.As(err, &de), "want DecodeError, got %v", err)
			assert.Equal(t, tc.reqID, de.RequestID)
		})
	}
}

func TestServerMessageJSON(t *testing.T) {
	seat, by := uuid.MustParse("11111111-1111-1111-1111-111111111111"), uuid.MustParse("22222222-2222-2222-2222-222222222222")

	b, err := json.Marshal(Ack("r1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ack","request_id":"r1"}`, string(b))

	b, err = json.Marshal(Error("r2", CodeConflict, "One or more seats are no longer available"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","request_id":"r2","code":"409","message":"One or more seats are no longer available"}`, string(b))

	b, err = json.Marshal(Event(SeatReserved([]uuid.UUID{seat}, by)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","payload":{"type":"seat_reserved","seat_ids":["`+seat.String()+`"],"by":"`+by.String()+`"}}`, string(b))

	b, err = json.Marshal(Event(SeatMoved(model.Position{EventObjectID: seat, X: 0, Y: 3, Z: 0})))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","payload":{"type":"seat_moved","seat_id":"`+seat.String()+`","x":0,"y":3,"z":0}}`, string(b))
}
