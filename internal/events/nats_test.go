package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func TestPublisher_Subjects(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "")

	p.Outcome(types.AnalysisOutcome{State: types.StateErrorDetected, MicroAssist: "Fix the typo", Screenshot: []byte{1, 2}})
	p.ChatTurn(types.ChatTurn{Role: types.RoleModel, Text: "hello"})
	p.Exhausted(coach.OpAnalysis)
	p.Cycle(coach.CycleSuccess)

	require.Len(t, conn.msgs, 3)
	assert.Equal(t, "screenbuddy.events.outcome", conn.msgs[0].subject)
	assert.Equal(t, "screenbuddy.events.chat", conn.msgs[1].subject)
	assert.Equal(t, "screenbuddy.events.exhausted", conn.msgs[2].subject)

	var ev Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &ev))
	require.NotNil(t, ev.Outcome)
	assert.Equal(t, "Fix the typo", ev.Outcome.MicroAssist)
	assert.Nil(t, ev.Outcome.Screenshot)

	require.NoError(t, json.Unmarshal(conn.msgs[2].data, &ev))
	assert.Equal(t, coach.OpAnalysis, ev.Op)
}

func TestPublisher_ErrorsAreDropped(t *testing.T) {
	p := NewPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "x")
	assert.NotPanics(t, func() { p.ChatTurn(types.ChatTurn{Role: types.RoleUser, Text: "hi"}) })
	assert.NoError(t, p.Close())
}
