package quiz

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse/pkg/http/ws"
)

// fakeConn records sent messages and close calls, standing in for a live
// WebSocket connection.
type fakeConn struct {
	mu     sync.Mutex
	sent   []ws.Message
	closed bool
	fail   bool
}

func (c *fakeConn) Send(msg ws.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ws.ErrConnectionClosed
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) messages(msgType string) []ws.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ws.Message
	for _, m := range c.sent {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newSession(t *testing.T) *Session {
	t.Helper()
	return NewRegistry(zerolog.Nop()).Create()
}

func TestStartQuestionNumbersAreSequential(t *testing.T) {
	sess := newSession(t)

	for i := 1; i <= 5; i++ {
		require.True(t, sess.StartQuestion("q", 4))
		assert.Equal(t, i, sess.CurrentQuestionNumber())
	}

	exported := sess.Export()
	require.Len(t, exported, 5)
	for i, q := range exported {
		assert.Equal(t, i+1, q.Number)
	}
}

func TestJoinBeforeAnyQuestionHasNoAnswerSlots(t *testing.T) {
	sess := newSession(t)

	sess.Join("Ada", &fakeConn{})
	require.True(t, sess.StartQuestion("first", 4))

	v := sess.View()
	require.Len(t, v.Answers, 1)
	assert.Equal(t, "Ada", v.Answers[0].Username)

	// A question started before anyone joined would have had zero slots.
	empty := NewRegistry(zerolog.Nop()).Create()
	require.True(t, empty.StartQuestion("lonely", 2))
	assert.Empty(t, empty.View().Answers)
}

func TestJoinDuringActiveQuestionCreatesEmptySlot(t *testing.T) {
	sess := newSession(t)
	require.True(t, sess.StartQuestion("2+2?", 4))

	p := sess.Join("Sam", &fakeConn{})
	require.NotEmpty(t, p.ID)

	v := sess.View()
	require.Len(t, v.Answers, 1)
	assert.Equal(t, "Sam", v.Answers[0].Username)
	assert.Nil(t, v.Answers[0].MCQ)
	assert.Empty(t, v.Answers[0].Explanation)
}

func TestSubmitMCQOverwritesInsteadOfDuplicating(t *testing.T) {
	sess := newSession(t)
	p := sess.Join("Sam", &fakeConn{})
	require.True(t, sess.StartQuestion("2+2?", 4))

	require.True(t, sess.SubmitMCQ(p.ID, 1))
	require.True(t, sess.SubmitMCQ(p.ID, 3))

	v := sess.View()
	require.Len(t, v.Answers, 1)
	require.NotNil(t, v.Answers[0].MCQ)
	assert.Equal(t, 3, *v.Answers[0].MCQ)
}

func TestSubmitWithoutActiveQuestionIsNoop(t *testing.T) {
	sess := newSession(t)
	p := sess.Join("Sam", &fakeConn{})

	assert.False(t, sess.SubmitMCQ(p.ID, 2))
	assert.False(t, sess.SubmitExplanation(p.ID, "why"))
}

func TestSubmitUnknownParticipantIsNoop(t *testing.T) {
	sess := newSession(t)
	require.True(t, sess.StartQuestion("q", 3))

	assert.False(t, sess.SubmitMCQ("nobody", 1))
	assert.Empty(t, sess.View().Answers)
}

func TestLateJoinerSubmitCreatesSlotLazily(t *testing.T) {
	sess := newSession(t)
	require.True(t, sess.StartQuestion("q1", 4))
	require.True(t, sess.StartQuestion("q2", 4))

	p := sess.Join("Late", &fakeConn{})
	require.True(t, sess.SubmitExplanation(p.ID, "sorry, traffic"))

	exported := sess.Export()
	require.Len(t, exported, 2)
	assert.Empty(t, exported[0].Answers, "no slot on the finished question")
	require.Len(t, exported[1].Answers, 1)
	assert.Equal(t, "sorry, traffic", exported[1].Answers[0].Explanation)
}

func TestExplanationAcceptedDuringMCQStage(t *testing.T) {
	// Explanations are deliberately accepted regardless of the question
	// stage.
	sess := newSession(t)
	p := sess.Join("Sam", &fakeConn{})
	require.True(t, sess.StartQuestion("q", 4))
	require.Equal(t, StageMCQ, sess.Stage())

	require.True(t, sess.SubmitExplanation(p.ID, "early thoughts"))
	assert.Equal(t, "early thoughts", sess.View().Answers[0].Explanation)
}

func TestAdvanceToExplanationMovesSessionAndQuestion(t *testing.T) {
	sess := newSession(t)
	require.True(t, sess.StartQuestion("q", 4))

	require.True(t, sess.AdvanceToExplanation())
	assert.Equal(t, StageExplanation, sess.Stage())

	// Starting the next question marks the previous one DONE and returns
	// the session to MCQ.
	require.True(t, sess.StartQuestion("q2", 4))
	assert.Equal(t, StageMCQ, sess.Stage())
	assert.Equal(t, 2, sess.CurrentQuestionNumber())
}

func TestStopFreezesSessionButKeepsExport(t *testing.T) {
	sess := newSession(t)
	student := &fakeConn{}
	p := sess.Join("Sam", student)
	require.True(t, sess.StartQuestion("q", 4))
	require.True(t, sess.SubmitMCQ(p.ID, 2))

	conns := sess.Stop()
	require.Len(t, conns, 1)
	assert.Equal(t, StageStopped, sess.Stage())

	assert.False(t, sess.StartQuestion("more", 4))
	assert.False(t, sess.AdvanceToExplanation())
	assert.False(t, sess.SubmitMCQ(p.ID, 3))
	assert.False(t, sess.SubmitExplanation(p.ID, "late"))

	late := sess.Join("Tardy", &fakeConn{})
	require.NotNil(t, late)

	exported := sess.Export()
	require.Len(t, exported, 1)
	require.Len(t, exported[0].Answers, 1, "joining a stopped session must not create slots")
	require.NotNil(t, exported[0].Answers[0].MCQ)
	assert.Equal(t, 2, *exported[0].Answers[0].MCQ)
}

func TestUsernameSnapshotSurvivesRoster(t *testing.T) {
	sess := newSession(t)
	p := sess.Join("Original", &fakeConn{})
	require.True(t, sess.StartQuestion("q", 4))

	// The slot owns a copy of the name, not a reference to the
	// participant record.
	p.Username = "Renamed"
	assert.Equal(t, "Original", sess.View().Answers[0].Username)
}

func TestViewRosterInJoinOrder(t *testing.T) {
	sess := newSession(t)
	sess.Join("Ada", &fakeConn{})
	sess.Join("Bea", &fakeConn{})
	sess.Join("Cyd", &fakeConn{})

	v := sess.View()
	assert.Equal(t, []string{"Ada", "Bea", "Cyd"}, v.StudentNames)
	assert.Equal(t, StageWaiting, v.Stage)
}

func TestRecipientsTeacherFirst(t *testing.T) {
	sess := newSession(t)
	teacher := &fakeConn{}
	sess.AttachTeacher(teacher)
	sess.Join("Ada", &fakeConn{})
	sess.Join("Bea", &fakeConn{})

	conns := sess.Recipients()
	require.Len(t, conns, 3)
	assert.Same(t, teacher, conns[0].(*fakeConn))
}
