package quiz

import (
	"sync"

	"github.com/classpulse/classpulse/pkg/http/ws"
)

// Stage of a session or question lifecycle.
type Stage string

const (
	StageWaiting     Stage = "WAITING"
	StageMCQ         Stage = "MCQ"
	StageExplanation Stage = "EXPLANATION"
	StageDone        Stage = "DONE"
	StageStopped     Stage = "STOPPED"
)

// Conn is the capability a session needs from a client connection. Both
// the real WebSocket connection and test stubs satisfy it; delivery is
// fire-and-forget, so callers tolerate a failed Send.
type Conn interface {
	Send(ws.Message) error
	Close()
}

// Session is one live quiz, identified by a short code. The teacher
// connection is replaceable on rejoin; student connections are not. All
// mutation is serialized by the session mutex, so cross-session commands
// run fully in parallel.
type Session struct {
	Code string

	mu           sync.Mutex
	teacher      Conn
	stage        Stage
	current      int // index into questions, -1 before the first question
	questions    []*Question
	participants map[string]*Participant
	joinOrder    []string // participant ids in insertion order
}

// Question is one prompt in a session, numbered from 1 in insertion order.
// Answer slots are created lazily: for everyone present when the question
// starts, and on demand for students who join or answer late.
type Question struct {
	Number      int
	Text        string
	OptionCount int

	stage       Stage
	answers     map[string]*Answer
	answerOrder []string // participant ids in slot insertion order
}

// Answer is one student's record for one question. Username is a snapshot
// taken at slot creation, not a live reference to the participant.
type Answer struct {
	Username    string
	MCQ         *int // nil until the student picks an option
	Explanation string
}

// Participant is one joined student.
type Participant struct {
	ID       string
	Username string
	conn     Conn
}

// AnswerRecord is a flattened copy of an answer slot, emitted in slot
// insertion order for deterministic consumption.
type AnswerRecord struct {
	Username    string
	MCQ         *int
	Explanation string
}

// View is the teacher dashboard snapshot recomputed after nearly every
// mutating command.
type View struct {
	Stage        Stage
	QuestionText string
	OptionCount  int
	Answers      []AnswerRecord
	StudentNames []string
}

// QuestionExport is one question plus its answer records, used by the CSV
// exporter.
type QuestionExport struct {
	Number  int
	Text    string
	Answers []AnswerRecord
}
