package quiz

import (
	"github.com/google/uuid"
)

// AttachTeacher replaces the session's teacher connection. The teacher may
// drop and rejoin at any point, including after the quiz is stopped.
func (s *Session) AttachTeacher(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teacher = conn
}

// Teacher returns the currently attached teacher connection, or nil.
func (s *Session) Teacher() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teacher
}

// Stage returns the session stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Recipients returns the teacher connection (if attached) followed by
// every student connection in join order. Used for session-wide fan-out.
func (s *Session) Recipients() []Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns := make([]Conn, 0, len(s.joinOrder)+1)
	if s.teacher != nil {
		conns = append(conns, s.teacher)
	}
	for _, id := range s.joinOrder {
		if p := s.participants[id]; p.conn != nil {
			conns = append(conns, p.conn)
		}
	}
	return conns
}

// StartQuestion appends a new question in MCQ stage with answer slots for
// every student currently present, and makes it current. A question still
// in EXPLANATION is marked DONE first. Returns false on a stopped session.
func (s *Session) StartQuestion(text string, optionCount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == StageStopped {
		return false
	}

	if prev := s.currentLocked(); prev != nil && prev.stage == StageExplanation {
		prev.stage = StageDone
	}

	q := &Question{
		Number:      len(s.questions) + 1,
		Text:        text,
		OptionCount: optionCount,
		stage:       StageMCQ,
		answers:     make(map[string]*Answer),
	}
	for _, id := range s.joinOrder {
		upsertAnswer(q, s.participants[id])
	}

	s.questions = append(s.questions, q)
	s.current = len(s.questions) - 1
	s.stage = StageMCQ
	return true
}

// AdvanceToExplanation moves the session (and the current question, if it
// is still collecting MCQ answers) to the explanation stage. Returns false
// on a stopped session.
func (s *Session) AdvanceToExplanation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage == StageStopped {
		return false
	}

	s.stage = StageExplanation
	if q := s.currentLocked(); q != nil && q.stage == StageMCQ {
		q.stage = StageExplanation
	}
	return true
}

// Stop freezes the session: no later command can mutate its questions or
// answers, though export and teacher rejoin keep working. Returns the
// student connections so the caller can notify and then close them.
func (s *Session) Stop() []Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stage = StageStopped

	conns := make([]Conn, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		if p := s.participants[id]; p.conn != nil {
			conns = append(conns, p.conn)
		}
	}
	return conns
}

// Join adds a student under a fresh id. If a question is currently active
// an empty answer slot is created immediately so the roster and answer
// list stay aligned. Joining a stopped session yields a participant but
// never touches the frozen answer records.
func (s *Session) Join(username string, conn Conn) *Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Participant{
		ID:       uuid.NewString(),
		Username: username,
		conn:     conn,
	}
	s.participants[p.ID] = p
	s.joinOrder = append(s.joinOrder, p.ID)

	if s.stage != StageStopped {
		if q := s.currentLocked(); q != nil {
			upsertAnswer(q, p)
		}
	}
	return p
}

// SubmitMCQ records a student's option pick on the current question,
// overwriting any earlier pick. The slot is created lazily for late
// joiners. Returns false when the session is stopped, no question is
// active, or the student id is unknown.
func (s *Session) SubmitMCQ(participantID string, answer int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.upsertCurrentLocked(participantID)
	if slot == nil {
		return false
	}
	slot.MCQ = &answer
	return true
}

// SubmitExplanation records a student's free-text explanation on the
// current question, overwriting any earlier text. Accepted regardless of
// the question's stage.
func (s *Session) SubmitExplanation(participantID, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.upsertCurrentLocked(participantID)
	if slot == nil {
		return false
	}
	slot.Explanation = text
	return true
}

// View builds the teacher dashboard snapshot: stage, current question,
// flattened answers in slot insertion order, and the roster in join order.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Stage:        s.stage,
		Answers:      []AnswerRecord{},
		StudentNames: make([]string, 0, len(s.joinOrder)),
	}
	if q := s.currentLocked(); q != nil {
		v.QuestionText = q.Text
		v.OptionCount = q.OptionCount
		v.Answers = snapshotAnswers(q)
	}
	for _, id := range s.joinOrder {
		v.StudentNames = append(v.StudentNames, s.participants[id].Username)
	}
	return v
}

// Export snapshots every question with its answer records, in question
// then slot insertion order.
func (s *Session) Export() []QuestionExport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]QuestionExport, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, QuestionExport{
			Number:  q.Number,
			Text:    q.Text,
			Answers: snapshotAnswers(q),
		})
	}
	return out
}

// CurrentQuestionNumber reports the 1-based number of the active question,
// or 0 before the first question starts.
func (s *Session) CurrentQuestionNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q := s.currentLocked(); q != nil {
		return q.Number
	}
	return 0
}

func (s *Session) currentLocked() *Question {
	if s.current < 0 {
		return nil
	}
	return s.questions[s.current]
}

// upsertCurrentLocked resolves the answer slot for a submit command:
// session not stopped, a question active, and the participant known.
func (s *Session) upsertCurrentLocked(participantID string) *Answer {
	if s.stage == StageStopped {
		return nil
	}
	q := s.currentLocked()
	if q == nil {
		return nil
	}
	p, ok := s.participants[participantID]
	if !ok {
		return nil
	}
	return upsertAnswer(q, p)
}

// upsertAnswer returns the participant's slot on q, creating it on first
// use. Idempotent: repeated calls never duplicate a record, which is what
// lets out-of-order arrival succeed without an error path.
func upsertAnswer(q *Question, p *Participant) *Answer {
	if slot, ok := q.answers[p.ID]; ok {
		return slot
	}
	slot := &Answer{Username: p.Username}
	q.answers[p.ID] = slot
	q.answerOrder = append(q.answerOrder, p.ID)
	return slot
}

// snapshotAnswers copies q's answer slots in insertion order.
func snapshotAnswers(q *Question) []AnswerRecord {
	records := make([]AnswerRecord, 0, len(q.answerOrder))
	for _, id := range q.answerOrder {
		slot := q.answers[id]
		records = append(records, AnswerRecord{
			Username:    slot.Username,
			MCQ:         slot.MCQ,
			Explanation: slot.Explanation,
		})
	}
	return records
}
