package quiz

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/classpulse/classpulse/pkg/http/ws"
)

// Handler decodes inbound WebSocket messages into commands, applies them to
// the session registry, and fans resulting events out to the teacher and
// student connections.
type Handler struct {
	registry *Registry
	hub      *ws.Hub
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHandler creates the message router. metrics may not be nil.
func NewHandler(registry *Registry, hub *ws.Hub, metrics *Metrics, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleConnection runs the read loop for a new WebSocket connection and
// unregisters it from the liveness hub on disconnect. Orphaned session or
// participant records are not cleaned up here; the liveness supervisor and
// session stop commands bound their lifetime.
func (h *Handler) HandleConnection(conn *ws.Connection) {
	h.hub.Register(conn)

	go conn.WritePump()

	conn.ReadPump(func(msg ws.Message) {
		h.handleMessage(conn, msg)
	})

	h.hub.Unregister(conn)
	conn.Close()
}

// handleMessage routes one decoded command. Unknown types are ignored.
func (h *Handler) handleMessage(c Conn, msg ws.Message) {
	h.metrics.MessagesRouted.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case ws.TypeTeacherCreateSession:
		h.handleCreateSession(c)
	case ws.TypeTeacherStartMCQ:
		h.handleStartMCQ(msg.Payload)
	case ws.TypeTeacherNextExplanation:
		h.handleNextExplanation(msg.Payload)
	case ws.TypeTeacherStopQuiz:
		h.handleStopQuiz(msg.Payload, false)
	case ws.TypeTeacherClosePage:
		h.handleStopQuiz(msg.Payload, true)
	case ws.TypeTeacherDownloadCSV:
		h.handleDownloadCSV(c, msg.Payload)
	case ws.TypeTeacherRejoinSession:
		h.handleRejoinSession(c, msg.Payload)
	case ws.TypeStudentJoinSession:
		h.handleJoinSession(c, msg.Payload)
	case ws.TypeStudentSubmitMCQ:
		h.handleSubmitMCQ(msg.Payload)
	case ws.TypeStudentExplanationUpdate:
		h.handleExplanationUpdate(msg.Payload)
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")
	}
}

func (h *Handler) handleCreateSession(c Conn) {
	sess := h.registry.Create()
	sess.AttachTeacher(c)
	h.metrics.SessionsCreated.Inc()

	h.send(c, ws.NewMessage(ws.TypeSessionCreated, ws.SessionCreatedPayload{
		SessionCode: sess.Code,
	}))
}

func (h *Handler) handleStartMCQ(payload json.RawMessage) {
	var req ws.StartMCQPayload
	if !h.decode(payload, &req) {
		return
	}

	// Unknown session codes are silently ignored for in-session teacher
	// commands; only join, export and rejoin report back.
	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		return
	}
	if !sess.StartQuestion(req.QuestionText, req.Options) {
		return
	}

	h.logger.Info().
		Str("session_code", sess.Code).
		Int("question_number", sess.CurrentQuestionNumber()).
		Msg("question started")

	h.broadcast(sess, ws.NewMessage(ws.TypeMCQStarted, ws.MCQStartedPayload{
		QuestionText: req.QuestionText,
		Options:      req.Options,
	}))
	h.sendTeacherView(sess)
}

func (h *Handler) handleNextExplanation(payload json.RawMessage) {
	var req ws.SessionRefPayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		return
	}
	if !sess.AdvanceToExplanation() {
		return
	}

	h.broadcast(sess, ws.NewMessage(ws.TypeShowExplanationInput, nil))
	h.sendTeacherView(sess)
}

// handleStopQuiz freezes the session and closes every student connection.
// With deleteRecord the session is also removed from the registry;
// otherwise it is retained for export and teacher rejoin.
func (h *Handler) handleStopQuiz(payload json.RawMessage, deleteRecord bool) {
	var req ws.SessionRefPayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		return
	}

	students := sess.Stop()
	h.broadcast(sess, ws.NewMessage(ws.TypeQuizStopped, nil))
	for _, conn := range students {
		conn.Close()
	}

	if deleteRecord {
		h.registry.Delete(sess.Code)
	}

	h.logger.Info().
		Str("session_code", sess.Code).
		Bool("deleted", deleteRecord).
		Msg("session stopped")
}

func (h *Handler) handleDownloadCSV(c Conn, payload json.RawMessage) {
	var req ws.SessionRefPayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		h.sendError(c, "session not found")
		return
	}

	csv, filename := ExportCSV(sess, h.now())
	h.send(c, ws.NewMessage(ws.TypeCSVData, ws.CSVDataPayload{
		CSV:      csv,
		Filename: filename,
	}))
}

func (h *Handler) handleRejoinSession(c Conn, payload json.RawMessage) {
	var req ws.SessionRefPayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		h.sendError(c, "session not found")
		return
	}

	sess.AttachTeacher(c)
	h.sendTeacherView(sess)
}

func (h *Handler) handleJoinSession(c Conn, payload json.RawMessage) {
	var req ws.JoinSessionPayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		h.sendError(c, "session not found")
		return
	}

	p := sess.Join(req.Username, c)
	h.metrics.StudentsJoined.Inc()

	h.send(c, ws.NewMessage(ws.TypeJoinedSession, ws.JoinedSessionPayload{
		StudentID:   p.ID,
		SessionCode: sess.Code,
		Stage:       string(sess.Stage()),
	}))
	h.sendTeacherView(sess)
}

func (h *Handler) handleSubmitMCQ(payload json.RawMessage) {
	var req ws.SubmitMCQPayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		return
	}
	if !sess.SubmitMCQ(req.StudentID, req.Answer) {
		return
	}
	h.sendTeacherView(sess)
}

func (h *Handler) handleExplanationUpdate(payload json.RawMessage) {
	var req ws.ExplanationUpdatePayload
	if !h.decode(payload, &req) {
		return
	}

	sess, ok := h.registry.Get(req.SessionCode)
	if !ok {
		return
	}
	if !sess.SubmitExplanation(req.StudentID, req.Explanation) {
		return
	}
	h.sendTeacherView(sess)
}

// broadcast delivers msg to the teacher and every student connection of the
// session. Each recipient is independent: a failed send is logged and the
// rest still get the event.
func (h *Handler) broadcast(sess *Session, msg ws.Message) {
	for _, conn := range sess.Recipients() {
		h.send(conn, msg)
	}
}

// sendTeacherView recomputes the dashboard snapshot and sends it to the
// teacher connection only.
func (h *Handler) sendTeacherView(sess *Session) {
	teacher := sess.Teacher()
	if teacher == nil {
		return
	}

	v := sess.View()
	answers := make([]ws.AnswerView, 0, len(v.Answers))
	for _, rec := range v.Answers {
		answers = append(answers, ws.AnswerView{
			Username:    rec.Username,
			MCQAnswer:   rec.MCQ,
			Explanation: rec.Explanation,
		})
	}

	h.send(teacher, ws.NewMessage(ws.TypeTeacherViewUpdate, ws.TeacherViewPayload{
		SessionCode:  sess.Code,
		Stage:        string(v.Stage),
		QuestionText: v.QuestionText,
		MCQOptions:   v.OptionCount,
		Answers:      answers,
		StudentNames: v.StudentNames,
	}))
}

func (h *Handler) send(c Conn, msg ws.Message) {
	if err := c.Send(msg); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("send failed")
	}
}

func (h *Handler) sendError(c Conn, message string) {
	h.send(c, ws.NewMessage(ws.TypeError, ws.ErrorPayload{Message: message}))
}

// decode unmarshals a command payload. Malformed payloads are dropped with
// a local diagnostic and no client notification.
func (h *Handler) decode(payload json.RawMessage, dst any) bool {
	if err := json.Unmarshal(payload, dst); err != nil {
		h.logger.Debug().Err(err).Msg("dropping malformed payload")
		return false
	}
	return true
}
