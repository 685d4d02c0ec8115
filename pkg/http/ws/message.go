package ws

import "encoding/json"

// MessageType constants for the WebSocket protocol.
const (
	// Teacher -> Server
	TypeTeacherCreateSession   = "TEACHER_CREATE_SESSION"
	TypeTeacherStartMCQ        = "TEACHER_START_MCQ"
	TypeTeacherNextExplanation = "TEACHER_NEXT_EXPLANATION"
	TypeTeacherStopQuiz        = "TEACHER_STOP_QUIZ"
	TypeTeacherClosePage       = "TEACHER_CLOSE_PAGE"
	TypeTeacherDownloadCSV     = "TEACHER_DOWNLOAD_CSV"
	TypeTeacherRejoinSession   = "TEACHER_REJOIN_SESSION"

	// Student -> Server
	TypeStudentJoinSession       = "STUDENT_JOIN_SESSION"
	TypeStudentSubmitMCQ         = "STUDENT_SUBMIT_MCQ"
	TypeStudentExplanationUpdate = "STUDENT_EXPLANATION_UPDATE"

	// Server -> Client
	TypeSessionCreated       = "SESSION_CREATED"
	TypeMCQStarted           = "MCQ_STARTED"
	TypeShowExplanationInput = "SHOW_EXPLANATION_INPUT"
	TypeQuizStopped          = "QUIZ_STOPPED"
	TypeJoinedSession        = "JOINED_SESSION"
	TypeTeacherViewUpdate    = "TEACHER_VIEW_UPDATE"
	TypeCSVData              = "CSV_DATA"
	TypeError                = "ERROR"
)

// Message wraps all WebSocket payloads with a type discriminator.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage marshals payload into a Message envelope. A nil payload
// produces an envelope with no payload field (e.g. QUIZ_STOPPED).
func NewMessage(msgType string, payload any) Message {
	msg := Message{Type: msgType}
	if payload != nil {
		msg.Payload, _ = json.Marshal(payload)
	}
	return msg
}

// Teacher Messages (incoming)

type StartMCQPayload struct {
	SessionCode  string `json:"sessionCode"`
	QuestionText string `json:"questionText"`
	Options      int    `json:"options"`
}

// SessionRefPayload covers teacher commands that carry only a session code.
type SessionRefPayload struct {
	SessionCode string `json:"sessionCode"`
}

// Student Messages (incoming)

type JoinSessionPayload struct {
	SessionCode string `json:"sessionCode"`
	Username    string `json:"username"`
}

type SubmitMCQPayload struct {
	SessionCode string `json:"sessionCode"`
	StudentID   string `json:"studentId"`
	Answer      int    `json:"answer"`
}

type ExplanationUpdatePayload struct {
	SessionCode string `json:"sessionCode"`
	StudentID   string `json:"studentId"`
	Explanation string `json:"explanation"`
}

// Server Messages (outgoing)

type SessionCreatedPayload struct {
	SessionCode string `json:"sessionCode"`
}

type MCQStartedPayload struct {
	QuestionText string `json:"questionText"`
	Options      int    `json:"options"`
}

type JoinedSessionPayload struct {
	StudentID   string `json:"studentId"`
	SessionCode string `json:"sessionCode"`
	Stage       string `json:"stage"`
}

type TeacherViewPayload struct {
	SessionCode  string       `json:"sessionCode"`
	Stage        string       `json:"stage"`
	QuestionText string       `json:"questionText"`
	MCQOptions   int          `json:"mcqOptions"`
	Answers      []AnswerView `json:"answers"`
	StudentNames []string     `json:"studentNames"`
}

// AnswerView is one flattened answer record in the teacher dashboard.
type AnswerView struct {
	Username    string `json:"username"`
	MCQAnswer   *int   `json:"mcqAnswer"`
	Explanation string `json:"explanation"`
}

type CSVDataPayload struct {
	CSV      string `json:"csv"`
	Filename string `json:"filename"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
