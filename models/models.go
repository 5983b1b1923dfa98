package models

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// TeacherAuthor is the author tag used for teacher strokes and for the
// annotator slot when the teacher holds it. Students are identified by their
// reconnect token instead of the connection id so identity survives reconnects.
const TeacherAuthor = "teacher"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one committed freehand polyline. Points are normalized to
// [0,1]x[0,1] relative to the page viewport at capture time, so a stroke
// replays correctly at any render scale. Immutable once committed.
type Stroke struct {
	Page   int     `json:"-"`
	Author string  `json:"author"`
	Color  string  `json:"color"`
	Width  int     `json:"width"`
	Points []Point `json:"points"`
}

// StrokeRecord is a stroke bound to its class and storage id. The Id is a
// UUIDv7 assigned server-side, used only for chronological ordering in the
// store and cache; it is not part of the wire format.
type StrokeRecord struct {
	ClassID string
	Id      string
	Stroke  Stroke
}

type Student struct {
	Token       string
	Name        string
	Allowed     bool
	StrokeCount int
}

type PendingRequest struct {
	RequestID    string
	StudentToken string
	Page         int
	Note         string
}

// Class is the authoritative session record. CurrentAnnotator holds the
// single identity allowed to draw ("" means nobody, TeacherAuthor means the
// teacher explicitly took the lock, otherwise a student token).
type Class struct {
	ID                   string
	TeacherKey           string
	PDFFilename          string
	CurrentAnnotator     string
	LastStudentAnnotator string
	Created              int64
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
