package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kshivamiitk/classboard/models"
)

// Message kinds. The envelope is a flat JSON object with a "type"
// discriminator; payload fields sit alongside it.
const (
	// client -> server
	KindJoin            = "join"
	KindRequestAnnotate = "request_annotate"
	KindApprove         = "approve"
	KindDeny            = "deny"
	KindRevoke          = "revoke"
	KindGotoPage        = "goto_page"
	KindStroke          = "stroke"
	KindClearAll        = "clear_annotations"
	KindClearTeacher    = "clear_teacher_annotations"
	KindClearStudent    = "clear_student_annotations"
	KindClearMine       = "clear_my_annotations"

	// server -> client
	KindJoined          = "joined"
	KindPresence        = "presence"
	KindPendingList     = "pending_list"
	KindPendingNew      = "pending_new"
	KindRequestResult   = "request_result"
	KindAnnotatorUpdate = "annotator_update"
	KindInitStrokes     = "init_strokes"
	KindApplyStroke     = "apply_stroke"
	KindInfo            = "info"
	KindError           = "error"
)

// WireStroke is the on-the-wire stroke shape. Page travels as a string
// because it doubles as the per-page map key in init_strokes.
type WireStroke struct {
	Page   string         `json:"page"`
	Author string         `json:"author,omitempty"`
	Color  string         `json:"color"`
	Width  int            `json:"width"`
	Points []models.Point `json:"points"`
}

func (ws WireStroke) ToModel() models.Stroke {
	page, _ := strconv.Atoi(ws.Page)
	return models.Stroke{
		Page:   page,
		Author: ws.Author,
		Color:  ws.Color,
		Width:  ws.Width,
		Points: ws.Points,
	}
}

func FromModel(s models.Stroke) WireStroke {
	return WireStroke{
		Page:   strconv.Itoa(s.Page),
		Author: s.Author,
		Color:  s.Color,
		Width:  s.Width,
		Points: s.Points,
	}
}

type Join struct {
	Type         string      `json:"type"`
	Role         models.Role `json:"role"`
	ClassID      string      `json:"class_id"`
	Key          string      `json:"key,omitempty"`
	StudentToken string      `json:"student_token,omitempty"`
	Name         string      `json:"name,omitempty"`
}

type RequestAnnotate struct {
	Type string `json:"type"`
	Page int    `json:"page"`
	Note string `json:"note,omitempty"`
}

type Approve struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

type Deny struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// Revoke with an empty StudentToken clears the lock unconditionally;
// with a token it clears only if that student currently holds it.
type Revoke struct {
	Type         string `json:"type"`
	StudentToken string `json:"student_token,omitempty"`
}

type GotoPage struct {
	Type string `json:"type"`
	Page int    `json:"page"`
}

type StrokeMessage struct {
	Type   string     `json:"type"`
	Stroke WireStroke `json:"stroke"`
}

// ClearCommand covers the four clear kinds; they carry no payload.
type ClearCommand struct {
	Type string `json:"type"`
}

type Joined struct {
	Type         string      `json:"type"`
	ID           string      `json:"id"`
	Role         models.Role `json:"role"`
	ClassID      string      `json:"class_id"`
	PDFURL       string      `json:"pdf_url,omitempty"`
	TeacherKey   string      `json:"teacher_key,omitempty"`
	StudentToken string      `json:"student_token,omitempty"`
	Name         string      `json:"name,omitempty"`
}

type Presence struct {
	Type    string               `json:"type"`
	Clients []models.Participant `json:"clients"`
}

type PendingItem struct {
	RequestID string `json:"request_id"`
	Name      string `json:"name"`
	Page      int    `json:"page"`
	Note      string `json:"note,omitempty"`
}

type PendingList struct {
	Type    string        `json:"type"`
	Pending []PendingItem `json:"pending"`
}

type PendingNew struct {
	Type string `json:"type"`
	PendingItem
}

type RequestResult struct {
	Type   string `json:"type"`
	Result string `json:"result"` // "approved" | "denied"
	Page   int    `json:"page"`
}

type AnnotatorUpdate struct {
	Type             string `json:"type"`
	CurrentAnnotator string `json:"current_annotator"`
	AnnotatorName    string `json:"annotator_name"`
}

type InitStrokes struct {
	Type    string                  `json:"type"`
	Strokes map[string][]WireStroke `json:"strokes"`
}

type ApplyStroke struct {
	Type   string     `json:"type"`
	Stroke WireStroke `json:"stroke"`
}

type Info struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ServerError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// CachedStroke is the shape stored per stroke in the redis snapshot. The id
// is the storage UUIDv7, kept so a cache/store merge can dedupe and order.
type CachedStroke struct {
	Id string `json:"id"`
	WireStroke
}

// Fanout wraps a payload published on a class channel. An empty Target means
// every connection in the class; otherwise only connections whose student
// token (or the teacher author tag) matches receive the payload.
type Fanout struct {
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// WrapFanout marshals payload and wraps it for publishing on a class channel.
func WrapFanout(target string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Fanout{Target: target, Payload: data})
}

type envelope struct {
	Type string `json:"type"`
}

// ErrUnknownKind marks an envelope whose discriminator is not part of the
// protocol. Receivers treat it as ignorable, not fatal.
type ErrUnknownKind struct {
	Kind string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Kind)
}

// Decode parses one inbound frame into its concrete message struct.
// A malformed frame or a payload that fails to parse returns an error;
// an unrecognized discriminator returns *ErrUnknownKind.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	var msg any
	switch env.Type {
	case KindJoin:
		msg = &Join{}
	case KindRequestAnnotate:
		msg = &RequestAnnotate{}
	case KindApprove:
		msg = &Approve{}
	case KindDeny:
		msg = &Deny{}
	case KindRevoke:
		msg = &Revoke{}
	case KindGotoPage:
		msg = &GotoPage{}
	case KindStroke:
		msg = &StrokeMessage{}
	case KindClearAll, KindClearTeacher, KindClearStudent, KindClearMine:
		msg = &ClearCommand{}
	case KindJoined:
		msg = &Joined{}
	case KindPresence:
		msg = &Presence{}
	case KindPendingList:
		msg = &PendingList{}
	case KindPendingNew:
		msg = &PendingNew{}
	case KindRequestResult:
		msg = &RequestResult{}
	case KindAnnotatorUpdate:
		msg = &AnnotatorUpdate{}
	case KindInitStrokes:
		msg = &InitStrokes{}
	case KindApplyStroke:
		msg = &ApplyStroke{}
	case KindInfo:
		msg = &Info{}
	case KindError:
		msg = &ServerError{}
	default:
		return nil, &ErrUnknownKind{Kind: env.Type}
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return msg, nil
}
