package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if requiredOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == requiredOrigin
		},
	}
}

// ServeWS handles websocket requests from the peer. Connections carry no
// credentials; identity is established by the join message.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	clientUUID, err := uuid.NewV4()
	if err != nil {
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, clientUUID.String(), h.HandleWsMessage)
	h.Hub.OpenCh <- client

	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	msg, err := protocol.Decode(messageBytes)
	if err != nil {
		var unknown *protocol.ErrUnknownKind
		if errors.As(err, &unknown) {
			h.sendError(client, "unknown-type")
		} else {
			h.sendError(client, "invalid-json")
		}
		return
	}

	if _, ok := msg.(*protocol.Join); !ok && client.classID == "" {
		h.sendError(client, "not-in-class")
		return
	}

	ctx := context.Background()

	switch m := msg.(type) {
	case *protocol.Join:
		h.handleJoin(ctx, client, m)

	case *protocol.RequestAnnotate:
		h.handleRequestAnnotate(ctx, client, m)

	case *protocol.Approve:
		if !h.requireTeacher(client) {
			return
		}
		if err := h.Service.ApproveRequest(ctx, client.classID, m.RequestID); err != nil {
			h.sendError(client, err.Error())
		}

	case *protocol.Deny:
		if !h.requireTeacher(client) {
			return
		}
		if err := h.Service.DenyRequest(ctx, client.classID, m.RequestID); err != nil {
			h.sendError(client, err.Error())
		}

	case *protocol.Revoke:
		if client.role == models.RoleTeacher {
			if err := h.Service.RevokeAnnotator(ctx, client.classID, m.StudentToken); err != nil {
				h.sendError(client, err.Error())
			}
			return
		}
		// A student holding the lock may hand it back themselves
		if err := h.Service.ReleaseAnnotator(ctx, client.classID, client.token); err != nil {
			h.sendError(client, err.Error())
		}

	case *protocol.GotoPage:
		if !h.requireTeacher(client) {
			return
		}
		if err := h.Service.BroadcastGotoPage(ctx, client.classID, m.Page); err != nil {
			h.sendError(client, err.Error())
		}

	case *protocol.StrokeMessage:
		h.handleStroke(ctx, client, m)

	case *protocol.ClearCommand:
		h.handleClear(ctx, client, m)

	default:
		h.sendError(client, "unknown-type")
	}
}

func (h *Handler) handleJoin(ctx context.Context, client *Client, join *protocol.Join) {
	if client.classID != "" {
		h.sendError(client, "already-joined")
		return
	}
	if err := service.ValidateClassID(join.ClassID); err != nil {
		h.sendError(client, "invalid-class")
		return
	}

	joined := protocol.Joined{
		Type:    protocol.KindJoined,
		ID:      client.id,
		ClassID: join.ClassID,
	}

	switch join.Role {
	case models.RoleTeacher:
		class, err := h.Service.JoinTeacher(ctx, join.ClassID, join.Key)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		name := join.Name
		if name == "" {
			name = "Teacher"
		}
		client.classID = class.ID
		client.role = models.RoleTeacher
		client.token = models.TeacherAuthor
		client.name = name

		joined.Role = models.RoleTeacher
		joined.PDFURL = "/files/" + class.PDFFilename
		joined.TeacherKey = class.TeacherKey
		joined.Name = name

	case models.RoleStudent:
		name := join.Name
		if name == "" {
			name = "Student-" + client.id[:6]
		}
		class, student, err := h.Service.JoinStudent(ctx, join.ClassID, join.StudentToken, name)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		client.classID = class.ID
		client.role = models.RoleStudent
		client.token = student.Token
		client.name = student.Name

		joined.Role = models.RoleStudent
		joined.PDFURL = "/files/" + class.PDFFilename
		joined.StudentToken = student.Token
		joined.Name = student.Name

	default:
		h.sendError(client, "unknown-role")
		return
	}

	h.sendJSON(client, joined)

	// Attach to the class; the hub broadcasts presence from there
	h.Hub.JoinCh <- client

	if client.role == models.RoleTeacher {
		if list, err := h.Service.PendingList(ctx, client.classID); err == nil {
			h.sendJSON(client, list)
		} else {
			log.Printf("Failed to build pending list for class %s: %v", client.classID, err)
		}
	}

	if initStrokes, err := h.Service.InitStrokes(ctx, client.classID); err == nil {
		h.sendJSON(client, initStrokes)
	} else {
		log.Printf("Failed to load strokes for class %s: %v", client.classID, err)
	}

	if update, err := h.Service.AnnotatorUpdate(ctx, client.classID); err == nil {
		h.sendJSON(client, update)
	} else {
		log.Printf("Failed to build annotator update for class %s: %v", client.classID, err)
	}
}

func (h *Handler) handleRequestAnnotate(ctx context.Context, client *Client, msg *protocol.RequestAnnotate) {
	if _, err := h.Service.RequestAnnotate(ctx, client.classID, client.token, client.name, msg.Page, msg.Note); err != nil {
		h.sendError(client, err.Error())
		return
	}
	h.sendInfo(client, "request_created")
}

func (h *Handler) handleStroke(ctx context.Context, client *Client, msg *protocol.StrokeMessage) {
	if len(msg.Stroke.Points) == 0 {
		h.sendError(client, "missing-stroke")
		return
	}
	if _, err := h.Service.SubmitStroke(ctx, client.classID, client.role, client.token, msg.Stroke); err != nil {
		h.sendError(client, err.Error())
	}
}

func (h *Handler) handleClear(ctx context.Context, client *Client, msg *protocol.ClearCommand) {
	switch msg.Type {
	case protocol.KindClearAll:
		if !h.requireTeacher(client) {
			return
		}
		if err := h.Service.ClearAllStrokes(ctx, client.classID); err != nil {
			h.sendError(client, err.Error())
		}

	case protocol.KindClearTeacher:
		if !h.requireTeacher(client) {
			return
		}
		if err := h.Service.ClearTeacherStrokes(ctx, client.classID); err != nil {
			h.sendError(client, err.Error())
		}

	case protocol.KindClearStudent:
		if !h.requireTeacher(client) {
			return
		}
		err := h.Service.ClearStudentStrokes(ctx, client.classID)
		if errors.Is(err, service.ErrNoStudentAnnotations) {
			h.sendInfo(client, "No student annotations to clear.")
			return
		}
		if err != nil {
			h.sendError(client, err.Error())
		}

	case protocol.KindClearMine:
		if client.role != models.RoleStudent {
			h.sendError(client, "not-student")
			return
		}
		if err := h.Service.ClearMyStrokes(ctx, client.classID, client.token); err != nil {
			h.sendError(client, err.Error())
			return
		}
		h.sendInfo(client, "Your annotations cleared.")
	}
}

func (h *Handler) requireTeacher(client *Client) bool {
	if client.role != models.RoleTeacher {
		h.sendError(client, "not-teacher")
		return false
	}
	return true
}

func (h *Handler) sendJSON(client *Client, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling response JSON: %v", err)
		return
	}
	client.Send <- data
}

func (h *Handler) sendInfo(client *Client, message string) {
	h.sendJSON(client, protocol.Info{Type: protocol.KindInfo, Message: message})
}

func (h *Handler) sendError(client *Client, code string) {
	h.sendJSON(client, protocol.ServerError{Type: protocol.KindError, Error: code})
}
