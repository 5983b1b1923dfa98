package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
)

var ErrNotConnected = errors.New("not connected")

type Config struct {
	// ServerURL is the websocket endpoint, e.g. "ws://localhost:8080/ws".
	ServerURL string

	// Surface receives paint and scroll calls. Optional; a nil surface
	// keeps the full session state without rendering.
	Surface Surface

	// IdentityPath enables durable identity for silent rejoin. Optional.
	IdentityPath string

	// OnStatus receives user-visible status lines (info, errors,
	// disconnects). Optional; defaults to the standard logger.
	OnStatus func(message string)
}

type JoinRequest struct {
	Role         models.Role
	ClassID      string
	TeacherKey   string
	StudentToken string
	Name         string
}

// sessionState is the local mirror of the class session. It is rebuilt from
// scratch on every (re)connect; snapshots replace it wholesale, deltas
// append. The dispatch goroutine is its only writer.
type sessionState struct {
	joined        bool
	joinError     string
	id            string
	role          models.Role
	classID       string
	token         string
	name          string
	pdfURL        string
	teacherKey    string
	participants  []models.Participant
	pending       []protocol.PendingItem
	annotator     string
	annotatorName string
	strokes       map[int][]models.Stroke
}

type strokeDraft struct {
	page   int
	color  string
	width  int
	points []models.Point
}

// Client coordinates one classroom session: it owns the single live
// websocket, dispatches every inbound envelope into the session mirror, and
// serializes every local action as an outbound command. State reads from
// render or UI code go through the mutex; there is no other shared state.
type Client struct {
	cfg        Config
	identities *IdentityStore

	mu    sync.RWMutex
	state sessionState
	draft *strokeDraft

	connMu  sync.Mutex // guards conn and serializes frame writes
	conn    *websocket.Conn
	connGen int
}

func New(cfg Config) *Client {
	c := &Client{cfg: cfg}
	if cfg.IdentityPath != "" {
		c.identities = NewIdentityStore(cfg.IdentityPath)
	}
	c.state.strokes = make(map[int][]models.Stroke)
	return c
}

// Connect opens the session channel: any prior channel is closed first, the
// join command goes out as the first frame, and a fresh dispatch goroutine
// takes over inbound traffic. The join outcome arrives asynchronously as a
// joined or error envelope.
func (c *Client) Connect(ctx context.Context, join JoinRequest) error {
	if join.ClassID == "" {
		return errors.New("class id is required")
	}
	if join.Role != models.RoleTeacher && join.Role != models.RoleStudent {
		return errors.New("unknown role")
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.ServerURL, nil)
	if err != nil {
		return err
	}

	joinMsg := protocol.Join{
		Type:         protocol.KindJoin,
		Role:         join.Role,
		ClassID:      join.ClassID,
		Key:          join.TeacherKey,
		StudentToken: join.StudentToken,
		Name:         join.Name,
	}
	if err := conn.WriteJSON(joinMsg); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	c.state = sessionState{strokes: make(map[int][]models.Stroke)}
	c.draft = nil
	c.mu.Unlock()

	c.conn = conn
	c.connGen++
	go c.readLoop(conn, c.connGen)
	return nil
}

// Rejoin silently resumes the persisted identity, presenting only the
// active role's credential.
func (c *Client) Rejoin(ctx context.Context) error {
	if c.identities == nil {
		return errors.New("no identity store configured")
	}
	identity, found, err := c.identities.Load()
	if err != nil {
		return err
	}
	if !found {
		return errors.New("no stored identity")
	}

	join := JoinRequest{
		Role:    identity.Role,
		ClassID: identity.ClassID,
		Name:    identity.Name,
	}
	switch identity.Role {
	case models.RoleTeacher:
		join.TeacherKey = identity.TeacherKey
	case models.RoleStudent:
		join.StudentToken = identity.StudentToken
	}
	return c.Connect(ctx, join)
}

func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(gen)
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleDisconnect(gen int) {
	c.connMu.Lock()
	stale := gen != c.connGen
	if !stale {
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
	}
	c.connMu.Unlock()
	if !stale {
		c.status("disconnected")
	}
}

// handleMessage applies one inbound envelope to the session mirror. Each
// message is fully processed before the next is read; rendering happens
// after the state mutation completes.
func (c *Client) handleMessage(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		var unknown *protocol.ErrUnknownKind
		if errors.As(err, &unknown) {
			log.Printf("Ignoring unknown message type %q", unknown.Kind)
		} else {
			log.Printf("Dropping malformed message: %v", err)
		}
		return
	}

	switch m := msg.(type) {
	case *protocol.Joined:
		c.onJoined(m)

	case *protocol.Presence:
		c.mu.Lock()
		c.state.participants = m.Clients
		c.mu.Unlock()

	case *protocol.PendingList:
		c.mu.Lock()
		c.state.pending = m.Pending
		c.mu.Unlock()

	case *protocol.PendingNew:
		c.mu.Lock()
		c.state.pending = append(c.state.pending, m.PendingItem)
		c.mu.Unlock()

	case *protocol.RequestResult:
		c.status(fmt.Sprintf("request %s for page %d", m.Result, m.Page))
		if m.Result == "approved" && c.cfg.Surface != nil {
			c.cfg.Surface.ScrollToPage(m.Page)
		}

	case *protocol.AnnotatorUpdate:
		c.mu.Lock()
		c.state.annotator = m.CurrentAnnotator
		c.state.annotatorName = m.AnnotatorName
		c.mu.Unlock()

	case *protocol.InitStrokes:
		c.onInitStrokes(m)

	case *protocol.ApplyStroke:
		c.onApplyStroke(m)

	case *protocol.ClearCommand:
		c.onClearAll()

	case *protocol.GotoPage:
		if c.cfg.Surface != nil {
			c.cfg.Surface.ScrollToPage(m.Page)
		}

	case *protocol.Info:
		c.status(m.Message)

	case *protocol.ServerError:
		c.mu.Lock()
		if !c.state.joined {
			c.state.joinError = m.Error
		}
		c.mu.Unlock()
		c.status("error: " + m.Error)

	default:
		log.Printf("Ignoring unhandled message %T", msg)
	}
}

func (c *Client) onJoined(m *protocol.Joined) {
	token := m.StudentToken
	if m.Role == models.RoleTeacher {
		token = models.TeacherAuthor
	}

	c.mu.Lock()
	c.state.joined = true
	c.state.joinError = ""
	c.state.id = m.ID
	c.state.role = m.Role
	c.state.classID = m.ClassID
	c.state.token = token
	c.state.name = m.Name
	c.state.pdfURL = m.PDFURL
	c.state.teacherKey = m.TeacherKey
	c.mu.Unlock()

	if c.identities != nil {
		identity := Identity{Role: m.Role, ClassID: m.ClassID, Name: m.Name}
		if m.Role == models.RoleTeacher {
			identity.TeacherKey = m.TeacherKey
		} else {
			identity.StudentToken = m.StudentToken
		}
		if err := c.identities.Persist(identity); err != nil {
			log.Printf("Failed to persist identity: %v", err)
		}
	}

	c.status(fmt.Sprintf("joined class %s as %s", m.ClassID, m.Role))
}

func (c *Client) onInitStrokes(m *protocol.InitStrokes) {
	fresh := make(map[int][]models.Stroke, len(m.Strokes))
	for _, wires := range m.Strokes {
		for _, wire := range wires {
			stroke := wire.ToModel()
			fresh[stroke.Page] = append(fresh[stroke.Page], stroke)
		}
	}

	c.mu.Lock()
	// Pages that emptied out still need a repaint
	pages := make(map[int]struct{}, len(c.state.strokes)+len(fresh))
	for page := range c.state.strokes {
		pages[page] = struct{}{}
	}
	for page := range fresh {
		pages[page] = struct{}{}
	}
	c.state.strokes = fresh
	c.mu.Unlock()

	for page := range pages {
		c.redrawPage(page)
	}
}

func (c *Client) onApplyStroke(m *protocol.ApplyStroke) {
	stroke := m.Stroke.ToModel()

	c.mu.Lock()
	// Our own strokes are committed locally at release; skip the echo
	if c.state.token != "" && stroke.Author == c.state.token {
		c.mu.Unlock()
		return
	}
	c.state.strokes[stroke.Page] = append(c.state.strokes[stroke.Page], stroke)
	c.mu.Unlock()

	c.redrawPage(stroke.Page)
}

func (c *Client) onClearAll() {
	c.mu.Lock()
	pages := make([]int, 0, len(c.state.strokes))
	for page := range c.state.strokes {
		pages = append(pages, page)
	}
	c.state.strokes = make(map[int][]models.Stroke)
	c.mu.Unlock()

	for _, page := range pages {
		c.redrawPage(page)
	}
}

func (c *Client) send(payload any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(payload)
}

func (c *Client) status(message string) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(message)
		return
	}
	log.Printf("classboard: %s", message)
}
