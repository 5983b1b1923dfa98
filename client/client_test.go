package client

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/stretchr/testify/assert"
)

type drawnPolyline struct {
	page   int
	color  string
	width  int
	points []models.Point
}

// fakeSurface records every paint call so tests can assert on the exact
// render sequence.
type fakeSurface struct {
	mu        sync.Mutex
	viewports map[int][2]float64
	cleared   []int
	drawn     []drawnPolyline
	scrolled  []int
}

func newFakeSurface(pages ...int) *fakeSurface {
	s := &fakeSurface{viewports: make(map[int][2]float64)}
	for _, page := range pages {
		s.viewports[page] = [2]float64{800, 600}
	}
	return s
}

func (s *fakeSurface) PageViewport(page int) (float64, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vp, ok := s.viewports[page]
	return vp[0], vp[1], ok
}

func (s *fakeSurface) ClearPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, page)
}

func (s *fakeSurface) DrawPolyline(page int, color string, width int, points []models.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawn = append(s.drawn, drawnPolyline{page: page, color: color, width: width, points: points})
}

func (s *fakeSurface) ScrollToPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrolled = append(s.scrolled, page)
}

func (s *fakeSurface) drawnOn(page int) []drawnPolyline {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []drawnPolyline
	for _, d := range s.drawn {
		if d.page == page {
			out = append(out, d)
		}
	}
	return out
}

func (s *fakeSurface) clearedCount(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.cleared {
		if p == page {
			n++
		}
	}
	return n
}

// deliver feeds one server message through the dispatch path.
func deliver(t *testing.T, c *Client, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	c.handleMessage(data)
}

func joinAsStudent(t *testing.T, c *Client, token string, name string) {
	t.Helper()
	deliver(t, c, protocol.Joined{
		Type:         protocol.KindJoined,
		ID:           "conn-1",
		Role:         models.RoleStudent,
		ClassID:      "c1",
		StudentToken: token,
		Name:         name,
	})
}

func joinAsTeacher(t *testing.T, c *Client) {
	t.Helper()
	deliver(t, c, protocol.Joined{
		Type:       protocol.KindJoined,
		ID:         "conn-1",
		Role:       models.RoleTeacher,
		ClassID:    "c1",
		PDFURL:     "/files/doc.pdf",
		TeacherKey: "ABC123",
		Name:       "Teacher",
	})
}

func TestJoined_Student(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})

	joinAsStudent(t, c, "tok-1", "Asha")

	assert.True(t, c.Joined())
	assert.Equal(t, models.RoleStudent, c.Role())
	assert.Equal(t, "c1", c.ClassID())
	assert.Equal(t, "tok-1", c.Token())
	assert.Empty(t, c.JoinError())
}

func TestJoined_TeacherTokenIsAuthorTag(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})

	joinAsTeacher(t, c)

	assert.Equal(t, models.TeacherAuthor, c.Token())
	assert.Equal(t, "ABC123", c.TeacherKey())
	assert.Equal(t, "/files/doc.pdf", c.PDFURL())
}

func TestJoined_PersistsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	c := New(Config{IdentityPath: path, OnStatus: func(string) {}})

	joinAsStudent(t, c, "tok-1", "Asha")

	identity, found, err := NewIdentityStore(path).Load()
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.RoleStudent, identity.Role)
	assert.Equal(t, "c1", identity.ClassID)
	assert.Equal(t, "tok-1", identity.StudentToken)
	assert.Empty(t, identity.TeacherKey, "students never store the teacher key")
}

func TestJoined_TeacherIdentityCarriesKeyNotToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	c := New(Config{IdentityPath: path, OnStatus: func(string) {}})

	joinAsTeacher(t, c)

	identity, found, err := NewIdentityStore(path).Load()
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ABC123", identity.TeacherKey)
	assert.Empty(t, identity.StudentToken)
}

func TestServerError_BeforeJoinBecomesJoinError(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})

	deliver(t, c, protocol.ServerError{Type: protocol.KindError, Error: "invalid-class"})
	assert.Equal(t, "invalid-class", c.JoinError())
	assert.False(t, c.Joined())

	// A later successful join wipes the stale error
	joinAsStudent(t, c, "tok-1", "Asha")
	assert.Empty(t, c.JoinError())
}

func TestServerError_AfterJoinDoesNotClobberIdentity(t *testing.T) {
	var statuses []string
	c := New(Config{OnStatus: func(m string) { statuses = append(statuses, m) }})
	joinAsStudent(t, c, "tok-1", "Asha")

	deliver(t, c, protocol.ServerError{Type: protocol.KindError, Error: "not-allowed-to-annotate"})

	assert.True(t, c.Joined())
	assert.Empty(t, c.JoinError())
	assert.Contains(t, statuses, "error: not-allowed-to-annotate")
}

func TestPresence_WholesaleReplace(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})

	deliver(t, c, protocol.Presence{Type: protocol.KindPresence, Clients: []models.Participant{
		{ID: "a", Name: "Asha", Role: models.RoleStudent},
		{ID: "b", Name: "Teacher", Role: models.RoleTeacher},
	}})
	assert.Len(t, c.Participants(), 2)

	deliver(t, c, protocol.Presence{Type: protocol.KindPresence, Clients: []models.Participant{
		{ID: "b", Name: "Teacher", Role: models.RoleTeacher},
	}})
	participants := c.Participants()
	assert.Len(t, participants, 1)
	assert.Equal(t, "b", participants[0].ID)
}

func TestPending_ListReplacesNewAppends(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})

	deliver(t, c, protocol.PendingList{Type: protocol.KindPendingList, Pending: []protocol.PendingItem{
		{RequestID: "r1", Name: "Asha", Page: 3},
	}})
	deliver(t, c, protocol.PendingNew{
		Type:        protocol.KindPendingNew,
		PendingItem: protocol.PendingItem{RequestID: "r2", Name: "Ben", Page: 5},
	})
	assert.Len(t, c.Pending(), 2)

	deliver(t, c, protocol.PendingList{Type: protocol.KindPendingList, Pending: []protocol.PendingItem{}})
	assert.Empty(t, c.Pending())
}

func TestApprove_RemovesPendingOptimistically(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})
	joinAsTeacher(t, c)

	deliver(t, c, protocol.PendingList{Type: protocol.KindPendingList, Pending: []protocol.PendingItem{
		{RequestID: "r1", Name: "Asha", Page: 3},
		{RequestID: "r2", Name: "Ben", Page: 5},
	}})

	err := c.Approve("r1")
	assert.ErrorIs(t, err, ErrNotConnected)

	// The entry is gone even though the send failed; the next snapshot
	// from the server is authoritative
	pending := c.Pending()
	assert.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].RequestID)
}

func TestAnnotatorUpdate_LockIsExclusive(t *testing.T) {
	x := New(Config{OnStatus: func(string) {}})
	y := New(Config{OnStatus: func(string) {}})
	joinAsStudent(t, x, "tok-x", "X")
	joinAsStudent(t, y, "tok-y", "Y")

	grant := func(token string, name string) {
		update := protocol.AnnotatorUpdate{
			Type:             protocol.KindAnnotatorUpdate,
			CurrentAnnotator: token,
			AnnotatorName:    name,
		}
		deliver(t, x, update)
		deliver(t, y, update)
	}

	grant("tok-x", "X")
	assert.True(t, x.CanDraw())
	assert.False(t, y.CanDraw())

	// Approving Y replaces the holder; X loses rights on the same update
	grant("tok-y", "Y")
	assert.False(t, x.CanDraw())
	assert.True(t, y.CanDraw())

	// Revoke frees the lock for everyone
	grant("", "")
	assert.False(t, x.CanDraw())
	assert.False(t, y.CanDraw())
}

func TestAnnotatorUpdate_TeacherAlwaysDraws(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})
	joinAsTeacher(t, c)

	assert.True(t, c.CanDraw())

	deliver(t, c, protocol.AnnotatorUpdate{
		Type:             protocol.KindAnnotatorUpdate,
		CurrentAnnotator: "tok-1",
		AnnotatorName:    "Asha",
	})
	assert.True(t, c.CanDraw(), "a student grant never blocks the teacher")

	holder, name := c.Annotator()
	assert.Equal(t, "tok-1", holder)
	assert.Equal(t, "Asha", name)
}

func TestInitStrokes_WholesaleReplace(t *testing.T) {
	surface := newFakeSurface(1, 2)
	c := New(Config{Surface: surface, OnStatus: func(string) {}})
	joinAsStudent(t, c, "tok-1", "Asha")

	// Seed two pages from broadcasts
	deliver(t, c, protocol.ApplyStroke{Type: protocol.KindApplyStroke, Stroke: protocol.WireStroke{
		Page: "1", Author: "teacher", Color: "#000000", Width: 2,
		Points: []models.Point{{X: 0.1, Y: 0.1}},
	}})
	deliver(t, c, protocol.ApplyStroke{Type: protocol.KindApplyStroke, Stroke: protocol.WireStroke{
		Page: "2", Author: "teacher", Color: "#000000", Width: 2,
		Points: []models.Point{{X: 0.2, Y: 0.2}},
	}})
	assert.Len(t, c.PageStrokes(1), 1)
	assert.Len(t, c.PageStrokes(2), 1)

	// The snapshot only has page 2; page 1 must empty out and repaint
	deliver(t, c, protocol.InitStrokes{Type: protocol.KindInitStrokes, Strokes: map[string][]protocol.WireStroke{
		"2": {{Page: "2", Author: "teacher", Color: "#000000", Width: 2, Points: []models.Point{{X: 0.3, Y: 0.3}}}},
	}})

	assert.Empty(t, c.PageStrokes(1))
	assert.Len(t, c.PageStrokes(2), 1)
	assert.GreaterOrEqual(t, surface.clearedCount(1), 1, "the emptied page is repainted")
}

func TestApplyStroke_SkipsOwnEcho(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})
	joinAsStudent(t, c, "tok-1", "Asha")

	deliver(t, c, protocol.ApplyStroke{Type: protocol.KindApplyStroke, Stroke: protocol.WireStroke{
		Page: "1", Author: "tok-1", Color: "#000000", Width: 2,
		Points: []models.Point{{X: 0.5, Y: 0.5}},
	}})
	assert.Empty(t, c.PageStrokes(1), "own strokes are committed at release, not on echo")

	deliver(t, c, protocol.ApplyStroke{Type: protocol.KindApplyStroke, Stroke: protocol.WireStroke{
		Page: "1", Author: "tok-2", Color: "#000000", Width: 2,
		Points: []models.Point{{X: 0.5, Y: 0.5}},
	}})
	assert.Len(t, c.PageStrokes(1), 1)
}

func TestClearCommand_WipesEveryPage(t *testing.T) {
	surface := newFakeSurface(1, 3)
	c := New(Config{Surface: surface, OnStatus: func(string) {}})
	joinAsStudent(t, c, "tok-1", "Asha")

	for _, page := range []string{"1", "3"} {
		deliver(t, c, protocol.ApplyStroke{Type: protocol.KindApplyStroke, Stroke: protocol.WireStroke{
			Page: page, Author: "teacher", Color: "#000000", Width: 2,
			Points: []models.Point{{X: 0.5, Y: 0.5}},
		}})
	}

	deliver(t, c, protocol.ClearCommand{Type: protocol.KindClearAll})

	assert.Empty(t, c.PageStrokes(1))
	assert.Empty(t, c.PageStrokes(3))
	assert.GreaterOrEqual(t, surface.clearedCount(1), 1)
	assert.GreaterOrEqual(t, surface.clearedCount(3), 1)
}

func TestGotoPage_ScrollsSurface(t *testing.T) {
	surface := newFakeSurface(4)
	c := New(Config{Surface: surface, OnStatus: func(string) {}})

	deliver(t, c, protocol.GotoPage{Type: protocol.KindGotoPage, Page: 4})
	assert.Equal(t, []int{4}, surface.scrolled)
}

func TestRequestResult_ApprovedScrollsToPage(t *testing.T) {
	surface := newFakeSurface(3)
	var statuses []string
	c := New(Config{Surface: surface, OnStatus: func(m string) { statuses = append(statuses, m) }})

	deliver(t, c, protocol.RequestResult{Type: protocol.KindRequestResult, Result: "approved", Page: 3})
	assert.Equal(t, []int{3}, surface.scrolled)

	deliver(t, c, protocol.RequestResult{Type: protocol.KindRequestResult, Result: "denied", Page: 5})
	assert.Equal(t, []int{3}, surface.scrolled, "a denial never moves the view")
	assert.Contains(t, statuses, "request denied for page 5")
}

func TestHandleMessage_UnknownKindIgnored(t *testing.T) {
	c := New(Config{OnStatus: func(string) {}})
	joinAsStudent(t, c, "tok-1", "Asha")

	c.handleMessage([]byte(`{"type":"telepathy","payload":42}`))
	c.handleMessage([]byte(`{not json`))

	// Session state is untouched by garbage
	assert.True(t, c.Joined())
	assert.Equal(t, "tok-1", c.Token())
}

func TestRejoin_RequiresStoredIdentity(t *testing.T) {
	ctx := context.Background()

	noStore := New(Config{ServerURL: "ws://127.0.0.1:1/ws"})
	assert.Error(t, noStore.Rejoin(ctx), "no identity store configured")

	path := filepath.Join(t.TempDir(), "identity.json")
	c := New(Config{ServerURL: "ws://127.0.0.1:1/ws", IdentityPath: path})
	assert.Error(t, c.Rejoin(ctx), "nothing persisted yet")

	// With an identity on disk the rejoin proceeds to the dial, which fails
	// against the unroutable test address rather than on credentials
	assert.NoError(t, NewIdentityStore(path).Persist(Identity{
		Role:         models.RoleStudent,
		ClassID:      "c1",
		StudentToken: "tok-1",
		Name:         "Asha",
	}))
	err := c.Rejoin(ctx)
	assert.Error(t, err)
	assert.NotContains(t, err.Error(), "identity")
	assert.NotContains(t, err.Error(), "class id")
}

func TestConnect_RejectsBadJoin(t *testing.T) {
	c := New(Config{ServerURL: "ws://127.0.0.1:1/ws"})

	ctx := context.Background()

	err := c.Connect(ctx, JoinRequest{Role: models.RoleStudent})
	assert.Error(t, err)

	err = c.Connect(ctx, JoinRequest{Role: "ghost", ClassID: "c1"})
	assert.Error(t, err)
}
