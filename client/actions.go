package client

import (
	"errors"

	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
)

// Commands are fire-and-forget: the authoritative outcome arrives later as
// a broadcast, so none of these waits for a reply.

// RequestAnnotate asks the teacher for the annotation lock on a page.
func (c *Client) RequestAnnotate(page int, note string) error {
	if page < 1 {
		return errors.New("invalid page")
	}
	return c.send(protocol.RequestAnnotate{
		Type: protocol.KindRequestAnnotate,
		Page: page,
		Note: note,
	})
}

// Approve grants a pending request. The local pending entry is removed
// optimistically; the next snapshot is authoritative either way.
func (c *Client) Approve(requestID string) error {
	c.removePending(requestID)
	return c.send(protocol.Approve{Type: protocol.KindApprove, RequestID: requestID})
}

// Deny refuses a pending request, removing the local entry optimistically.
func (c *Client) Deny(requestID string) error {
	c.removePending(requestID)
	return c.send(protocol.Deny{Type: protocol.KindDeny, RequestID: requestID})
}

func (c *Client) removePending(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, item := range c.state.pending {
		if item.RequestID == requestID {
			c.state.pending = append(c.state.pending[:i], c.state.pending[i+1:]...)
			return
		}
	}
}

// Revoke releases the annotation lock. From the teacher an empty token
// releases it unconditionally and a token releases it only if that student
// holds it; from a student it is a request to hand back their own hold.
func (c *Client) Revoke(studentToken string) error {
	return c.send(protocol.Revoke{Type: protocol.KindRevoke, StudentToken: studentToken})
}

// GotoPage directs every viewer in the class to a page.
func (c *Client) GotoPage(page int) error {
	if page < 1 {
		return errors.New("invalid page")
	}
	return c.send(protocol.GotoPage{Type: protocol.KindGotoPage, Page: page})
}

func (c *Client) ClearAll() error {
	return c.send(protocol.ClearCommand{Type: protocol.KindClearAll})
}

func (c *Client) ClearTeacher() error {
	return c.send(protocol.ClearCommand{Type: protocol.KindClearTeacher})
}

// ClearLastStudent clears the strokes of the most recent student annotator;
// which student that is gets decided server-side.
func (c *Client) ClearLastStudent() error {
	return c.send(protocol.ClearCommand{Type: protocol.KindClearStudent})
}

func (c *Client) ClearMine() error {
	return c.send(protocol.ClearCommand{Type: protocol.KindClearMine})
}

// Accessors for render and UI code. All return copies or values; none
// exposes the mirror for mutation.

func (c *Client) Joined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.joined
}

// JoinError reports the last error received before identity was
// established, for the join-flow status.
func (c *Client) JoinError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.joinError
}

func (c *Client) Role() models.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.role
}

func (c *Client) ClassID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.classID
}

// Token is this client's identity for stroke authorship: the teacher author
// tag, a student token, or empty before join.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.token
}

func (c *Client) PDFURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.pdfURL
}

func (c *Client) TeacherKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.teacherKey
}

func (c *Client) Participants() []models.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Participant, len(c.state.participants))
	copy(out, c.state.participants)
	return out
}

func (c *Client) Pending() []protocol.PendingItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]protocol.PendingItem, len(c.state.pending))
	copy(out, c.state.pending)
	return out
}

// Annotator reports the current lock holder and display name; empty means
// the lock is free.
func (c *Client) Annotator() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.annotator, c.state.annotatorName
}

// CanDraw evaluates the live drawing predicate: teachers always may, a
// student only while holding the lock. Checked on every pointer-down rather
// than cached, since a revoke can land at any moment.
func (c *Client) CanDraw() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.canDrawLocked()
}

func (c *Client) canDrawLocked() bool {
	if c.state.role == models.RoleTeacher {
		return true
	}
	return c.state.token != "" && c.state.annotator == c.state.token
}

// PageStrokes returns the committed log for one page in append order.
func (c *Client) PageStrokes(page int) []models.Stroke {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Stroke, len(c.state.strokes[page]))
	copy(out, c.state.strokes[page])
	return out
}
