package client

import (
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
)

// Drawing lifecycle. Points are normalized at capture time against the
// page's current viewport; the whole accumulated sequence is transmitted
// once, at release. Every pointer-move repaints locally without waiting on
// the network.

// BeginStroke starts an in-progress stroke if this client currently holds
// drawing rights. Returning false means the input is silently ignored, not
// an error.
func (c *Client) BeginStroke(page int, color string, width int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canDrawLocked() {
		return false
	}
	c.draft = &strokeDraft{page: page, color: color, width: width}
	return true
}

// AddPoint appends a captured pixel position to the in-progress stroke and
// repaints the page. An authorization loss mid-stroke does not interrupt
// capture; the already-started stroke completes locally.
func (c *Client) AddPoint(px float64, py float64) {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return
	}
	page := c.draft.page
	if c.cfg.Surface != nil {
		if w, h, ok := c.cfg.Surface.PageViewport(page); ok && w >= 1 && h >= 1 {
			c.draft.points = append(c.draft.points, normalizePoint(px, py, w, h))
		}
	}
	c.mu.Unlock()

	c.redrawPage(page)
}

// EndStroke commits the in-progress stroke: it joins the local log
// immediately and goes out as exactly one stroke command. An empty draft is
// discarded. The server's echo of this stroke is skipped on receipt, so the
// log gains exactly one entry per release.
func (c *Client) EndStroke() error {
	c.mu.Lock()
	draft := c.draft
	c.draft = nil
	if draft == nil || len(draft.points) == 0 {
		c.mu.Unlock()
		return nil
	}

	author := c.state.token
	if author == "" {
		author = "anon"
	}
	stroke := models.Stroke{
		Page:   draft.page,
		Author: author,
		Color:  draft.color,
		Width:  draft.width,
		Points: draft.points,
	}
	c.state.strokes[stroke.Page] = append(c.state.strokes[stroke.Page], stroke)
	c.mu.Unlock()

	c.redrawPage(stroke.Page)

	return c.send(protocol.StrokeMessage{
		Type:   protocol.KindStroke,
		Stroke: protocol.FromModel(stroke),
	})
}

// redrawPage repaints one page from scratch: clear, replay the committed
// log in order, then overlay the in-progress stroke. Visual state is a pure
// function of the mirror, so repeated redraws are idempotent.
func (c *Client) redrawPage(page int) {
	surface := c.cfg.Surface
	if surface == nil {
		return
	}
	w, h, ok := surface.PageViewport(page)
	if !ok || w < 1 || h < 1 {
		return
	}

	c.mu.RLock()
	committed := make([]models.Stroke, len(c.state.strokes[page]))
	copy(committed, c.state.strokes[page])
	var draft *strokeDraft
	if c.draft != nil && c.draft.page == page {
		draft = &strokeDraft{
			page:   c.draft.page,
			color:  c.draft.color,
			width:  c.draft.width,
			points: append([]models.Point(nil), c.draft.points...),
		}
	}
	c.mu.RUnlock()

	surface.ClearPage(page)
	for _, stroke := range committed {
		surface.DrawPolyline(page, stroke.Color, stroke.Width, denormalizeAll(stroke.Points, w, h))
	}
	if draft != nil {
		surface.DrawPolyline(page, draft.color, draft.width, denormalizeAll(draft.points, w, h))
	}
}

func denormalizeAll(points []models.Point, viewportW float64, viewportH float64) []models.Point {
	out := make([]models.Point, len(points))
	for i, p := range points {
		out[i] = denormalizePoint(p, viewportW, viewportH)
	}
	return out
}
