package client

import "github.com/kshivamiitk/classboard/models"

// Surface is the rendering collaborator boundary. The client owns the
// coordinate contract (normalized capture, denormalized paint) and hands the
// surface plain pixel polylines; the surface owns pixels and scrolling.
type Surface interface {
	// PageViewport reports the current rendered size of a page in pixels.
	// ok is false while the page has not been laid out yet.
	PageViewport(page int) (width float64, height float64, ok bool)

	// ClearPage wipes the annotation layer of one page.
	ClearPage(page int)

	// DrawPolyline paints one stroke in pixel coordinates on a page.
	DrawPolyline(page int, color string, width int, points []models.Point)

	// ScrollToPage jumps the view to the given page.
	ScrollToPage(page int)
}

// normalizePoint maps a captured pixel position into the unit square using
// the viewport size at capture time. Positions slightly outside the page
// (pointer dragged past the edge) are clamped, matching what a capture on
// the page boundary would have produced.
func normalizePoint(px float64, py float64, viewportW float64, viewportH float64) models.Point {
	return models.Point{
		X: clamp01(px / viewportW),
		Y: clamp01(py / viewportH),
	}
}

// denormalizePoint maps a normalized point back to pixels using the viewport
// size at paint time, which may differ from the capture-time size.
func denormalizePoint(p models.Point, viewportW float64, viewportH float64) models.Point {
	return models.Point{
		X: p.X * viewportW,
		Y: p.Y * viewportH,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
