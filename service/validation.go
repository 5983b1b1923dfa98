package service

import (
	"errors"
	"regexp"

	"github.com/kshivamiitk/classboard/models"
)

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
var classIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

const (
	minWidth        = 1
	maxWidth        = 20
	maxStrokePoints = 1000
	maxPage         = 10000
)

func ValidateClassID(classID string) error {
	if !classIDRegex.MatchString(classID) {
		return errors.New("invalid class id")
	}
	return nil
}

func ValidatePage(page int) error {
	if page < 1 || page > maxPage {
		return errors.New("invalid page")
	}
	return nil
}

// ValidateStroke checks a committed stroke before it is persisted or
// broadcast. Points are normalized page coordinates, so anything outside
// the unit square means a broken or hostile client.
func ValidateStroke(stroke models.Stroke) error {
	if err := ValidatePage(stroke.Page); err != nil {
		return err
	}

	if !hexColorRegex.MatchString(stroke.Color) {
		return errors.New("invalid color")
	}

	if stroke.Width < minWidth || stroke.Width > maxWidth {
		return errors.New("invalid width")
	}

	if len(stroke.Points) == 0 {
		return errors.New("empty stroke")
	}
	if len(stroke.Points) > maxStrokePoints {
		return errors.New("stroke too long")
	}

	for _, p := range stroke.Points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return errors.New("point out of bounds")
		}
	}

	return nil
}
