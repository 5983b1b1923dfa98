package service_test

import (
	"testing"

	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/service"
	"github.com/stretchr/testify/assert"
)

func TestValidateStroke(t *testing.T) {
	base := func() models.Stroke {
		return models.Stroke{
			Page:   1,
			Color:  "#ff0000",
			Width:  5,
			Points: []models.Point{{X: 0.1, Y: 0.2}, {X: 0.9, Y: 0.8}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*models.Stroke)
		wantErr string
	}{
		{"Valid", func(s *models.Stroke) {}, ""},
		{"Page Zero", func(s *models.Stroke) { s.Page = 0 }, "invalid page"},
		{"Page Too Large", func(s *models.Stroke) { s.Page = 10001 }, "invalid page"},
		{"Invalid Color Format", func(s *models.Stroke) { s.Color = "red" }, "invalid color"},
		{"Color Too Long", func(s *models.Stroke) { s.Color = "#ff00000" }, "invalid color"},
		{"Width Too Small", func(s *models.Stroke) { s.Width = 0 }, "invalid width"},
		{"Width Too Large", func(s *models.Stroke) { s.Width = 21 }, "invalid width"},
		{"No Points", func(s *models.Stroke) { s.Points = nil }, "empty stroke"},
		{"Point Below Range", func(s *models.Stroke) { s.Points[0].X = -0.01 }, "point out of bounds"},
		{"Point Above Range", func(s *models.Stroke) { s.Points[1].Y = 1.01 }, "point out of bounds"},
		{"Boundary Points Valid", func(s *models.Stroke) {
			s.Points = []models.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}
		}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stroke := base()
			tc.mutate(&stroke)
			err := service.ValidateStroke(stroke)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestValidateStroke_TooManyPoints(t *testing.T) {
	points := make([]models.Point, 1001)
	for i := range points {
		points[i] = models.Point{X: 0.5, Y: 0.5}
	}
	err := service.ValidateStroke(models.Stroke{
		Page:   1,
		Color:  "#ff0000",
		Width:  5,
		Points: points,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stroke too long")
}

func TestValidateClassID(t *testing.T) {
	assert.NoError(t, service.ValidateClassID("abcDEF12"))
	assert.NoError(t, service.ValidateClassID("a_b-c"))
	assert.Error(t, service.ValidateClassID(""))
	assert.Error(t, service.ValidateClassID("has space"))
	assert.Error(t, service.ValidateClassID("class/../../etc"))

	long := ""
	for i := 0; i < 33; i++ {
		long += "a"
	}
	assert.Error(t, service.ValidateClassID(long))
}

func TestValidatePage(t *testing.T) {
	assert.Error(t, service.ValidatePage(0))
	assert.Error(t, service.ValidatePage(-1))
	assert.NoError(t, service.ValidatePage(1))
	assert.NoError(t, service.ValidatePage(10000))
	assert.Error(t, service.ValidatePage(10001))
}

