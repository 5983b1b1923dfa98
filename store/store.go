package store

import (
	"context"
	"errors"

	"github.com/kshivamiitk/classboard/models"
)

type ClassStore interface {
	CreateClass(ctx context.Context, class models.Class) (models.Class, error)
	GetClass(ctx context.Context, classID string) (models.Class, error)
	SetAnnotator(ctx context.Context, classID string, current string, lastStudent string) error

	PutStudent(ctx context.Context, classID string, student models.Student) error
	GetStudent(ctx context.Context, classID string, token string) (models.Student, error)
	ListStudents(ctx context.Context, classID string) ([]models.Student, error)
	IncrementStudentStrokeCount(ctx context.Context, classID string, token string, count int) error

	PutPending(ctx context.Context, classID string, req models.PendingRequest) error
	PopPending(ctx context.Context, classID string, requestID string) (models.PendingRequest, error)
	ListPending(ctx context.Context, classID string) ([]models.PendingRequest, error)

	GetStrokeRecords(ctx context.Context, classID string) ([]models.StrokeRecord, error)
	WriteStrokeBatch(ctx context.Context, strokes []models.StrokeRecord) ([]models.StrokeRecord, error)
	DeleteClassStrokes(ctx context.Context, classID string) error
	DeleteAuthorStrokes(ctx context.Context, classID string, author string) error
	GetAuthorStrokeCount(ctx context.Context, classID string, author string) (int, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
