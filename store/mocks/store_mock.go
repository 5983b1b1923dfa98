package mocks

import (
	"context"

	"github.com/kshivamiitk/classboard/models"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateClass(ctx context.Context, class models.Class) (models.Class, error) {
	args := m.Called(ctx, class)
	return args.Get(0).(models.Class), args.Error(1)
}

func (m *MockStore) GetClass(ctx context.Context, classID string) (models.Class, error) {
	args := m.Called(ctx, classID)
	return args.Get(0).(models.Class), args.Error(1)
}

func (m *MockStore) SetAnnotator(ctx context.Context, classID string, current string, lastStudent string) error {
	args := m.Called(ctx, classID, current, lastStudent)
	return args.Error(0)
}

func (m *MockStore) PutStudent(ctx context.Context, classID string, student models.Student) error {
	args := m.Called(ctx, classID, student)
	return args.Error(0)
}

func (m *MockStore) GetStudent(ctx context.Context, classID string, token string) (models.Student, error) {
	args := m.Called(ctx, classID, token)
	return args.Get(0).(models.Student), args.Error(1)
}

func (m *MockStore) ListStudents(ctx context.Context, classID string) ([]models.Student, error) {
	args := m.Called(ctx, classID)
	return args.Get(0).([]models.Student), args.Error(1)
}

func (m *MockStore) IncrementStudentStrokeCount(ctx context.Context, classID string, token string, count int) error {
	args := m.Called(ctx, classID, token, count)
	return args.Error(0)
}

func (m *MockStore) PutPending(ctx context.Context, classID string, req models.PendingRequest) error {
	args := m.Called(ctx, classID, req)
	return args.Error(0)
}

func (m *MockStore) PopPending(ctx context.Context, classID string, requestID string) (models.PendingRequest, error) {
	args := m.Called(ctx, classID, requestID)
	return args.Get(0).(models.PendingRequest), args.Error(1)
}

func (m *MockStore) ListPending(ctx context.Context, classID string) ([]models.PendingRequest, error) {
	args := m.Called(ctx, classID)
	return args.Get(0).([]models.PendingRequest), args.Error(1)
}

func (m *MockStore) GetStrokeRecords(ctx context.Context, classID string) ([]models.StrokeRecord, error) {
	args := m.Called(ctx, classID)
	return args.Get(0).([]models.StrokeRecord), args.Error(1)
}

func (m *MockStore) WriteStrokeBatch(ctx context.Context, strokes []models.StrokeRecord) ([]models.StrokeRecord, error) {
	args := m.Called(ctx, strokes)
	return args.Get(0).([]models.StrokeRecord), args.Error(1)
}

func (m *MockStore) DeleteClassStrokes(ctx context.Context, classID string) error {
	args := m.Called(ctx, classID)
	return args.Error(0)
}

func (m *MockStore) DeleteAuthorStrokes(ctx context.Context, classID string, author string) error {
	args := m.Called(ctx, classID, author)
	return args.Error(0)
}

func (m *MockStore) GetAuthorStrokeCount(ctx context.Context, classID string, author string) (int, error) {
	args := m.Called(ctx, classID, author)
	return args.Int(0), args.Error(1)
}
