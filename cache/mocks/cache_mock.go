package mocks

import (
	"context"

	"github.com/kshivamiitk/classboard/cache"
	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) AddStroke(ctx context.Context, classID string, strokeId string, score int64, page int, strokeData []byte) error {
	args := m.Called(ctx, classID, strokeId, score, page, strokeData)
	return args.Error(0)
}

func (m *MockCache) AddStrokesBatch(ctx context.Context, classID string, strokes []cache.StrokeCacheItem) error {
	args := m.Called(ctx, classID, strokes)
	return args.Error(0)
}

func (m *MockCache) GetStrokes(ctx context.Context, classID string) ([][]byte, error) {
	args := m.Called(ctx, classID)
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockCache) GetPageStrokeCount(ctx context.Context, classID string, page int) (int64, error) {
	args := m.Called(ctx, classID, page)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SetClassComplete(ctx context.Context, classID string) error {
	args := m.Called(ctx, classID)
	return args.Error(0)
}

func (m *MockCache) IsClassComplete(ctx context.Context, classID string) (bool, error) {
	args := m.Called(ctx, classID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) InvalidateClass(ctx context.Context, classID string) error {
	args := m.Called(ctx, classID)
	return args.Error(0)
}

func (m *MockCache) SetAnnotator(ctx context.Context, classID string, token string) error {
	args := m.Called(ctx, classID, token)
	return args.Error(0)
}

func (m *MockCache) GetAnnotator(ctx context.Context, classID string) (string, bool, error) {
	args := m.Called(ctx, classID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) IncrementAuthorStrokeCount(ctx context.Context, classID string, author string) (int64, error) {
	args := m.Called(ctx, classID, author)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SeedAuthorStrokeCount(ctx context.Context, classID string, author string, count int) error {
	args := m.Called(ctx, classID, author, count)
	return args.Error(0)
}

func (m *MockCache) GetAuthorStrokeCount(ctx context.Context, classID string, author string) (int, error) {
	args := m.Called(ctx, classID, author)
	return args.Int(0), args.Error(1)
}

func (m *MockCache) InvalidateAuthorStrokeCount(ctx context.Context, classID string, author string) error {
	args := m.Called(ctx, classID, author)
	return args.Error(0)
}
