package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kshivamiitk/classboard/models"
	mqmocks "github.com/kshivamiitk/classboard/mq/mocks"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/service"
	"github.com/kshivamiitk/classboard/store"
	"github.com/kshivamiitk/classboard/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// captureClearMessage records the queue message body parsed as a clear command.
func captureClearMessage(t *testing.T, mockMQ *mqmocks.MockMQ) *worker.ClearStrokesMessage {
	msg := &worker.ClearStrokesMessage{}
	mockMQ.On("Send", mock.Anything, mock.AnythingOfType("string")).Run(func(args mock.Arguments) {
		assert.NoError(t, json.Unmarshal([]byte(args.String(1)), msg))
	}).Return(nil)
	return msg
}

func TestClearAllStrokes(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("SetAnnotator", ctx, "c1", "", "").Return(nil)
	mockCache.On("SetAnnotator", ctx, "c1", "").Return(nil)
	queued := captureClearMessage(t, mockMQ)
	published := capturePublishes(mockCache, "c1")

	err := svc.ClearAllStrokes(ctx, "c1")
	assert.NoError(t, err)

	assert.Equal(t, "c1", queued.ClassID)
	assert.True(t, queued.DeleteAll)
	assert.Empty(t, queued.Author)

	_, ok := findFanout(t, *published, protocol.KindClearAll)
	assert.True(t, ok, "expected a clear_annotations broadcast")

	f, ok := findFanout(t, *published, protocol.KindAnnotatorUpdate)
	assert.True(t, ok)
	var update protocol.AnnotatorUpdate
	assert.NoError(t, json.Unmarshal(f.Payload, &update))
	assert.Empty(t, update.CurrentAnnotator)
}

func TestClearAllStrokes_QueueFailure(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("SetAnnotator", ctx, "c1", "", "").Return(nil)
	mockCache.On("SetAnnotator", ctx, "c1", "").Return(nil)
	mockMQ.On("Send", mock.Anything, mock.AnythingOfType("string")).Return(assert.AnError)

	err := svc.ClearAllStrokes(ctx, "c1")
	assert.Error(t, err)

	// Nothing is announced if the delete was never enqueued
	mockCache.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestClearTeacherStrokes(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	queued := captureClearMessage(t, mockMQ)
	published := capturePublishes(mockCache, "c1")

	err := svc.ClearTeacherStrokes(ctx, "c1")
	assert.NoError(t, err)

	assert.Equal(t, "c1", queued.ClassID)
	assert.Equal(t, models.TeacherAuthor, queued.Author)
	assert.False(t, queued.DeleteAll)

	// A teacher-only clear never touches the lock
	mockStore.AssertNotCalled(t, "SetAnnotator", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f, ok := findFanout(t, *published, protocol.KindInfo)
	assert.True(t, ok)
	var info protocol.Info
	assert.NoError(t, json.Unmarshal(f.Payload, &info))
	assert.Contains(t, info.Message, "Teacher annotations cleared")
}

func TestClearStudentStrokes_ReleasesHeldLock(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetClass", ctx, "c1").Return(models.Class{
		ID:                   "c1",
		CurrentAnnotator:     "tok-1",
		LastStudentAnnotator: "tok-1",
	}, nil)
	mockStore.On("SetAnnotator", ctx, "c1", "", "").Return(nil)
	mockCache.On("SetAnnotator", ctx, "c1", "").Return(nil)
	queued := captureClearMessage(t, mockMQ)
	published := capturePublishes(mockCache, "c1")

	err := svc.ClearStudentStrokes(ctx, "c1")
	assert.NoError(t, err)

	assert.Equal(t, "tok-1", queued.Author)
	assert.False(t, queued.DeleteAll)

	f, ok := findFanout(t, *published, protocol.KindAnnotatorUpdate)
	assert.True(t, ok)
	var update protocol.AnnotatorUpdate
	assert.NoError(t, json.Unmarshal(f.Payload, &update))
	assert.Empty(t, update.CurrentAnnotator)
}

func TestClearStudentStrokes_LockHeldByTeacherSurvives(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	// The last student annotator is cleared, but the teacher keeps the lock
	mockStore.On("GetClass", ctx, "c1").Return(models.Class{
		ID:                   "c1",
		CurrentAnnotator:     models.TeacherAuthor,
		LastStudentAnnotator: "tok-1",
	}, nil)
	mockStore.On("SetAnnotator", ctx, "c1", models.TeacherAuthor, "").Return(nil)
	mockCache.On("SetAnnotator", ctx, "c1", models.TeacherAuthor).Return(nil)
	queued := captureClearMessage(t, mockMQ)
	published := capturePublishes(mockCache, "c1")

	err := svc.ClearStudentStrokes(ctx, "c1")
	assert.NoError(t, err)

	assert.Equal(t, "tok-1", queued.Author)

	f, ok := findFanout(t, *published, protocol.KindAnnotatorUpdate)
	assert.True(t, ok)
	var update protocol.AnnotatorUpdate
	assert.NoError(t, json.Unmarshal(f.Payload, &update))
	assert.Equal(t, models.TeacherAuthor, update.CurrentAnnotator)
	assert.Equal(t, "Teacher", update.AnnotatorName)
}

func TestClearStudentStrokes_NoStudentAnnotations(t *testing.T) {
	svc, mockStore, _, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetClass", ctx, "c1").Return(models.Class{ID: "c1"}, nil)

	err := svc.ClearStudentStrokes(ctx, "c1")
	assert.ErrorIs(t, err, service.ErrNoStudentAnnotations)

	mockMQ.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "SetAnnotator", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClearStudentStrokes_UnknownClass(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetClass", ctx, "nope").Return(models.Class{}, store.ErrItemNotFound)

	err := svc.ClearStudentStrokes(ctx, "nope")
	assert.ErrorIs(t, err, service.ErrInvalidClass)
}

func TestClearMyStrokes_HolderClearsOwn(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetClass", ctx, "c1").Return(models.Class{
		ID:                   "c1",
		CurrentAnnotator:     "tok-1",
		LastStudentAnnotator: "tok-1",
	}, nil)
	mockStore.On("SetAnnotator", ctx, "c1", "", "").Return(nil)
	mockCache.On("SetAnnotator", ctx, "c1", "").Return(nil)
	queued := captureClearMessage(t, mockMQ)
	published := capturePublishes(mockCache, "c1")

	err := svc.ClearMyStrokes(ctx, "c1", "tok-1")
	assert.NoError(t, err)

	assert.Equal(t, "tok-1", queued.Author)

	f, ok := findFanout(t, *published, protocol.KindAnnotatorUpdate)
	assert.True(t, ok)
	var update protocol.AnnotatorUpdate
	assert.NoError(t, json.Unmarshal(f.Payload, &update))
	assert.Empty(t, update.CurrentAnnotator)
}

func TestClearMyStrokes_NonHolderKeepsLock(t *testing.T) {
	svc, mockStore, mockCache, mockMQ, _, _ := setupService(t)
	ctx := context.Background()

	mockStore.On("GetClass", ctx, "c1").Return(models.Class{
		ID:                   "c1",
		CurrentAnnotator:     "tok-2",
		LastStudentAnnotator: "tok-2",
	}, nil)
	mockStore.On("GetStudent", ctx, "c1", "tok-2").Return(models.Student{Token: "tok-2", Name: "Ben"}, nil)
	queued := captureClearMessage(t, mockMQ)
	published := capturePublishes(mockCache, "c1")

	err := svc.ClearMyStrokes(ctx, "c1", "tok-1")
	assert.NoError(t, err)

	assert.Equal(t, "tok-1", queued.Author)
	mockStore.AssertNotCalled(t, "SetAnnotator", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f, ok := findFanout(t, *published, protocol.KindAnnotatorUpdate)
	assert.True(t, ok)
	var update protocol.AnnotatorUpdate
	assert.NoError(t, json.Unmarshal(f.Payload, &update))
	assert.Equal(t, "tok-2", update.CurrentAnnotator)
	assert.Equal(t, "Ben", update.AnnotatorName)
}
