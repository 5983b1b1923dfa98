package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kshivamiitk/classboard/cache"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func cachedStrokeBytes(t *testing.T, id string, page string, author string) []byte {
	b, err := json.Marshal(protocol.CachedStroke{
		Id: id,
		WireStroke: protocol.WireStroke{
			Page:   page,
			Author: author,
			Color:  "#000000",
			Width:  2,
			Points: []models.Point{{X: 0.5, Y: 0.5}},
		},
	})
	assert.NoError(t, err)
	return b
}

func TestLoadStrokes_CompleteSnapshotServedFromCache(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("GetStrokes", ctx, "c1").Return([][]byte{
		cachedStrokeBytes(t, "0001", "1", models.TeacherAuthor),
		cachedStrokeBytes(t, "0002", "1", "tok-1"),
		cachedStrokeBytes(t, "0003", "3", models.TeacherAuthor),
	}, nil)
	mockCache.On("IsClassComplete", ctx, "c1").Return(true, nil)

	byPage, err := svc.LoadStrokes(ctx, "c1")
	assert.NoError(t, err)
	assert.Len(t, byPage["1"], 2)
	assert.Len(t, byPage["3"], 1)
	assert.Equal(t, models.TeacherAuthor, byPage["1"][0].Author)
	assert.Equal(t, "tok-1", byPage["1"][1].Author)

	// The store is never touched while the snapshot is authoritative
	mockStore.AssertNotCalled(t, "GetStrokeRecords", mock.Anything, mock.Anything)
}

func TestLoadStrokes_FallbackMergesAndBackfills(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	// Redis holds only the newest stroke; the store has both
	mockCache.On("GetStrokes", ctx, "c1").Return([][]byte{
		cachedStrokeBytes(t, "0002", "1", "tok-1"),
	}, nil)
	mockCache.On("IsClassComplete", ctx, "c1").Return(false, nil)

	mockStore.On("GetStrokeRecords", ctx, "c1").Return([]models.StrokeRecord{
		{
			ClassID: "c1",
			Id:      "0001",
			Stroke: models.Stroke{
				Page:   1,
				Author: models.TeacherAuthor,
				Color:  "#000000",
				Width:  2,
				Points: []models.Point{{X: 0.5, Y: 0.5}},
			},
		},
		{
			ClassID: "c1",
			Id:      "0002",
			Stroke: models.Stroke{
				Page:   1,
				Author: "tok-1",
				Color:  "#000000",
				Width:  2,
				Points: []models.Point{{X: 0.5, Y: 0.5}},
			},
		},
	}, nil)

	// Only the stroke missing from redis is backfilled; re-adding cached
	// strokes would inflate the page counters
	var backfilled []cache.StrokeCacheItem
	mockCache.On("AddStrokesBatch", ctx, "c1", mock.Anything).Run(func(args mock.Arguments) {
		backfilled = args.Get(2).([]cache.StrokeCacheItem)
	}).Return(nil)
	mockCache.On("SetClassComplete", ctx, "c1").Return(nil)

	byPage, err := svc.LoadStrokes(ctx, "c1")
	assert.NoError(t, err)
	assert.Len(t, byPage["1"], 2)
	assert.Equal(t, models.TeacherAuthor, byPage["1"][0].Author)
	assert.Equal(t, "tok-1", byPage["1"][1].Author)

	assert.Len(t, backfilled, 1)
	assert.Equal(t, "0001", backfilled[0].StrokeId)
	assert.Equal(t, 1, backfilled[0].Page)

	mockCache.AssertCalled(t, "SetClassComplete", ctx, "c1")
}

func TestLoadStrokes_EmptyClassMarkedComplete(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("GetStrokes", ctx, "c1").Return([][]byte{}, nil)
	mockCache.On("IsClassComplete", ctx, "c1").Return(false, nil)
	mockStore.On("GetStrokeRecords", ctx, "c1").Return([]models.StrokeRecord{}, nil)
	mockCache.On("SetClassComplete", ctx, "c1").Return(nil)

	byPage, err := svc.LoadStrokes(ctx, "c1")
	assert.NoError(t, err)
	assert.Empty(t, byPage)

	// Nothing to backfill, but the empty snapshot is still marked complete
	mockCache.AssertNotCalled(t, "AddStrokesBatch", mock.Anything, mock.Anything, mock.Anything)
	mockCache.AssertCalled(t, "SetClassComplete", ctx, "c1")
}

func TestInitStrokes_WrapsLog(t *testing.T) {
	svc, _, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	mockCache.On("GetStrokes", ctx, "c1").Return([][]byte{
		cachedStrokeBytes(t, "0001", "2", models.TeacherAuthor),
	}, nil)
	mockCache.On("IsClassComplete", ctx, "c1").Return(true, nil)

	msg, err := svc.InitStrokes(ctx, "c1")
	assert.NoError(t, err)
	assert.Equal(t, protocol.KindInitStrokes, msg.Type)
	assert.Len(t, msg.Strokes["2"], 1)
}

func TestBroadcastGotoPage(t *testing.T) {
	svc, _, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	published := capturePublishes(mockCache, "c1")

	err := svc.BroadcastGotoPage(ctx, "c1", 7)
	assert.NoError(t, err)

	f, ok := findFanout(t, *published, protocol.KindGotoPage)
	assert.True(t, ok)
	assert.Empty(t, f.Target)
	var goTo protocol.GotoPage
	assert.NoError(t, json.Unmarshal(f.Payload, &goTo))
	assert.Equal(t, 7, goTo.Page)
}

func TestBroadcastGotoPage_InvalidPage(t *testing.T) {
	svc, _, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	err := svc.BroadcastGotoPage(ctx, "c1", 0)
	assert.Error(t, err)
	mockCache.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
