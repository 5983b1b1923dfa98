package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/kshivamiitk/classboard/cache"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/mq"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/store"
)

// ClearStrokesMessage is the async clear job. DeleteAll wipes the whole
// class; otherwise only the given author's strokes go (either the teacher
// author tag or a student token).
type ClearStrokesMessage struct {
	ClassID   string `json:"classId"`
	Author    string `json:"author"`
	DeleteAll bool   `json:"deleteAll"`
}

type MQConsumer struct {
	clearStrokesQueue mq.MessageQueue
	classStore        store.ClassStore
	classCache        cache.ClassCache
	counterBatcher    *CounterBatcher
}

func NewMQConsumer(clearStrokesQueue mq.MessageQueue, classStore store.ClassStore, classCache cache.ClassCache, counterBatcher *CounterBatcher) *MQConsumer {
	return &MQConsumer{
		clearStrokesQueue: clearStrokesQueue,
		classStore:        classStore,
		classCache:        classCache,
		counterBatcher:    counterBatcher,
	}
}

// Allow up to 5 minutes for the throttled batch deletion of a class's strokes
const visibilityTimeout = 300

// strokeScore derives the redis sorted-set score from the stroke's UUIDv7
// creation time so cache and store agree on ordering.
func strokeScore(strokeId string) int64 {
	id, err := uuid.FromString(strokeId)
	if err != nil || id.Version() != uuid.V7 {
		return 0
	}
	ts, err := uuid.TimestampFromV7(id)
	if err != nil {
		return 0
	}
	t, err := ts.Time()
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.clearStrokesQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		var clearMsg ClearStrokesMessage
		if err := json.Unmarshal([]byte(msg.Body), &clearMsg); err != nil {
			continue
		}

		// timeout should be a little less than queue visibility timeout
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
		if err := mqConsumer.handleClear(ctx, clearMsg); err != nil {
			cancel()
			log.Printf("classStore clear strokes error: %v", err)
			continue
		}
		cancel()

		err = mqConsumer.clearStrokesQueue.Delete(context.Background(), msg)
		if err != nil {
			log.Printf("mqConsumer delete error: %v", err)
			continue
		}
	}
}

func (mqConsumer MQConsumer) handleClear(ctx context.Context, clearMsg ClearStrokesMessage) error {
	if clearMsg.DeleteAll {
		// Collect the authors before the wipe so their cached quota counters
		// can be dropped along with the strokes.
		records, err := mqConsumer.classStore.GetStrokeRecords(ctx, clearMsg.ClassID)
		if err != nil {
			return err
		}
		authors := make(map[string]struct{})
		for _, rec := range records {
			authors[rec.Stroke.Author] = struct{}{}
		}

		if err := mqConsumer.classStore.DeleteClassStrokes(ctx, clearMsg.ClassID); err != nil {
			return err
		}

		for author := range authors {
			if err := mqConsumer.classCache.InvalidateAuthorStrokeCount(ctx, clearMsg.ClassID, author); err != nil {
				log.Printf("Failed to invalidate author stroke count: %v", err)
			}
		}
	} else {
		// Count first so the student's stroke counter can be decremented
		totalDeleted, countErr := mqConsumer.classStore.GetAuthorStrokeCount(ctx, clearMsg.ClassID, clearMsg.Author)
		if countErr != nil {
			log.Printf("Failed to get stroke count for author %s: %v", clearMsg.Author, countErr)
		}

		if err := mqConsumer.classStore.DeleteAuthorStrokes(ctx, clearMsg.ClassID, clearMsg.Author); err != nil {
			return err
		}

		if clearMsg.Author != models.TeacherAuthor && totalDeleted > 0 {
			mqConsumer.counterBatcher.UpdateCh <- CounterUpdate{
				ClassID:      clearMsg.ClassID,
				StudentToken: clearMsg.Author,
				Delta:        -totalDeleted,
			}
		}

		if err := mqConsumer.classCache.InvalidateAuthorStrokeCount(ctx, clearMsg.ClassID, clearMsg.Author); err != nil {
			log.Printf("Failed to invalidate author stroke count: %v", err)
		}
	}

	// Drop the cached snapshot, rebuild it from the store, and push a fresh
	// full snapshot to every connected client so nobody is left rendering
	// strokes that no longer exist.
	if err := mqConsumer.classCache.InvalidateClass(ctx, clearMsg.ClassID); err != nil {
		log.Printf("Failed to invalidate class cache: %v", err)
	}

	records, err := mqConsumer.classStore.GetStrokeRecords(ctx, clearMsg.ClassID)
	if err != nil {
		return err
	}

	items := make([]cache.StrokeCacheItem, 0, len(records))
	byPage := make(map[string][]protocol.WireStroke)
	for _, rec := range records {
		wire := protocol.FromModel(rec.Stroke)
		data, err := json.Marshal(protocol.CachedStroke{Id: rec.Id, WireStroke: wire})
		if err != nil {
			continue
		}
		items = append(items, cache.StrokeCacheItem{
			StrokeId: rec.Id,
			Score:    strokeScore(rec.Id),
			Page:     rec.Stroke.Page,
			Data:     data,
		})
		byPage[wire.Page] = append(byPage[wire.Page], wire)
	}

	if len(items) > 0 {
		if err := mqConsumer.classCache.AddStrokesBatch(ctx, clearMsg.ClassID, items); err != nil {
			log.Printf("Failed to repopulate stroke cache: %v", err)
		}
	}
	if err := mqConsumer.classCache.SetClassComplete(ctx, clearMsg.ClassID); err != nil {
		log.Printf("Failed to mark class cache complete: %v", err)
	}

	payload, err := protocol.WrapFanout("", protocol.InitStrokes{
		Type:    protocol.KindInitStrokes,
		Strokes: byPage,
	})
	if err != nil {
		return err
	}
	return mqConsumer.classCache.Publish(ctx, "class:"+clearMsg.ClassID, payload)
}
