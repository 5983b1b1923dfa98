package worker

import (
	"context"
	"log"
	"time"

	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/store"
)

type BatchedStroke struct {
	Record models.StrokeRecord
	// StudentToken is set when the author is a student, so the per-student
	// stroke counter can be updated after a successful flush. Teacher
	// strokes leave it empty.
	StudentToken string
}

type StrokeBatcher struct {
	WriteCh            chan BatchedStroke
	classStore         store.ClassStore
	counterBatcher     *CounterBatcher
	tickerMilliseconds int
}

func NewStrokeBatcher(classStore store.ClassStore, tickerMilliseconds int, counterBatcher *CounterBatcher) *StrokeBatcher {
	return &StrokeBatcher{
		WriteCh:            make(chan BatchedStroke, 1024), // buffer to absorb bursts
		classStore:         classStore,
		counterBatcher:     counterBatcher,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *StrokeBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]models.StrokeRecord, 0, 25)
	// Keep the student token associated with each stroke id so the counter
	// batcher can be fed only for strokes that actually persisted.
	batchMeta := make(map[string]BatchedStroke, 25)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Explicitly ignore cancel to satisfy linter
		// In this case, we don't want to defer cancel(),
		// when shutdownCtx causes this function to return
		// any pending batch writes should finish
		_ = cancel
		unprocessed, err := b.classStore.WriteStrokeBatch(ctx, batch)

		if err != nil {
			log.Printf("Error writing stroke batch to dynamo: %v", err)
		}

		// Calculate successes: Everything in batch MINUS unprocessed
		failedMap := make(map[string]bool)
		for _, u := range unprocessed {
			failedMap[u.Id] = true
		}

		for _, s := range batch {
			if failedMap[s.Id] {
				continue
			}
			if meta, ok := batchMeta[s.Id]; ok && meta.StudentToken != "" {
				b.counterBatcher.UpdateCh <- CounterUpdate{
					ClassID:      s.ClassID,
					StudentToken: meta.StudentToken,
					Delta:        1,
				}
			}
		}

		batch = batch[:0]
		clear(batchMeta)
	}

	for {
		select {
		case item := <-b.WriteCh:
			batch = append(batch, item.Record)
			batchMeta[item.Record.Id] = item
			if len(batch) == 25 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
