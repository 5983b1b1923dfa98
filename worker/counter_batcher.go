package worker

import (
	"context"
	"log"
	"time"

	"github.com/kshivamiitk/classboard/store"
)

type CounterUpdate struct {
	ClassID      string
	StudentToken string
	Delta        int
}

type CounterBatcher struct {
	UpdateCh           chan CounterUpdate
	classStore         store.ClassStore
	tickerMilliseconds int
}

func NewCounterBatcher(classStore store.ClassStore, tickerMilliseconds int) *CounterBatcher {
	return &CounterBatcher{
		UpdateCh:           make(chan CounterUpdate, 1024),
		classStore:         classStore,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *CounterBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	// Key: "classId#studentToken" -> accumulated delta
	counts := make(map[string]int)
	type studentKey struct {
		classID string
		token   string
	}
	keys := make(map[string]studentKey)

	flush := func() {
		for key, count := range counts {
			if count == 0 {
				continue
			}
			sk := keys[key]
			go func(classID string, token string, c int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.classStore.IncrementStudentStrokeCount(ctx, classID, token, c); err != nil {
					log.Printf("Failed to update stroke count for student %s#%s: %v", classID, token, err)
				}
			}(sk.classID, sk.token, count)
		}
		counts = make(map[string]int)
		keys = make(map[string]studentKey)
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.ClassID != "" && update.StudentToken != "" {
				key := update.ClassID + "#" + update.StudentToken
				counts[key] += update.Delta
				keys[key] = studentKey{classID: update.ClassID, token: update.StudentToken}
			}

			if len(counts) >= 100 {
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
