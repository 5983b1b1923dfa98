package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kshivamiitk/classboard/cache"
	"github.com/kshivamiitk/classboard/protocol"
)

// LoadStrokes returns the full committed stroke log for a class, bucketed by
// page the way init_strokes is sent. The redis snapshot is authoritative
// while marked complete; otherwise the store is read and merged with
// whatever recent strokes redis holds, and the gap is backfilled.
func (s *Service) LoadStrokes(ctx context.Context, classID string) (map[string][]protocol.WireStroke, error) {
	redisStrokesRaw, err := s.Cache.GetStrokes(ctx, classID)
	redisStrokes := []protocol.CachedStroke{}
	if err == nil {
		for _, b := range redisStrokesRaw {
			var cached protocol.CachedStroke
			if err := json.Unmarshal(b, &cached); err == nil {
				redisStrokes = append(redisStrokes, cached)
			}
		}
	}

	isComplete, _ := s.Cache.IsClassComplete(ctx, classID)
	if isComplete && err == nil {
		return bucketByPage(redisStrokes), nil
	}

	// Fallback to DynamoDB + merge with redis
	records, err := s.Store.GetStrokeRecords(ctx, classID)
	if err != nil {
		return nil, err
	}

	dbStrokes := make([]protocol.CachedStroke, 0, len(records))
	for _, rec := range records {
		dbStrokes = append(dbStrokes, protocol.CachedStroke{
			Id:         rec.Id,
			WireStroke: protocol.FromModel(rec.Stroke),
		})
	}

	finalStrokes := mergeStrokes(dbStrokes, redisStrokes)

	// Backfill only what redis is missing; page counts are HIncrBy-based,
	// so re-adding strokes already cached would inflate them.
	inRedis := make(map[string]struct{}, len(redisStrokes))
	for _, cached := range redisStrokes {
		inRedis[cached.Id] = struct{}{}
	}

	batchItems := make([]cache.StrokeCacheItem, 0, len(dbStrokes))
	for _, cached := range dbStrokes {
		if _, ok := inRedis[cached.Id]; ok {
			continue
		}
		sBytes, err := json.Marshal(cached)
		if err != nil {
			continue
		}
		t, _ := getTimeFromUUIDv7(cached.Id)
		page, _ := strconv.Atoi(cached.Page)
		batchItems = append(batchItems, cache.StrokeCacheItem{
			StrokeId: cached.Id,
			Score:    t.UnixMilli(),
			Page:     page,
			Data:     sBytes,
		})
	}

	if len(batchItems) > 0 {
		s.Cache.AddStrokesBatch(ctx, classID, batchItems)
	}
	// Mark complete even when currently empty
	s.Cache.SetClassComplete(ctx, classID)

	return bucketByPage(finalStrokes), nil
}

// InitStrokes wraps the current stroke log in its wire envelope.
func (s *Service) InitStrokes(ctx context.Context, classID string) (protocol.InitStrokes, error) {
	byPage, err := s.LoadStrokes(ctx, classID)
	if err != nil {
		return protocol.InitStrokes{}, err
	}
	return protocol.InitStrokes{Type: protocol.KindInitStrokes, Strokes: byPage}, nil
}

// BroadcastGotoPage relays the teacher's page navigation to the class.
func (s *Service) BroadcastGotoPage(ctx context.Context, classID string, page int) error {
	if err := ValidatePage(page); err != nil {
		return err
	}
	s.broadcast(ctx, classID, protocol.GotoPage{Type: protocol.KindGotoPage, Page: page})
	return nil
}

func bucketByPage(strokes []protocol.CachedStroke) map[string][]protocol.WireStroke {
	byPage := make(map[string][]protocol.WireStroke)
	for _, cached := range strokes {
		byPage[cached.Page] = append(byPage[cached.Page], cached.WireStroke)
	}
	return byPage
}

// Both inputs arrive ordered by stroke id (UUIDv7, so chronological), which
// makes a linear merge with dedupe possible.
func mergeStrokes(dbStrokes []protocol.CachedStroke, redisStrokes []protocol.CachedStroke) []protocol.CachedStroke {
	finalStrokes := make([]protocol.CachedStroke, 0, len(dbStrokes)+len(redisStrokes))
	i, j := 0, 0
	for i < len(dbStrokes) && j < len(redisStrokes) {
		dbId := dbStrokes[i].Id
		redisId := redisStrokes[j].Id

		if dbId == redisId {
			finalStrokes = append(finalStrokes, redisStrokes[j])
			i++
			j++
		} else if dbId < redisId {
			finalStrokes = append(finalStrokes, dbStrokes[i])
			i++
		} else {
			finalStrokes = append(finalStrokes, redisStrokes[j])
			j++
		}
	}
	if i < len(dbStrokes) {
		finalStrokes = append(finalStrokes, dbStrokes[i:]...)
	}
	if j < len(redisStrokes) {
		finalStrokes = append(finalStrokes, redisStrokes[j:]...)
	}
	return finalStrokes
}
