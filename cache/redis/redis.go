package redis

import (
	"context"
	"crypto/tls"
	"log"
	"strconv"
	"time"

	"github.com/kshivamiitk/classboard/cache"
	"github.com/redis/go-redis/v9"
)

type RedisClassCache struct {
	client redis.UniversalClient
}

func NewRedisClassCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisClassCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisClassCache{client: client}, nil
}

func (redisCache *RedisClassCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisClassCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Helper functions to generate Redis keys with hash tags so every key of one
// class hashes to the same cluster slot.
func buildStrokesKey(classID string) string {
	return "class:{" + classID + "}:strokes"
}

func buildStrokesDataKey(classID string) string {
	return "class:{" + classID + "}:strokes:data"
}

func buildPageCountsKey(classID string) string {
	return "class:{" + classID + "}:pages"
}

func buildCompleteKey(classID string) string {
	return "class:{" + classID + "}:complete"
}

func buildAnnotatorKey(classID string) string {
	return "class:{" + classID + "}:annotator"
}

func buildAuthorCountKey(classID string, author string) string {
	return "class:{" + classID + "}:author:" + author + ":stroke_count"
}

const cacheTTL = 10 * time.Minute

// Split index/data pattern, same idea as a chronological feed:
// 1. ZSet ("...:strokes"): StrokeIds ordered by timestamp score, keeps
//    log order and supports cheap counting.
// 2. Hash ("...:strokes:data"): StrokeId -> JSON blob for O(1) retrieval.
// 3. Hash ("...:pages"): page -> stroke count, maintained on every add,
//    backing the per-page quota check without deserializing strokes.
func (redisCache *RedisClassCache) AddStroke(ctx context.Context, classID string, strokeId string, score int64, page int, strokeData []byte) error {
	key := buildStrokesKey(classID)
	dataKey := buildStrokesDataKey(classID)
	pagesKey := buildPageCountsKey(classID)
	completeKey := buildCompleteKey(classID)

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: strokeId})
	pipe.HSet(ctx, dataKey, strokeId, strokeData)
	pipe.HIncrBy(ctx, pagesKey, strconv.Itoa(page), 1)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	pipe.Expire(ctx, pagesKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisClassCache) AddStrokesBatch(ctx context.Context, classID string, strokes []cache.StrokeCacheItem) error {
	if len(strokes) == 0 {
		return nil
	}

	key := buildStrokesKey(classID)
	dataKey := buildStrokesDataKey(classID)
	pagesKey := buildPageCountsKey(classID)
	completeKey := buildCompleteKey(classID)

	zMembers := make([]redis.Z, len(strokes))
	// A flat list of key, value, key, value... is most efficient for HSet in go-redis
	hValues := make([]interface{}, len(strokes)*2)
	pageCounts := make(map[int]int64)

	for i, s := range strokes {
		zMembers[i] = redis.Z{
			Score:  float64(s.Score),
			Member: s.StrokeId,
		}
		hValues[i*2] = s.StrokeId
		hValues[i*2+1] = s.Data
		pageCounts[s.Page]++
	}

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, zMembers...)
	pipe.HSet(ctx, dataKey, hValues...)
	for page, count := range pageCounts {
		pipe.HIncrBy(ctx, pagesKey, strconv.Itoa(page), count)
	}
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	pipe.Expire(ctx, pagesKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisClassCache) GetStrokes(ctx context.Context, classID string) ([][]byte, error) {
	key := buildStrokesKey(classID)
	dataKey := buildStrokesDataKey(classID)
	pagesKey := buildPageCountsKey(classID)
	completeKey := buildCompleteKey(classID)

	// 1. Get all IDs from ZSet ordered by score (chronological)
	ids, err := redisCache.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return [][]byte{}, nil
	}

	// 2. Fetch data from Hash
	dataMap, err := redisCache.client.HMGet(ctx, dataKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	// 3. Assemble result
	strokes := make([][]byte, 0, len(ids))
	for _, item := range dataMap {
		if item == nil {
			continue // Should not happen if consistency is maintained
		}
		if s, ok := item.(string); ok {
			strokes = append(strokes, []byte(s))
		}
	}

	// Refresh TTL
	pipe := redisCache.client.Pipeline()
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	pipe.Expire(ctx, pagesKey, cacheTTL)
	_, _ = pipe.Exec(ctx)

	return strokes, nil
}

func (redisCache *RedisClassCache) GetPageStrokeCount(ctx context.Context, classID string, page int) (int64, error) {
	pagesKey := buildPageCountsKey(classID)
	val, err := redisCache.client.HGet(ctx, pagesKey, strconv.Itoa(page)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return val, nil
}

func (redisCache *RedisClassCache) SetClassComplete(ctx context.Context, classID string) error {
	completeKey := buildCompleteKey(classID)
	return redisCache.client.Set(ctx, completeKey, "true", cacheTTL).Err()
}

func (redisCache *RedisClassCache) IsClassComplete(ctx context.Context, classID string) (bool, error) {
	completeKey := buildCompleteKey(classID)
	val, err := redisCache.client.Exists(ctx, completeKey).Result()
	if err != nil {
		return false, err
	}
	return val > 0, nil
}

func (redisCache *RedisClassCache) InvalidateClass(ctx context.Context, classID string) error {
	// All keys of one class share the same hash tag, so one DEL is slot-safe
	return redisCache.client.Del(ctx,
		buildStrokesKey(classID),
		buildStrokesDataKey(classID),
		buildPageCountsKey(classID),
		buildCompleteKey(classID),
	).Err()
}

func (redisCache *RedisClassCache) SetAnnotator(ctx context.Context, classID string, token string) error {
	return redisCache.client.Set(ctx, buildAnnotatorKey(classID), token, cacheTTL).Err()
}

func (redisCache *RedisClassCache) GetAnnotator(ctx context.Context, classID string) (string, bool, error) {
	val, err := redisCache.client.Get(ctx, buildAnnotatorKey(classID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Author stroke counts back the per-author quota.
func (redisCache *RedisClassCache) IncrementAuthorStrokeCount(ctx context.Context, classID string, author string) (int64, error) {
	key := buildAuthorCountKey(classID, author)
	count, err := redisCache.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return count, nil
}

func (redisCache *RedisClassCache) SeedAuthorStrokeCount(ctx context.Context, classID string, author string, count int) error {
	key := buildAuthorCountKey(classID, author)
	return redisCache.client.SetNX(ctx, key, count, cacheTTL).Err()
}

func (redisCache *RedisClassCache) GetAuthorStrokeCount(ctx context.Context, classID string, author string) (int, error) {
	key := buildAuthorCountKey(classID, author)
	val, err := redisCache.client.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // Not found
		}
		return 0, err
	}
	return val, nil
}

func (redisCache *RedisClassCache) InvalidateAuthorStrokeCount(ctx context.Context, classID string, author string) error {
	return redisCache.client.Del(ctx, buildAuthorCountKey(classID, author)).Err()
}
