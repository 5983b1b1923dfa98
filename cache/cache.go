package cache

import "context"

type StrokeCacheItem struct {
	StrokeId string
	Score    int64
	Page     int
	Data     []byte
}

type ClassCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	AddStroke(ctx context.Context, classID string, strokeId string, score int64, page int, strokeData []byte) error
	AddStrokesBatch(ctx context.Context, classID string, strokes []StrokeCacheItem) error
	GetStrokes(ctx context.Context, classID string) ([][]byte, error)
	GetPageStrokeCount(ctx context.Context, classID string, page int) (int64, error)

	SetClassComplete(ctx context.Context, classID string) error
	IsClassComplete(ctx context.Context, classID string) (bool, error)
	InvalidateClass(ctx context.Context, classID string) error

	// Annotator lock mirror: write-through on every change so stroke
	// authorization does not hit the store on the hot path.
	SetAnnotator(ctx context.Context, classID string, token string) error
	GetAnnotator(ctx context.Context, classID string) (string, bool, error)

	IncrementAuthorStrokeCount(ctx context.Context, classID string, author string) (int64, error)
	SeedAuthorStrokeCount(ctx context.Context, classID string, author string, count int) error
	GetAuthorStrokeCount(ctx context.Context, classID string, author string) (int, error)
	InvalidateAuthorStrokeCount(ctx context.Context, classID string, author string) error
}
