package service

import (
	"context"
	"log"

	"github.com/kshivamiitk/classboard/cache"
	"github.com/kshivamiitk/classboard/mq"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/store"
	"github.com/kshivamiitk/classboard/worker"
)

type Service struct {
	Store          store.ClassStore
	Cache          cache.ClassCache
	MQ             mq.MessageQueue
	StrokeBatcher  *worker.StrokeBatcher
	CounterBatcher *worker.CounterBatcher
}

func NewService(
	store store.ClassStore,
	cache cache.ClassCache,
	mq mq.MessageQueue,
	strokeBatcher *worker.StrokeBatcher,
	counterBatcher *worker.CounterBatcher,
) *Service {
	return &Service{
		Store:          store,
		Cache:          cache,
		MQ:             mq,
		StrokeBatcher:  strokeBatcher,
		CounterBatcher: counterBatcher,
	}
}

// ClassChannel is the pub/sub channel carrying all fan-out for one class.
func ClassChannel(classID string) string {
	return "class:" + classID
}

// broadcast publishes a payload to every connection in the class, across
// all server instances subscribed to the class channel.
func (s *Service) broadcast(ctx context.Context, classID string, payload any) {
	data, err := protocol.WrapFanout("", payload)
	if err != nil {
		log.Printf("Failed to marshal broadcast for class %s: %v", classID, err)
		return
	}
	if err := s.Cache.Publish(ctx, ClassChannel(classID), data); err != nil {
		log.Printf("Failed to publish broadcast for class %s: %v", classID, err)
	}
}

// sendTo publishes a payload routed only to connections holding the given
// identity token within the class.
func (s *Service) sendTo(ctx context.Context, classID string, target string, payload any) {
	data, err := protocol.WrapFanout(target, payload)
	if err != nil {
		log.Printf("Failed to marshal targeted message for class %s: %v", classID, err)
		return
	}
	if err := s.Cache.Publish(ctx, ClassChannel(classID), data); err != nil {
		log.Printf("Failed to publish targeted message for class %s: %v", classID, err)
	}
}
