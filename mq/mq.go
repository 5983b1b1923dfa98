package mq

import "context"

// MessageQueue carries asynchronous clear jobs; bodies are JSON-encoded
// by the producer and decoded by the consumer worker.
type MessageQueue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	Id   string
	Body string
}
