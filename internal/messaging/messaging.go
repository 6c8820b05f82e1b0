package messaging

import (
	"context"

	"github.com/google/uuid"
)

const (
	SegmentQueue = "segment_queue"
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type SegmentTaskPayload struct {
	JobId uuid.UUID
}

type Publisher interface {
	PublishSegmentTask(ctx context.Context, payload SegmentTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
