package ports

import (
	"context"
	"time"

	"unihub/contexts/campus-community/poll-engine/domain/entities"
	"unihub/internal/shared/events"
)

// PollFilter narrows ListPolls results. Zero values mean "no filter";
// OpenOnly is evaluated against Now.
type PollFilter struct {
	University string
	Category   string
	OpenOnly   bool
	Now        time.Time
}

// PollRepository stores poll documents. SavePoll is conditional on the
// version carried by the poll argument: implementations must reject the
// write with ErrConflict when the stored version differs, and return the
// poll with its new version on success.
type PollRepository interface {
	CreatePoll(ctx context.Context, poll entities.Poll) error
	GetPoll(ctx context.Context, pollID string) (entities.Poll, error)
	SavePoll(ctx context.Context, poll entities.Poll) (entities.Poll, error)
	ListPolls(ctx context.Context, filter PollFilter) ([]entities.Poll, error)
}

type OutboxMessage struct {
	OutboxID  string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, message OutboxMessage) error
}

type OutboxRepository interface {
	OutboxWriter
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
