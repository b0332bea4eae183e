package commands

import (
	"context"
	"encoding/json"
	"time"

	"unihub/contexts/campus-community/poll-engine/ports"
	"unihub/internal/shared/events"
)

const (
	EventPollCreated         = "poll.created"
	EventPollClosed          = "poll.closed"
	EventPollOptionsReplaced = "poll.options.replaced"
	EventPollVoteCast        = "poll.vote.cast"
)

// appendPollEvent writes an envelope-wrapped event to the outbox so the relay
// can publish it after the state change is durable.
func appendPollEvent(
	ctx context.Context,
	outbox ports.OutboxWriter,
	idGen ports.IDGenerator,
	eventType string,
	pollID string,
	now time.Time,
	payload map[string]any,
) error {
	if outbox == nil {
		return nil
	}
	eventID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope := events.Envelope{
		EventID:        eventID,
		EventType:      eventType,
		SourceService:  "unihub",
		OccurredAtUTC:  now.UTC(),
		EntityType:     "poll",
		EntityID:       pollID,
		PayloadVersion: 1,
		Payload:        payload,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID, err := idGen.NewID(ctx)
	if err != nil {
		return err
	}
	return outbox.AppendOutbox(ctx, ports.OutboxMessage{
		OutboxID:  outboxID,
		EventType: eventType,
		Payload:   raw,
		CreatedAt: now.UTC(),
	})
}
