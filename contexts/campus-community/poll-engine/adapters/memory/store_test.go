package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	"unihub/contexts/campus-community/poll-engine/ports"
)

func testPoll() entities.Poll {
	return entities.Poll{
		PollID:    "pol_1",
		Header:    "Test poll",
		CreatorID: "creator-1",
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
		Options: []entities.Option{
			{OptionID: "opt-a", Text: "A"},
			{OptionID: "opt-b", Text: "B"},
		},
		Votes:   []entities.Vote{},
		Version: 1,
	}
}

func TestSavePollRejectsStaleVersion(t *testing.T) {
	store := NewStore(nil)
	if err := store.CreatePoll(context.Background(), testPoll()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	second, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	first.Header = "writer one"
	saved, err := store.SavePoll(context.Background(), first)
	if err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if saved.Version != first.Version+1 {
		t.Fatalf("expected version bump to %d, got %d", first.Version+1, saved.Version)
	}

	second.Header = "writer two"
	if _, err := store.SavePoll(context.Background(), second); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale save, got %v", err)
	}

	current, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Header != "writer one" {
		t.Fatalf("stale writer overwrote state: %q", current.Header)
	}
}

func TestSavePollUnknownPoll(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.SavePoll(context.Background(), testPoll()); !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestCreatePollRejectsDuplicateID(t *testing.T) {
	store := NewStore(nil)
	if err := store.CreatePoll(context.Background(), testPoll()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.CreatePoll(context.Background(), testPoll()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate id, got %v", err)
	}
}

func TestGetPollReturnsIsolatedCopy(t *testing.T) {
	store := NewStore(nil)
	if err := store.CreatePoll(context.Background(), testPoll()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	loaded, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	loaded.Options[0].VoteCount = 99
	loaded.Votes = append(loaded.Votes, entities.Vote{VoterID: "u1", OptionID: "opt-a"})

	fresh, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fresh.Options[0].VoteCount != 0 || len(fresh.Votes) != 0 {
		t.Fatalf("mutating a loaded poll leaked into the store: %+v", fresh)
	}
}

func TestOutboxPendingAndPublish(t *testing.T) {
	store := NewStore(nil)
	base := time.Now().UTC()
	for i, id := range []string{"ob-1", "ob-2", "ob-3"} {
		if err := store.AppendOutbox(context.Background(), ports.OutboxMessage{
			OutboxID:  id,
			EventType: "poll.vote.cast",
			Payload:   []byte(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
	}

	pending, err := store.ListPendingOutbox(context.Background(), 2)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 || pending[0].OutboxID != "ob-1" || pending[1].OutboxID != "ob-2" {
		t.Fatalf("expected oldest-first bounded batch, got %+v", pending)
	}

	if err := store.MarkOutboxPublished(context.Background(), "ob-1", base); err != nil {
		t.Fatalf("mark published failed: %v", err)
	}
	pending, err = store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending after publish, got %d", len(pending))
	}
	for _, row := range pending {
		if row.OutboxID == "ob-1" {
			t.Fatalf("published row still listed as pending")
		}
	}
}
