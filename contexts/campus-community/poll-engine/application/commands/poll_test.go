package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"unihub/contexts/campus-community/poll-engine/adapters/memory"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
)

func newPollUseCase(store *memory.Store) PollUseCase {
	return PollUseCase{
		Polls:  store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}
}

func TestCreatePollAssignsIDsAndZeroTallies(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newPollUseCase(store)

	poll, err := uc.CreatePoll(context.Background(), CreatePollCommand{
		CreatorID:  "creator-1",
		Header:     "Best study spot",
		Options:    []string{"Library", "Cafeteria", "Dorm"},
		University: "metu",
		Category:   "campus-life",
	})
	if err != nil {
		t.Fatalf("create poll failed: %v", err)
	}
	if !strings.HasPrefix(poll.PollID, "pol_") {
		t.Fatalf("expected pol_ prefixed id, got %q", poll.PollID)
	}
	if len(poll.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(poll.Options))
	}
	seen := map[string]bool{}
	for _, option := range poll.Options {
		if option.OptionID == "" || seen[option.OptionID] {
			t.Fatalf("option ids must be unique and non-empty: %+v", poll.Options)
		}
		seen[option.OptionID] = true
		if option.VoteCount != 0 {
			t.Fatalf("new option must start at zero votes: %+v", option)
		}
	}
	if !poll.IsActive || len(poll.Votes) != 0 {
		t.Fatalf("new poll must be active with empty ledger: %+v", poll)
	}

	stored, err := store.GetPoll(context.Background(), poll.PollID)
	if err != nil {
		t.Fatalf("stored poll lookup failed: %v", err)
	}
	if stored.Header != "Best study spot" || stored.University != "metu" {
		t.Fatalf("stored poll fields wrong: %+v", stored)
	}
}

func TestCreatePollValidation(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newPollUseCase(store)

	_, err := uc.CreatePoll(context.Background(), CreatePollCommand{
		CreatorID: "creator-1",
		Header:    "One option only",
		Options:   []string{"Yes", "   "},
	})
	if !errors.Is(err, domainerrors.ErrInvalidPollInput) {
		t.Fatalf("expected ErrInvalidPollInput for a single usable option, got %v", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	_, err = uc.CreatePoll(context.Background(), CreatePollCommand{
		CreatorID: "creator-1",
		Header:    "Expired before it starts",
		Options:   []string{"A", "B"},
		ClosesAt:  &past,
	})
	if !errors.Is(err, domainerrors.ErrDeadlineInPast) {
		t.Fatalf("expected ErrDeadlineInPast, got %v", err)
	}
}

func TestCreatePollAllowsDuplicateOptionTexts(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newPollUseCase(store)

	poll, err := uc.CreatePoll(context.Background(), CreatePollCommand{
		CreatorID: "creator-1",
		Header:    "Same label twice",
		Options:   []string{"Yes", "Yes"},
	})
	if err != nil {
		t.Fatalf("create poll failed: %v", err)
	}
	if len(poll.Options) != 2 || poll.Options[0].OptionID == poll.Options[1].OptionID {
		t.Fatalf("duplicate texts must still get distinct option ids: %+v", poll.Options)
	}
}

func TestUpdatePollCreatorOnly(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	uc := newPollUseCase(store)

	header := "New header"
	_, err := uc.UpdatePoll(context.Background(), UpdatePollCommand{
		PollID:    "pol_1",
		CreatorID: "someone-else",
		Header:    &header,
	})
	if !errors.Is(err, domainerrors.ErrNotPollCreator) {
		t.Fatalf("expected ErrNotPollCreator, got %v", err)
	}

	updated, err := uc.UpdatePoll(context.Background(), UpdatePollCommand{
		PollID:    "pol_1",
		CreatorID: "creator-1",
		Header:    &header,
	})
	if err != nil {
		t.Fatalf("creator update failed: %v", err)
	}
	if updated.Header != "New header" {
		t.Fatalf("header not updated: %+v", updated)
	}
}

func TestOptionReplacementResetsTalliesAndPurgesLedger(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	votes := newVoteUseCase(store)
	polls := newPollUseCase(store)

	for _, cast := range []struct{ voter, option string }{
		{"u1", "opt-tea"},
		{"u2", "opt-coffee"},
		{"u3", "opt-coffee"},
	} {
		if _, err := votes.CastVote(context.Background(), CastVoteCommand{
			PollID: "pol_1", VoterID: cast.voter, OptionID: cast.option,
		}); err != nil {
			t.Fatalf("seed vote failed: %v", err)
		}
	}

	updated, err := polls.UpdatePoll(context.Background(), UpdatePollCommand{
		PollID:    "pol_1",
		CreatorID: "creator-1",
		Options:   []string{"Water", "Juice"},
	})
	if err != nil {
		t.Fatalf("option replacement failed: %v", err)
	}
	snapshot := updated.Tally()
	if snapshot.TotalVotes != 0 {
		t.Fatalf("expected zero total after replacement, got %d", snapshot.TotalVotes)
	}
	for _, option := range snapshot.Options {
		if option.VoteCount != 0 {
			t.Fatalf("expected zeroed counts after replacement: %+v", snapshot.Options)
		}
	}
	if len(updated.Votes) != 0 {
		t.Fatalf("expected purged ledger, got %d entries", len(updated.Votes))
	}

	// A voter with a pre-replacement vote counts as a fresh voter now.
	after, err := votes.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: updated.Options[0].OptionID,
	})
	if err != nil {
		t.Fatalf("re-vote after replacement failed: %v", err)
	}
	if after.TotalVotes != 1 {
		t.Fatalf("expected total 1 after re-vote, got %d", after.TotalVotes)
	}
}

func TestClosePollIsPermanentAndIdempotent(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	polls := newPollUseCase(store)
	votes := newVoteUseCase(store)

	if err := polls.ClosePoll(context.Background(), ClosePollCommand{
		PollID: "pol_1", CreatorID: "creator-1",
	}); err != nil {
		t.Fatalf("close poll failed: %v", err)
	}
	if err := polls.ClosePoll(context.Background(), ClosePollCommand{
		PollID: "pol_1", CreatorID: "creator-1",
	}); err != nil {
		t.Fatalf("second close must be a no-op, got %v", err)
	}

	_, err := votes.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	})
	if !errors.Is(err, domainerrors.ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed after closure, got %v", err)
	}
}

func TestClosePollCreatorOnly(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	polls := newPollUseCase(store)

	err := polls.ClosePoll(context.Background(), ClosePollCommand{
		PollID: "pol_1", CreatorID: "someone-else",
	})
	if !errors.Is(err, domainerrors.ErrNotPollCreator) {
		t.Fatalf("expected ErrNotPollCreator, got %v", err)
	}
}
