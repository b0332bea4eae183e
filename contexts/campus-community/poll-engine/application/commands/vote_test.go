package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"unihub/contexts/campus-community/poll-engine/adapters/memory"
	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

func seedPoll(t *testing.T, store *memory.Store, poll entities.Poll) {
	t.Helper()
	if poll.Version == 0 {
		poll.Version = 1
	}
	if poll.CreatedAt.IsZero() {
		poll.CreatedAt = time.Now().UTC().Add(-time.Hour)
	}
	if err := store.CreatePoll(context.Background(), poll); err != nil {
		t.Fatalf("seed poll failed: %v", err)
	}
}

func teaCoffeePoll() entities.Poll {
	return entities.Poll{
		PollID:    "pol_1",
		Header:    "Favourite drink",
		CreatorID: "creator-1",
		IsActive:  true,
		Options: []entities.Option{
			{OptionID: "opt-tea", Text: "Tea"},
			{OptionID: "opt-coffee", Text: "Coffee"},
		},
		Votes: []entities.Vote{},
	}
}

func newVoteUseCase(store *memory.Store) VoteUseCase {
	return VoteUseCase{
		Polls:  store,
		Outbox: store,
		Clock:  store,
		IDGen:  store,
	}
}

func countFor(t *testing.T, snapshot entities.TallySnapshot, optionID string) int {
	t.Helper()
	for _, option := range snapshot.Options {
		if option.OptionID == optionID {
			return option.VoteCount
		}
	}
	t.Fatalf("option %s missing from snapshot", optionID)
	return 0
}

func TestCastVoteThenChangeMovesTally(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	uc := newVoteUseCase(store)

	first, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-coffee",
	})
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	if countFor(t, first, "opt-coffee") != 1 || countFor(t, first, "opt-tea") != 0 {
		t.Fatalf("unexpected tallies after first cast: %+v", first.Options)
	}
	if first.TotalVotes != 1 {
		t.Fatalf("expected total 1, got %d", first.TotalVotes)
	}

	changed, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	})
	if err != nil {
		t.Fatalf("re-vote failed: %v", err)
	}
	if countFor(t, changed, "opt-tea") != 1 || countFor(t, changed, "opt-coffee") != 0 {
		t.Fatalf("re-vote did not move tally: %+v", changed.Options)
	}
	if changed.TotalVotes != 1 {
		t.Fatalf("expected total unchanged at 1, got %d", changed.TotalVotes)
	}

	second, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u2", OptionID: "opt-coffee",
	})
	if err != nil {
		t.Fatalf("second voter failed: %v", err)
	}
	if countFor(t, second, "opt-tea") != 1 || countFor(t, second, "opt-coffee") != 1 {
		t.Fatalf("unexpected tallies after second voter: %+v", second.Options)
	}
	if second.TotalVotes != 2 {
		t.Fatalf("expected total 2, got %d", second.TotalVotes)
	}
}

func TestCastVoteSameOptionIsIdempotent(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	uc := newVoteUseCase(store)

	if _, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	}); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	repeat, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	})
	if err != nil {
		t.Fatalf("repeat cast failed: %v", err)
	}
	if countFor(t, repeat, "opt-tea") != 1 || repeat.TotalVotes != 1 {
		t.Fatalf("repeat cast changed tallies: %+v", repeat.Options)
	}

	poll, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	if len(poll.Votes) != 1 {
		t.Fatalf("expected single ledger entry, got %d", len(poll.Votes))
	}
}

func TestCastVoteRejectsClosedPoll(t *testing.T) {
	store := memory.NewStore(nil)
	deadline := time.Now().UTC().Add(-time.Minute)
	poll := teaCoffeePoll()
	poll.ClosesAt = &deadline
	seedPoll(t, store, poll)
	uc := newVoteUseCase(store)

	_, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	})
	if !errors.Is(err, domainerrors.ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed for past deadline, got %v", err)
	}

	inactive := teaCoffeePoll()
	inactive.PollID = "pol_2"
	inactive.IsActive = false
	seedPoll(t, store, inactive)

	_, err = uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_2", VoterID: "u1", OptionID: "opt-tea",
	})
	if !errors.Is(err, domainerrors.ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed for inactive poll, got %v", err)
	}
}

func TestCastVoteDeadlineInstantIsClosed(t *testing.T) {
	store := memory.NewStore(nil)
	deadline := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	poll := teaCoffeePoll()
	poll.ClosesAt = &deadline
	seedPoll(t, store, poll)

	uc := newVoteUseCase(store)
	uc.Clock = fixedClock{at: deadline}

	_, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	})
	if !errors.Is(err, domainerrors.ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed at the deadline instant, got %v", err)
	}

	uc.Clock = fixedClock{at: deadline.Add(-time.Second)}
	if _, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-tea",
	}); err != nil {
		t.Fatalf("cast just before deadline failed: %v", err)
	}
}

func TestCastVoteUnknownOptionAndPoll(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	uc := newVoteUseCase(store)

	_, err := uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_1", VoterID: "u1", OptionID: "opt-juice",
	})
	if !errors.Is(err, domainerrors.ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}

	_, err = uc.CastVote(context.Background(), CastVoteCommand{
		PollID: "pol_missing", VoterID: "u1", OptionID: "opt-tea",
	})
	if !errors.Is(err, domainerrors.ErrPollNotFound) {
		t.Fatalf("expected ErrPollNotFound, got %v", err)
	}
}

func TestConcurrentDistinctVotersAllLand(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	uc := newVoteUseCase(store)
	uc.CastAttempts = 100

	const voters = 32
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := uc.CastVote(context.Background(), CastVoteCommand{
				PollID:   "pol_1",
				VoterID:  fmt.Sprintf("voter-%d", n),
				OptionID: "opt-coffee",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent cast failed: %v", err)
		}
	}

	poll, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	snapshot := poll.Tally()
	if countFor(t, snapshot, "opt-coffee") != voters {
		t.Fatalf("expected %d coffee votes, got %d", voters, countFor(t, snapshot, "opt-coffee"))
	}
	if snapshot.TotalVotes != len(poll.Votes) {
		t.Fatalf("tally/ledger mismatch: total %d, ledger %d", snapshot.TotalVotes, len(poll.Votes))
	}
}

func TestConcurrentRecastsBySameVoterKeepSingleLedgerEntry(t *testing.T) {
	store := memory.NewStore(nil)
	seedPoll(t, store, teaCoffeePoll())
	uc := newVoteUseCase(store)
	uc.CastAttempts = 100

	const rounds = 40
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			optionID := "opt-tea"
			if n%2 == 0 {
				optionID = "opt-coffee"
			}
			// Conflict exhaustion is acceptable under deliberate contention;
			// consistency is what the test asserts.
			_, _ = uc.CastVote(context.Background(), CastVoteCommand{
				PollID: "pol_1", VoterID: "u1", OptionID: optionID,
			})
		}(i)
	}
	wg.Wait()

	poll, err := store.GetPoll(context.Background(), "pol_1")
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	if len(poll.Votes) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(poll.Votes))
	}
	snapshot := poll.Tally()
	if snapshot.TotalVotes != 1 {
		t.Fatalf("expected total 1, got %d", snapshot.TotalVotes)
	}
	winner := poll.Votes[0].OptionID
	if countFor(t, snapshot, winner) != 1 {
		t.Fatalf("winning option %s does not carry the vote: %+v", winner, snapshot.Options)
	}
}

func TestCastVoteValidatesInput(t *testing.T) {
	store := memory.NewStore(nil)
	uc := newVoteUseCase(store)

	_, err := uc.CastVote(context.Background(), CastVoteCommand{PollID: "pol_1"})
	if !errors.Is(err, domainerrors.ErrInvalidPollInput) {
		t.Fatalf("expected ErrInvalidPollInput, got %v", err)
	}
}
