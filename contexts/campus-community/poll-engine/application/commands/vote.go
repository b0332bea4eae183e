package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "unihub/contexts/campus-community/poll-engine/application"
	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	"unihub/contexts/campus-community/poll-engine/ports"
)

const defaultCastAttempts = 5

// CastVoteCommand is the write-model input for casting or changing a vote.
type CastVoteCommand struct {
	PollID   string
	VoterID  string
	OptionID string
}

// VoteUseCase runs the cast-vote algorithm. The whole read-modify-write is
// an optimistic-concurrency loop keyed on the poll version: load a snapshot,
// gate on lifecycle, rewrite ledger and tallies on the copy, then save
// conditionally. A stale save reloads and retries up to CastAttempts times
// before surfacing ErrConflict.
type VoteUseCase struct {
	Polls        ports.PollRepository
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	CastAttempts int
	Logger       *slog.Logger
}

// CastVote validates the request against the loaded poll, replaces any prior
// vote by the same voter, and returns the resulting tally snapshot. Recasting
// the same option is a no-op that still returns current tallies.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.TallySnapshot, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	voterID := strings.TrimSpace(cmd.VoterID)
	optionID := strings.TrimSpace(cmd.OptionID)
	logger.Info("vote cast processing started",
		"event", "poll_vote_cast_started",
		"module", "campus-community/poll-engine",
		"layer", "application",
		"poll_id", pollID,
		"voter_id", voterID,
		"option_id", optionID,
	)
	if pollID == "" || voterID == "" || optionID == "" {
		logger.Warn("vote cast validation failed",
			"event", "poll_vote_cast_validation_failed",
			"module", "campus-community/poll-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
		)
		return entities.TallySnapshot{}, domainerrors.ErrInvalidPollInput
	}

	attempts := uc.CastAttempts
	if attempts <= 0 {
		attempts = defaultCastAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		snapshot, changed, err := uc.castOnce(ctx, pollID, voterID, optionID)
		if err != nil {
			if errors.Is(err, domainerrors.ErrConflict) && attempt < attempts {
				logger.Warn("vote cast version conflict, retrying",
					"event", "poll_vote_cast_conflict_retry",
					"module", "campus-community/poll-engine",
					"layer", "application",
					"poll_id", pollID,
					"voter_id", voterID,
					"attempt", attempt,
				)
				continue
			}
			return entities.TallySnapshot{}, err
		}
		logger.Info("vote cast completed",
			"event", "poll_vote_cast_completed",
			"module", "campus-community/poll-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
			"option_id", optionID,
			"tally_changed", changed,
			"total_votes", snapshot.TotalVotes,
		)
		return snapshot, nil
	}
	return entities.TallySnapshot{}, domainerrors.ErrConflict
}

// castOnce performs a single load/mutate/save round. The returned bool
// reports whether tallies changed (false for same-option recasts).
func (uc VoteUseCase) castOnce(
	ctx context.Context,
	pollID string,
	voterID string,
	optionID string,
) (entities.TallySnapshot, bool, error) {
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return entities.TallySnapshot{}, false, err
	}

	now := uc.now()
	if !poll.IsOpen(now) {
		return entities.TallySnapshot{}, false, domainerrors.ErrPollClosed
	}
	if !poll.HasOption(optionID) {
		return entities.TallySnapshot{}, false, domainerrors.ErrInvalidOption
	}

	// Same-option recast: idempotent, no counter movement, no write. This
	// also makes a double submission after a transport timeout harmless.
	if existing, ok := poll.VoteBy(voterID); ok && existing.OptionID == optionID {
		return poll.Tally(), false, nil
	}

	previousOption := applyVote(&poll, voterID, optionID, now)

	saved, err := uc.Polls.SavePoll(ctx, poll)
	if err != nil {
		return entities.TallySnapshot{}, false, err
	}

	payload := map[string]any{
		"poll_id":   pollID,
		"voter_id":  voterID,
		"option_id": optionID,
	}
	if previousOption != "" {
		payload["previous_option_id"] = previousOption
	}
	if err := appendPollEvent(ctx, uc.Outbox, uc.IDGen, EventPollVoteCast, pollID, now, payload); err != nil {
		return entities.TallySnapshot{}, false, err
	}
	return saved.Tally(), true, nil
}

// applyVote rewrites the ledger and the option counters on the loaded copy:
// any prior vote by the voter is removed and its option decremented, then the
// target option gains the vote. Returns the replaced option id, if any.
func applyVote(poll *entities.Poll, voterID string, optionID string, now time.Time) string {
	previousOption := ""
	kept := poll.Votes[:0]
	for _, vote := range poll.Votes {
		if vote.VoterID == voterID {
			previousOption = vote.OptionID
			continue
		}
		kept = append(kept, vote)
	}
	poll.Votes = kept

	if previousOption != "" {
		for i := range poll.Options {
			if poll.Options[i].OptionID == previousOption && poll.Options[i].VoteCount > 0 {
				poll.Options[i].VoteCount--
			}
		}
	}

	poll.Votes = append(poll.Votes, entities.Vote{
		VoterID:  voterID,
		OptionID: optionID,
		CastAt:   now.UTC(),
	})
	for i := range poll.Options {
		if poll.Options[i].OptionID == optionID {
			poll.Options[i].VoteCount++
		}
	}
	return previousOption
}

func (uc VoteUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
