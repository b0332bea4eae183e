package queries

import (
	"context"
	"strings"
	"time"

	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	"unihub/contexts/campus-community/poll-engine/ports"
)

// ResultsUseCase serves read-only projections of poll state. None of these
// paths mutate anything; they work on open and closed polls alike.
type ResultsUseCase struct {
	Polls ports.PollRepository
	Clock ports.Clock
}

// Results returns the tally snapshot: per-option counts in display order
// plus the ledger total.
func (uc ResultsUseCase) Results(ctx context.Context, pollID string) (entities.TallySnapshot, error) {
	pollID = strings.TrimSpace(pollID)
	if pollID == "" {
		return entities.TallySnapshot{}, domainerrors.ErrPollNotFound
	}
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return entities.TallySnapshot{}, err
	}
	return poll.Tally(), nil
}

// GetPoll returns the full poll document.
func (uc ResultsUseCase) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	pollID = strings.TrimSpace(pollID)
	if pollID == "" {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return uc.Polls.GetPoll(ctx, pollID)
}

// IsOpen evaluates the lifecycle gate without attempting a vote. A zero now
// means "current time".
func (uc ResultsUseCase) IsOpen(ctx context.Context, pollID string, now time.Time) (bool, error) {
	poll, err := uc.GetPoll(ctx, pollID)
	if err != nil {
		return false, err
	}
	if now.IsZero() {
		now = uc.now()
	}
	return poll.IsOpen(now.UTC()), nil
}

// ListPolls returns polls matching the filter. OpenOnly is evaluated against
// the filter's Now, defaulting to the current time.
func (uc ResultsUseCase) ListPolls(ctx context.Context, filter ports.PollFilter) ([]entities.Poll, error) {
	filter.University = strings.TrimSpace(filter.University)
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.OpenOnly && filter.Now.IsZero() {
		filter.Now = uc.now()
	}
	return uc.Polls.ListPolls(ctx, filter)
}

func (uc ResultsUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
