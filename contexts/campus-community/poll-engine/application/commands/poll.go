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

const minPollOptions = 2

// CreatePollCommand is the write-model input for poll creation.
type CreatePollCommand struct {
	CreatorID   string
	Header      string
	Description string
	Options     []string
	ClosesAt    *time.Time
	University  string
	Category    string
}

// UpdatePollCommand updates creator-editable poll fields. Nil pointers leave
// a field untouched. A non-nil Options slice replaces the option set
// wholesale: fresh option ids, zeroed tallies, orphaned votes purged.
type UpdatePollCommand struct {
	PollID      string
	CreatorID   string
	Header      *string
	Description *string
	Category    *string
	ClosesAt    *time.Time
	Options     []string
}

// ClosePollCommand force-closes a poll. Closing is permanent.
type ClosePollCommand struct {
	PollID    string
	CreatorID string
}

// PollUseCase owns poll lifecycle writes: creation, creator-scoped edits,
// option replacement, and permanent closure.
type PollUseCase struct {
	Polls        ports.PollRepository
	Outbox       ports.OutboxWriter
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	SaveAttempts int
	Logger       *slog.Logger
}

// CreatePoll validates input, assigns ids, and persists a poll with zero
// votes. At least two non-blank options are required; a deadline, when
// given, must be in the future.
func (uc PollUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	creatorID := strings.TrimSpace(cmd.CreatorID)
	header := strings.TrimSpace(cmd.Header)
	logger.Info("poll create processing started",
		"event", "poll_create_started",
		"module", "campus-community/poll-engine",
		"layer", "application",
		"creator_id", creatorID,
	)
	if creatorID == "" || header == "" {
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}

	texts := normalizeOptionTexts(cmd.Options)
	if len(texts) < minPollOptions {
		logger.Warn("poll create rejected, not enough options",
			"event", "poll_create_validation_failed",
			"module", "campus-community/poll-engine",
			"layer", "application",
			"creator_id", creatorID,
			"option_count", len(texts),
		)
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}

	now := uc.now()
	if cmd.ClosesAt != nil && !cmd.ClosesAt.UTC().After(now) {
		return entities.Poll{}, domainerrors.ErrDeadlineInPast
	}

	id, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Poll{}, err
	}
	pollID := "pol_" + id

	options, err := uc.buildOptions(ctx, texts)
	if err != nil {
		return entities.Poll{}, err
	}

	poll := entities.Poll{
		PollID:      pollID,
		Header:      header,
		Description: strings.TrimSpace(cmd.Description),
		CreatorID:   creatorID,
		University:  strings.TrimSpace(cmd.University),
		Category:    strings.TrimSpace(cmd.Category),
		CreatedAt:   now,
		IsActive:    true,
		Options:     options,
		Votes:       []entities.Vote{},
		Version:     1,
	}
	if cmd.ClosesAt != nil {
		closesAt := cmd.ClosesAt.UTC()
		poll.ClosesAt = &closesAt
	}

	if err := uc.Polls.CreatePoll(ctx, poll); err != nil {
		return entities.Poll{}, err
	}
	if err := appendPollEvent(ctx, uc.Outbox, uc.IDGen, EventPollCreated, pollID, now, map[string]any{
		"poll_id":      pollID,
		"creator_id":   creatorID,
		"option_count": len(options),
	}); err != nil {
		return entities.Poll{}, err
	}

	logger.Info("poll created",
		"event", "poll_created",
		"module", "campus-community/poll-engine",
		"layer", "application",
		"poll_id", pollID,
		"creator_id", creatorID,
		"option_count", len(options),
	)
	return poll, nil
}

// UpdatePoll applies creator edits through the same optimistic loop the vote
// path uses. Replacing options resets every tally to zero and purges the
// vote ledger, so each voter may vote again on the new option set.
func (uc PollUseCase) UpdatePoll(ctx context.Context, cmd UpdatePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	creatorID := strings.TrimSpace(cmd.CreatorID)
	if pollID == "" || creatorID == "" {
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}

	var texts []string
	if cmd.Options != nil {
		texts = normalizeOptionTexts(cmd.Options)
		if len(texts) < minPollOptions {
			return entities.Poll{}, domainerrors.ErrInvalidPollInput
		}
	}

	var saved entities.Poll
	err := uc.withRetries(func() error {
		poll, err := uc.Polls.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if poll.CreatorID != creatorID {
			return domainerrors.ErrNotPollCreator
		}

		now := uc.now()
		if cmd.Header != nil {
			header := strings.TrimSpace(*cmd.Header)
			if header == "" {
				return domainerrors.ErrInvalidPollInput
			}
			poll.Header = header
		}
		if cmd.Description != nil {
			poll.Description = strings.TrimSpace(*cmd.Description)
		}
		if cmd.Category != nil {
			poll.Category = strings.TrimSpace(*cmd.Category)
		}
		if cmd.ClosesAt != nil {
			if !cmd.ClosesAt.UTC().After(now) {
				return domainerrors.ErrDeadlineInPast
			}
			closesAt := cmd.ClosesAt.UTC()
			poll.ClosesAt = &closesAt
		}

		optionsReplaced := false
		if texts != nil {
			options, err := uc.buildOptions(ctx, texts)
			if err != nil {
				return err
			}
			poll.Options = options
			poll.Votes = []entities.Vote{}
			optionsReplaced = true
		}

		saved, err = uc.Polls.SavePoll(ctx, poll)
		if err != nil {
			return err
		}
		if optionsReplaced {
			if err := appendPollEvent(ctx, uc.Outbox, uc.IDGen, EventPollOptionsReplaced, pollID, now, map[string]any{
				"poll_id":      pollID,
				"option_count": len(saved.Options),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return entities.Poll{}, err
	}

	logger.Info("poll updated",
		"event", "poll_updated",
		"module", "campus-community/poll-engine",
		"layer", "application",
		"poll_id", pollID,
		"options_replaced", texts != nil,
	)
	return saved, nil
}

// ClosePoll clears the active flag. Closing an already-closed poll is a
// no-op; the flag is never set back to true by this engine.
func (uc PollUseCase) ClosePoll(ctx context.Context, cmd ClosePollCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	creatorID := strings.TrimSpace(cmd.CreatorID)
	if pollID == "" || creatorID == "" {
		return domainerrors.ErrInvalidPollInput
	}

	err := uc.withRetries(func() error {
		poll, err := uc.Polls.GetPoll(ctx, pollID)
		if err != nil {
			return err
		}
		if poll.CreatorID != creatorID {
			return domainerrors.ErrNotPollCreator
		}
		if !poll.IsActive {
			return nil
		}

		now := uc.now()
		poll.IsActive = false
		if _, err := uc.Polls.SavePoll(ctx, poll); err != nil {
			return err
		}
		return appendPollEvent(ctx, uc.Outbox, uc.IDGen, EventPollClosed, pollID, now, map[string]any{
			"poll_id": pollID,
		})
	})
	if err != nil {
		return err
	}

	logger.Info("poll closed",
		"event", "poll_closed",
		"module", "campus-community/poll-engine",
		"layer", "application",
		"poll_id", pollID,
		"creator_id", creatorID,
	)
	return nil
}

func (uc PollUseCase) buildOptions(ctx context.Context, texts []string) ([]entities.Option, error) {
	options := make([]entities.Option, 0, len(texts))
	for _, text := range texts {
		optionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		options = append(options, entities.Option{
			OptionID:  optionID,
			Text:      text,
			VoteCount: 0,
		})
	}
	return options, nil
}

func (uc PollUseCase) withRetries(fn func() error) error {
	attempts := uc.SaveAttempts
	if attempts <= 0 {
		attempts = defaultCastAttempts
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
	}
	return err
}

func (uc PollUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// normalizeOptionTexts trims entries and drops blanks while preserving
// order. Duplicate texts are allowed; options are distinguished by id.
func normalizeOptionTexts(raw []string) []string {
	texts := make([]string, 0, len(raw))
	for _, text := range raw {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}
	return texts
}
