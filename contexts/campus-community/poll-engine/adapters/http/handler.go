package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"unihub/contexts/campus-community/poll-engine/application/commands"
	"unihub/contexts/campus-community/poll-engine/application/queries"
	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	"unihub/contexts/campus-community/poll-engine/ports"
	httptransport "unihub/contexts/campus-community/poll-engine/transport/http"
)

// Handler is the context-based surface the platform HTTP layer calls into.
// It maps transport DTOs onto commands/queries and back; routing, auth, and
// request decoding stay in the platform layer.
type Handler struct {
	Polls   commands.PollUseCase
	Votes   commands.VoteUseCase
	Results queries.ResultsUseCase
	Logger  *slog.Logger
}

func (h Handler) CreatePollHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreatePollRequest,
) (httptransport.PollResponse, error) {
	closesAt, err := parseOptionalTime(req.ClosesAt)
	if err != nil {
		return httptransport.PollResponse{}, domainerrors.ErrInvalidPollInput
	}
	poll, err := h.Polls.CreatePoll(ctx, commands.CreatePollCommand{
		CreatorID:   userID,
		Header:      req.Header,
		Description: req.Description,
		Options:     req.Options,
		ClosesAt:    closesAt,
		University:  req.University,
		Category:    req.Category,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return pollToResponse(poll, time.Now().UTC()), nil
}

func (h Handler) UpdatePollHandler(
	ctx context.Context,
	userID string,
	pollID string,
	req httptransport.UpdatePollRequest,
) (httptransport.PollResponse, error) {
	cmd := commands.UpdatePollCommand{
		PollID:      pollID,
		CreatorID:   userID,
		Header:      req.Header,
		Description: req.Description,
		Category:    req.Category,
		Options:     req.Options,
	}
	if req.ClosesAt != nil {
		closesAt, err := parseOptionalTime(*req.ClosesAt)
		if err != nil || closesAt == nil {
			return httptransport.PollResponse{}, domainerrors.ErrInvalidPollInput
		}
		cmd.ClosesAt = closesAt
	}
	poll, err := h.Polls.UpdatePoll(ctx, cmd)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return pollToResponse(poll, time.Now().UTC()), nil
}

func (h Handler) ClosePollHandler(ctx context.Context, userID string, pollID string) error {
	return h.Polls.ClosePoll(ctx, commands.ClosePollCommand{
		PollID:    pollID,
		CreatorID: userID,
	})
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	userID string,
	pollID string,
	req httptransport.CastVoteRequest,
) (httptransport.TallyResponse, error) {
	snapshot, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		PollID:   pollID,
		VoterID:  userID,
		OptionID: req.OptionID,
	})
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return tallyToResponse(snapshot), nil
}

func (h Handler) GetPollHandler(ctx context.Context, pollID string) (httptransport.PollResponse, error) {
	poll, err := h.Results.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return pollToResponse(poll, time.Now().UTC()), nil
}

func (h Handler) ResultsHandler(ctx context.Context, pollID string) (httptransport.TallyResponse, error) {
	snapshot, err := h.Results.Results(ctx, pollID)
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return tallyToResponse(snapshot), nil
}

func (h Handler) ListPollsHandler(
	ctx context.Context,
	university string,
	category string,
	openOnly bool,
) (httptransport.PollListResponse, error) {
	polls, err := h.Results.ListPolls(ctx, ports.PollFilter{
		University: university,
		Category:   category,
		OpenOnly:   openOnly,
	})
	if err != nil {
		return httptransport.PollListResponse{}, err
	}
	now := time.Now().UTC()
	items := make([]httptransport.PollResponse, 0, len(polls))
	for _, poll := range polls {
		items = append(items, pollToResponse(poll, now))
	}
	return httptransport.PollListResponse{Items: items}, nil
}

func pollToResponse(poll entities.Poll, now time.Time) httptransport.PollResponse {
	snapshot := poll.Tally()
	resp := httptransport.PollResponse{
		PollID:      poll.PollID,
		Header:      poll.Header,
		Description: poll.Description,
		CreatorID:   poll.CreatorID,
		University:  poll.University,
		Category:    poll.Category,
		CreatedAt:   poll.CreatedAt.UTC().Format(time.RFC3339),
		IsOpen:      poll.IsOpen(now),
		Options:     optionsToResponse(snapshot.Options),
		TotalVotes:  snapshot.TotalVotes,
	}
	if poll.ClosesAt != nil {
		resp.ClosesAt = poll.ClosesAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func tallyToResponse(snapshot entities.TallySnapshot) httptransport.TallyResponse {
	return httptransport.TallyResponse{
		PollID:     snapshot.PollID,
		Options:    optionsToResponse(snapshot.Options),
		TotalVotes: snapshot.TotalVotes,
	}
}

func optionsToResponse(options []entities.OptionTally) []httptransport.OptionResponse {
	items := make([]httptransport.OptionResponse, 0, len(options))
	for _, option := range options {
		items = append(items, httptransport.OptionResponse{
			OptionID:  option.OptionID,
			Text:      option.Text,
			VoteCount: option.VoteCount,
		})
	}
	return items
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}
