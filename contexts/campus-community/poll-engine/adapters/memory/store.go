package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	"unihub/contexts/campus-community/poll-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory poll repository used by tests and the in-memory
// module variant. SavePoll is compare-and-swap on the poll version so the
// optimistic loops in the application layer behave the same way they do
// against the postgres adapter.
type Store struct {
	mu sync.RWMutex

	polls  map[string]entities.Poll
	outbox map[string]outboxRecord
}

func NewStore(seed []entities.Poll) *Store {
	polls := make(map[string]entities.Poll, len(seed))
	for _, poll := range seed {
		polls[poll.PollID] = poll.Clone()
	}
	return &Store{
		polls:  polls,
		outbox: make(map[string]outboxRecord),
	}
}

func (s *Store) CreatePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pollID := strings.TrimSpace(poll.PollID)
	if _, ok := s.polls[pollID]; ok {
		return domainerrors.ErrConflict
	}
	s.polls[pollID] = poll.Clone()
	return nil
}

func (s *Store) GetPoll(_ context.Context, pollID string) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[strings.TrimSpace(pollID)]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return poll.Clone(), nil
}

func (s *Store) SavePoll(_ context.Context, poll entities.Poll) (entities.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pollID := strings.TrimSpace(poll.PollID)
	stored, ok := s.polls[pollID]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	if stored.Version != poll.Version {
		return entities.Poll{}, domainerrors.ErrConflict
	}
	next := poll.Clone()
	next.Version = poll.Version + 1
	s.polls[pollID] = next
	return next.Clone(), nil
}

func (s *Store) ListPolls(_ context.Context, filter ports.PollFilter) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		if filter.University != "" && poll.University != filter.University {
			continue
		}
		if filter.Category != "" && poll.Category != filter.Category {
			continue
		}
		if filter.OpenOnly && !poll.IsOpen(filter.Now) {
			continue
		}
		items = append(items, poll.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].PollID < items[j].PollID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) AppendOutbox(_ context.Context, message ports.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[strings.TrimSpace(message.OutboxID)] = outboxRecord{message: message}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
