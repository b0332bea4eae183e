package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"unihub/contexts/campus-community/poll-engine/domain/entities"
	domainerrors "unihub/contexts/campus-community/poll-engine/domain/errors"
	"unihub/contexts/campus-community/poll-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	uniqueViolationCode = "23505"
)

// Repository persists polls as versioned documents: scalar columns for
// metadata, jsonb for the option registry and vote ledger. All writes that
// follow a read go through the version-conditional SavePoll.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll) error {
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("poll_repo_create_failed", err, "poll_id", strings.TrimSpace(poll.PollID))
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(pollID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, r.logError("poll_repo_get_failed", err, "poll_id", strings.TrimSpace(pollID))
	}
	return row.toEntity()
}

// SavePoll writes the document only when the stored version still matches
// the version the caller loaded. A zero-row update against an existing poll
// means another writer got there first.
func (r *Repository) SavePoll(ctx context.Context, poll entities.Poll) (entities.Poll, error) {
	row, err := pollModelFromEntity(poll)
	if err != nil {
		return entities.Poll{}, err
	}
	nextVersion := poll.Version + 1
	update := r.db.WithContext(ctx).Model(&pollModel{}).
		Where("id = ? AND version = ?", row.ID, poll.Version).
		Updates(map[string]any{
			"header":      row.Header,
			"description": row.Description,
			"university":  row.University,
			"category":    row.Category,
			"closes_at":   row.ClosesAt,
			"is_active":   row.IsActive,
			"options":     row.Options,
			"votes":       row.Votes,
			"version":     nextVersion,
			"updated_at":  time.Now().UTC(),
		})
	if update.Error != nil {
		return entities.Poll{}, r.logError("poll_repo_save_failed", update.Error, "poll_id", row.ID)
	}
	if update.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&pollModel{}).
			Where("id = ?", row.ID).
			Count(&count).Error; err != nil {
			return entities.Poll{}, r.logError("poll_repo_save_recheck_failed", err, "poll_id", row.ID)
		}
		if count == 0 {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, domainerrors.ErrConflict
	}
	saved := poll.Clone()
	saved.Version = nextVersion
	return saved, nil
}

func (r *Repository) ListPolls(ctx context.Context, filter ports.PollFilter) ([]entities.Poll, error) {
	tx := r.db.WithContext(ctx).Model(&pollModel{})
	if filter.University != "" {
		tx = tx.Where("university = ?", filter.University)
	}
	if filter.Category != "" {
		tx = tx.Where("category = ?", filter.Category)
	}
	if filter.OpenOnly {
		tx = tx.Where("is_active = ?", true).
			Where("closes_at IS NULL OR closes_at > ?", filter.Now.UTC())
	}
	var rows []pollModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_list_failed", err,
			"university", filter.University,
			"category", filter.Category,
		)
	}
	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		poll, err := row.toEntity()
		if err != nil {
			return nil, r.logError("poll_repo_decode_failed", err, "poll_id", row.ID)
		}
		items = append(items, poll)
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, message ports.OutboxMessage) error {
	row := outboxModel{
		ID:        strings.TrimSpace(message.OutboxID),
		EventType: strings.TrimSpace(message.EventType),
		Payload:   message.Payload,
		Status:    outboxStatusPending,
		CreatedAt: message.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("poll_repo_outbox_append_failed", err, "outbox_id", row.ID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_outbox_list_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:  row.ID,
			EventType: row.EventType,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	update := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if update.Error != nil {
		return r.logError("poll_repo_outbox_mark_failed", update.Error, "outbox_id", strings.TrimSpace(outboxID))
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "campus-community/poll-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return false
}

type pollModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	Header      string     `gorm:"column:header"`
	Description string     `gorm:"column:description"`
	CreatorID   string     `gorm:"column:creator_id"`
	University  string     `gorm:"column:university"`
	Category    string     `gorm:"column:category"`
	ClosesAt    *time.Time `gorm:"column:closes_at"`
	IsActive    bool       `gorm:"column:is_active"`
	Options     []byte     `gorm:"column:options;type:jsonb"`
	Votes       []byte     `gorm:"column:votes;type:jsonb"`
	Version     int64      `gorm:"column:version"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

type outboxModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	EventType   string     `gorm:"column:event_type"`
	Payload     []byte     `gorm:"column:payload;type:jsonb"`
	Status      string     `gorm:"column:status"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_outbox"
}

type optionDocument struct {
	OptionID  string `json:"option_id"`
	Text      string `json:"text"`
	VoteCount int    `json:"vote_count"`
}

type voteDocument struct {
	VoterID  string    `json:"voter_id"`
	OptionID string    `json:"option_id"`
	CastAt   time.Time `json:"cast_at"`
}

func pollModelFromEntity(poll entities.Poll) (pollModel, error) {
	options := make([]optionDocument, 0, len(poll.Options))
	for _, option := range poll.Options {
		options = append(options, optionDocument{
			OptionID:  option.OptionID,
			Text:      option.Text,
			VoteCount: option.VoteCount,
		})
	}
	votes := make([]voteDocument, 0, len(poll.Votes))
	for _, vote := range poll.Votes {
		votes = append(votes, voteDocument{
			VoterID:  vote.VoterID,
			OptionID: vote.OptionID,
			CastAt:   vote.CastAt.UTC(),
		})
	}
	rawOptions, err := json.Marshal(options)
	if err != nil {
		return pollModel{}, err
	}
	rawVotes, err := json.Marshal(votes)
	if err != nil {
		return pollModel{}, err
	}
	row := pollModel{
		ID:          strings.TrimSpace(poll.PollID),
		Header:      strings.TrimSpace(poll.Header),
		Description: strings.TrimSpace(poll.Description),
		CreatorID:   strings.TrimSpace(poll.CreatorID),
		University:  strings.TrimSpace(poll.University),
		Category:    strings.TrimSpace(poll.Category),
		IsActive:    poll.IsActive,
		Options:     rawOptions,
		Votes:       rawVotes,
		Version:     poll.Version,
		CreatedAt:   poll.CreatedAt.UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if poll.ClosesAt != nil {
		closesAt := poll.ClosesAt.UTC()
		row.ClosesAt = &closesAt
	}
	return row, nil
}

func (m pollModel) toEntity() (entities.Poll, error) {
	var options []optionDocument
	if len(m.Options) > 0 {
		if err := json.Unmarshal(m.Options, &options); err != nil {
			return entities.Poll{}, err
		}
	}
	var votes []voteDocument
	if len(m.Votes) > 0 {
		if err := json.Unmarshal(m.Votes, &votes); err != nil {
			return entities.Poll{}, err
		}
	}
	poll := entities.Poll{
		PollID:      m.ID,
		Header:      m.Header,
		Description: m.Description,
		CreatorID:   m.CreatorID,
		University:  m.University,
		Category:    m.Category,
		CreatedAt:   m.CreatedAt,
		IsActive:    m.IsActive,
		Options:     make([]entities.Option, 0, len(options)),
		Votes:       make([]entities.Vote, 0, len(votes)),
		Version:     m.Version,
	}
	if m.ClosesAt != nil {
		closesAt := m.ClosesAt.UTC()
		poll.ClosesAt = &closesAt
	}
	for _, option := range options {
		poll.Options = append(poll.Options, entities.Option{
			OptionID:  option.OptionID,
			Text:      option.Text,
			VoteCount: option.VoteCount,
		})
	}
	for _, vote := range votes {
		poll.Votes = append(poll.Votes, entities.Vote{
			VoterID:  vote.VoterID,
			OptionID: vote.OptionID,
			CastAt:   vote.CastAt,
		})
	}
	return poll, nil
}
