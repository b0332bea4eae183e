package errors

import "errors"

var (
	ErrInvalidPollInput = errors.New("invalid poll input")
	ErrPollNotFound     = errors.New("poll not found")
	ErrPollClosed       = errors.New("poll is closed")
	ErrInvalidOption    = errors.New("invalid poll option")
	ErrNotPollCreator   = errors.New("user is not the poll creator")
	ErrDeadlineInPast   = errors.New("poll deadline must be in the future")
	ErrConflict         = errors.New("poll version conflict")
)
