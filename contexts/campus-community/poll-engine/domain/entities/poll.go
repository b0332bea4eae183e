package entities

import "time"

// Option is one selectable choice on a poll. VoteCount mirrors the number of
// ledger votes referencing the option and must stay consistent with them
// through every mutation.
type Option struct {
	OptionID  string
	Text      string
	VoteCount int
}

// Vote is a voter's current choice. The ledger holds at most one Vote per
// voter; a recast replaces the existing entry instead of adding a second one.
type Vote struct {
	VoterID  string
	OptionID string
	CastAt   time.Time
}

// Poll is the unit of mutual exclusion for voting. Version backs optimistic
// concurrency in repositories: a save only succeeds against the version the
// caller loaded.
type Poll struct {
	PollID      string
	Header      string
	Description string
	CreatorID   string
	University  string
	Category    string
	CreatedAt   time.Time
	ClosesAt    *time.Time
	IsActive    bool
	Options     []Option
	Votes       []Vote
	Version     int64
}

// IsOpen reports whether the poll accepts votes at the given instant.
// A cleared active flag is permanent; a deadline closes the poll at the
// deadline instant itself.
func (p Poll) IsOpen(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ClosesAt != nil && !now.Before(p.ClosesAt.UTC()) {
		return false
	}
	return true
}

// HasOption reports whether optionID currently exists on the poll.
func (p Poll) HasOption(optionID string) bool {
	for _, option := range p.Options {
		if option.OptionID == optionID {
			return true
		}
	}
	return false
}

// VoteBy returns the ledger entry for voterID, if any.
func (p Poll) VoteBy(voterID string) (Vote, bool) {
	for _, vote := range p.Votes {
		if vote.VoterID == voterID {
			return vote, true
		}
	}
	return Vote{}, false
}

// TotalVotes is the ledger size. It must always equal the sum of option
// counters.
func (p Poll) TotalVotes() int {
	return len(p.Votes)
}

// Clone returns a deep copy so callers can mutate a snapshot without
// touching shared state.
func (p Poll) Clone() Poll {
	clone := p
	if p.ClosesAt != nil {
		closesAt := *p.ClosesAt
		clone.ClosesAt = &closesAt
	}
	clone.Options = make([]Option, len(p.Options))
	copy(clone.Options, p.Options)
	clone.Votes = make([]Vote, len(p.Votes))
	copy(clone.Votes, p.Votes)
	return clone
}

// OptionTally is one row of a results snapshot.
type OptionTally struct {
	OptionID  string
	Text      string
	VoteCount int
}

// TallySnapshot is the read-only results view: option counts in display
// order plus the ledger total.
type TallySnapshot struct {
	PollID     string
	Options    []OptionTally
	TotalVotes int
}

// Tally projects the poll into a TallySnapshot. Option order follows the
// poll's display order, never the counts.
func (p Poll) Tally() TallySnapshot {
	options := make([]OptionTally, 0, len(p.Options))
	total := 0
	for _, option := range p.Options {
		options = append(options, OptionTally{
			OptionID:  option.OptionID,
			Text:      option.Text,
			VoteCount: option.VoteCount,
		})
		total += option.VoteCount
	}
	return TallySnapshot{
		PollID:     p.PollID,
		Options:    options,
		TotalVotes: total,
	}
}
