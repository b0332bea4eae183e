package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	Header      string   `json:"header"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options"`
	ClosesAt    string   `json:"closes_at,omitempty"`
	University  string   `json:"university,omitempty"`
	Category    string   `json:"category,omitempty"`
}

type UpdatePollRequest struct {
	Header      *string  `json:"header,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	ClosesAt    *string  `json:"closes_at,omitempty"`
	Options     []string `json:"options,omitempty"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type OptionResponse struct {
	OptionID  string `json:"option_id"`
	Text      string `json:"text"`
	VoteCount int    `json:"vote_count"`
}

type PollResponse struct {
	PollID      string           `json:"poll_id"`
	Header      string           `json:"header"`
	Description string           `json:"description,omitempty"`
	CreatorID   string           `json:"creator_id"`
	University  string           `json:"university,omitempty"`
	Category    string           `json:"category,omitempty"`
	CreatedAt   string           `json:"created_at"`
	ClosesAt    string           `json:"closes_at,omitempty"`
	IsOpen      bool             `json:"is_open"`
	Options     []OptionResponse `json:"options"`
	TotalVotes  int              `json:"total_votes"`
}

type PollListResponse struct {
	Items []PollResponse `json:"items"`
}

type TallyResponse struct {
	PollID     string           `json:"poll_id"`
	Options    []OptionResponse `json:"options"`
	TotalVotes int              `json:"total_votes"`
}
