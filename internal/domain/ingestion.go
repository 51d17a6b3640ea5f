package domain

import "time"

// RunStatus is the lifecycle status of an IngestionLog.
type RunStatus string

const (
	RunPartial RunStatus = "PARTIAL"
	RunSuccess RunStatus = "SUCCESS"
	RunFailure RunStatus = "FAILURE"
)

// IngestionLog records one pipeline run. PARTIAL rows that were never
// finalized mean the process died mid-run.
type IngestionLog struct {
	ID            string
	RunAt         time.Time
	Status        RunStatus
	ArticlesAdded int
	Errors        string
	Metadata      map[string]any
}

// Quote is a statement mined from a RawItem.
type Quote struct {
	ID        string
	Text      string
	Author    string
	Role      *string
	AvatarURL *string
	SourceURL string
	CreatedAt time.Time
}

// QuoteCandidate is what quote extraction returns when a quote was found.
type QuoteCandidate struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Role   string `json:"role,omitempty"`
}

// PollOption is one answer of a Poll.
type PollOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// Poll is a discussion question generated from the freshest headlines.
type Poll struct {
	ID        string
	Question  string
	Options   []PollOption
	IsActive  bool
	CreatedAt time.Time
}

// PollDraft is the generator output before persistence.
type PollDraft struct {
	Question string       `json:"question"`
	Options  []PollOption `json:"options"`
}

// DefaultPollDraft is used whenever poll generation cannot produce a usable draft.
func DefaultPollDraft() PollDraft {
	return PollDraft{
		Question: "What is the most exciting tech today?",
		Options: []PollOption{
			{ID: "ai", Text: "Artificial Intelligence", Votes: 0},
			{ID: "dev", Text: "Developer Tooling", Votes: 0},
			{ID: "other", Text: "Something else", Votes: 0},
		},
	}
}
