package models

import "time"

// Campaign status constants. There is no failed terminal state: a run always
// reaches completed, partial failures live in the per-recipient outcomes.
const (
	CampaignStatusPending   = "pending"
	CampaignStatusRunning   = "running"
	CampaignStatusCompleted = "completed"
)

// Campaign is one dispatch run: a message, the target spec it was built from
// and an immutable recipient snapshot taken at creation time.
type Campaign struct {
	ID          string     `json:"id"`
	MessageBody string     `json:"message_body"`
	ImageURL    string     `json:"image_url,omitempty"`
	Target      TargetSpec `json:"target"`
	Status      string     `json:"status"`
	// Cursor is the index of the next recipient to process. It only ever
	// moves forward and equals the number of recorded outcomes.
	Cursor      int         `json:"cursor"`
	Recipients  []Recipient `json:"recipients"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Total returns the size of the recipient snapshot.
func (c *Campaign) Total() int { return len(c.Recipients) }

// Tally counts recorded outcomes by status.
func (c *Campaign) Tally() (sent, failed int) {
	for _, r := range c.Recipients {
		if r.Outcome == nil {
			continue
		}
		switch r.Outcome.Status {
		case OutcomeSent:
			sent++
		case OutcomeFailed:
			failed++
		}
	}
	return sent, failed
}

// CampaignSummary is the history listing shape: the campaign header plus
// aggregate outcome counts, without the recipient snapshot.
type CampaignSummary struct {
	ID          string    `json:"id"`
	MessageBody string    `json:"message_body"`
	ImageURL    string    `json:"image_url,omitempty"`
	TargetMode  string    `json:"target_mode"`
	Status      string    `json:"status"`
	Total       int       `json:"total"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	CreatedAt   time.Time `json:"created_at"`
}

// CampaignListFilter narrows history queries. Page is zero-based.
type CampaignListFilter struct {
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
