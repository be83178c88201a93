package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/karimelassali/baraka-dispatch/internal/models"
	"github.com/karimelassali/baraka-dispatch/internal/store"
)

var ErrNotFound = errors.New("campaign not found")

// Presenter reads campaign state for progress display. Strictly read-only:
// the sequencer is the sole writer of cursor and outcomes.
type Presenter struct {
	store *store.CampaignStore
}

func New(st *store.CampaignStore) *Presenter {
	return &Presenter{store: st}
}

// Snapshot is one observation of a campaign's delivery state.
type Snapshot struct {
	CampaignID string `json:"campaign_id"`
	Status     string `json:"status"`
	Cursor     int    `json:"cursor"`
	Total      int    `json:"total"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	// Current is the recipient being processed next, for the
	// "sending to X" indicator. Nil unless the campaign is running.
	Current *models.Recipient `json:"current,omitempty"`
	Summary string            `json:"summary"`
}

// Snapshot reads the campaign's current state. Partial success is the normal
// terminal condition: a completed campaign with failures is reported as
// "completed with N failures", never as a hard failure.
func (p *Presenter) Snapshot(ctx context.Context, campaignID string) (*Snapshot, error) {
	c, err := p.store.Load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}

	sent, failed := c.Tally()
	snap := &Snapshot{
		CampaignID: c.ID,
		Status:     c.Status,
		Cursor:     c.Cursor,
		Total:      c.Total(),
		Sent:       sent,
		Failed:     failed,
	}

	if c.Status == models.CampaignStatusRunning && c.Cursor < len(c.Recipients) {
		current := c.Recipients[c.Cursor]
		current.Outcome = nil
		snap.Current = &current
	}

	snap.Summary = summarize(snap)
	return snap, nil
}

func summarize(s *Snapshot) string {
	switch s.Status {
	case models.CampaignStatusPending:
		return fmt.Sprintf("waiting to start, %d recipients", s.Total)
	case models.CampaignStatusCompleted:
		if s.Failed == 0 {
			return fmt.Sprintf("all %d messages sent", s.Sent)
		}
		return fmt.Sprintf("completed with %d failures, %d sent", s.Failed, s.Sent)
	default:
		return fmt.Sprintf("%d of %d processed, %d sent, %d failed", s.Cursor, s.Total, s.Sent, s.Failed)
	}
}
