package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/karimelassali/baraka-dispatch/internal/models"
)

// CampaignStore is the sole writer of campaign and outcome state. Writes are
// transactional and idempotent so a crash between two sends never loses
// recorded outcomes, and a retry after crash is a no-op.
type CampaignStore struct {
	db *sql.DB
}

func New(db *sql.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

// Create persists a new campaign and its recipient snapshot synchronously.
// The campaign is reloadable the moment this returns, even if the process
// dies immediately after.
func (s *CampaignStore) Create(ctx context.Context, c *models.Campaign) error {
	c.ID = uuid.New().String()
	c.Status = models.CampaignStatusPending
	c.Cursor = 0
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	specJSON, err := json.Marshal(c.Target)
	if err != nil {
		return fmt.Errorf("marshal target spec: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, message_body, image_url, target_mode, target_spec, status, cursor, recipient_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		c.ID, c.MessageBody, c.ImageURL, string(c.Target.Mode), string(specJSON), c.Status, len(c.Recipients), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_recipients (campaign_id, position, recipient_id, contact, display_name)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range c.Recipients {
		if _, err := stmt.ExecContext(ctx, c.ID, i, r.ID, r.Contact, r.DisplayName); err != nil {
			return fmt.Errorf("failed to persist recipient %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load returns a campaign with its full recipient snapshot and outcomes, or
// (nil, nil) when no campaign has that id.
func (s *CampaignStore) Load(ctx context.Context, id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	var specJSON, targetMode string
	var startedAt, completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_body, image_url, target_mode, target_spec, status, cursor, created_at, updated_at, started_at, completed_at
		FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.MessageBody, &c.ImageURL, &targetMode, &specJSON, &c.Status, &c.Cursor,
		&c.CreatedAt, &c.UpdatedAt, &startedAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(specJSON), &c.Target); err != nil {
		return nil, fmt.Errorf("unmarshal target spec: %w", err)
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT recipient_id, contact, display_name, outcome, error, outcome_at
		FROM campaign_recipients WHERE campaign_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Recipient
		var outcome, errDetail string
		var outcomeAt sql.NullTime

		if err := rows.Scan(&r.ID, &r.Contact, &r.DisplayName, &outcome, &errDetail, &outcomeAt); err != nil {
			return nil, err
		}
		if outcome != "" {
			r.Outcome = &models.DeliveryOutcome{Status: outcome, Error: errDetail}
			if outcomeAt.Valid {
				r.Outcome.RecordedAt = outcomeAt.Time
			}
		}
		c.Recipients = append(c.Recipients, r)
	}

	return c, rows.Err()
}

// RecordOutcome writes one recipient's terminal result and advances the
// cursor by one, in a single transaction. Calling it again for the same
// recipient is a no-op, so retry-after-crash never double-counts.
func (s *CampaignStore) RecordOutcome(ctx context.Context, campaignID, recipientID string, outcome models.DeliveryOutcome) error {
	if outcome.Status != models.OutcomeSent && outcome.Status != models.OutcomeFailed {
		return fmt.Errorf("invalid outcome status %q", outcome.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT outcome FROM campaign_recipients WHERE campaign_id = ? AND recipient_id = ?",
		campaignID, recipientID,
	).Scan(&existing)
	if err == sql.ErrNoRows {
		return fmt.Errorf("recipient %s not found in campaign %s", recipientID, campaignID)
	}
	if err != nil {
		return err
	}
	if existing != "" {
		// Already recorded; keep the first outcome and leave the cursor alone.
		return tx.Commit()
	}

	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE campaign_recipients SET outcome = ?, error = ?, outcome_at = ?
		WHERE campaign_id = ? AND recipient_id = ?`,
		outcome.Status, outcome.Error, outcome.RecordedAt, campaignID, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE campaigns SET cursor = cursor + 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), campaignID,
	)
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}

	return tx.Commit()
}

// MarkRunning transitions a campaign to running. Idempotent; re-entering
// running from a partially advanced cursor is the resume path, not an error.
func (s *CampaignStore) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = ?, started_at = COALESCE(started_at, ?), updated_at = ?
		WHERE id = ? AND status != ?`,
		models.CampaignStatusRunning, now, now, id, models.CampaignStatusCompleted,
	)
	return err
}

// MarkCompleted transitions a campaign to its terminal state. Idempotent.
func (s *CampaignStore) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE campaigns SET status = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ?`,
		models.CampaignStatusCompleted, now, now, id,
	)
	return err
}

// List returns one page of campaign summaries, newest first, and whether a
// further page may exist. hasMore is derived from the page being full-sized.
func (s *CampaignStore) List(ctx context.Context, filter models.CampaignListFilter) ([]models.CampaignSummary, bool, error) {
	if filter.PageSize < 1 {
		return nil, false, fmt.Errorf("page size must be at least 1")
	}

	query := `
		SELECT c.id, c.message_body, c.image_url, c.target_mode, c.status, c.recipient_count, c.created_at,
			COALESCE((SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id = c.id AND outcome = 'sent'), 0),
			COALESCE((SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id = c.id AND outcome = 'failed'), 0)
		FROM campaigns c
		WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += " AND c.status = ?"
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		query += " AND c.created_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += " AND c.created_at <= ?"
		args = append(args, filter.To.UTC())
	}

	query += " ORDER BY c.created_at DESC, c.id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, filter.Page*filter.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	summaries := []models.CampaignSummary{}
	for rows.Next() {
		var sum models.CampaignSummary
		if err := rows.Scan(&sum.ID, &sum.MessageBody, &sum.ImageURL, &sum.TargetMode, &sum.Status,
			&sum.Total, &sum.CreatedAt, &sum.Sent, &sum.Failed); err != nil {
			return nil, false, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	return summaries, len(summaries) == filter.PageSize, nil
}

// RecipientNames returns the display names of a campaign's snapshot, used by
// the history search without loading full records.
func (s *CampaignStore) RecipientNames(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT display_name FROM campaign_recipients WHERE campaign_id = ? ORDER BY position", campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
