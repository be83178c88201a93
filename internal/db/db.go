package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

// New opens the SQLite database at path, creating the parent directory if
// needed. WAL mode keeps the sequencer's writes from blocking history reads.
func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

// Migrate applies all schema migrations. Statements are idempotent so the
// command can run on every start.
func (db *DB) Migrate() error {
	return Migrate(db.DB)
}

// Migrate applies the schema to any *sql.DB (tests use :memory: databases).
func Migrate(db *sql.DB) error {
	migrations := []string{
		migrationCustomers,
		migrationCampaigns,
		migrationCampaignRecipients,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    contact TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL DEFAULT '',
    nationality TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_customers_nationality ON customers(nationality);
CREATE INDEX IF NOT EXISTS idx_customers_points ON customers(points);
`

const migrationCampaigns = `
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    message_body TEXT NOT NULL,
    image_url TEXT NOT NULL DEFAULT '',
    target_mode TEXT NOT NULL,
    target_spec JSON NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    cursor INTEGER NOT NULL DEFAULT 0,
    recipient_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    started_at TIMESTAMP,
    completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns(status);
CREATE INDEX IF NOT EXISTS idx_campaigns_created_at ON campaigns(created_at);
`

const migrationCampaignRecipients = `
CREATE TABLE IF NOT EXISTS campaign_recipients (
    campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    recipient_id TEXT NOT NULL,
    contact TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    outcome_at TIMESTAMP,
    PRIMARY KEY (campaign_id, position),
    UNIQUE (campaign_id, recipient_id)
);
CREATE INDEX IF NOT EXISTS idx_campaign_recipients_outcome ON campaign_recipients(campaign_id, outcome);
`
