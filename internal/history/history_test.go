package history

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimelassali/baraka-dispatch/internal/db"
	"github.com/karimelassali/baraka-dispatch/internal/models"
	"github.com/karimelassali/baraka-dispatch/internal/store"
)

func setupStore(t *testing.T) (*store.CampaignStore, *sql.DB) {
	t.Helper()

	d, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	d.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(d))
	return store.New(d), d
}

// seedCampaigns creates n campaigns with one sent recipient each, backdated so
// the first created is the oldest.
func seedCampaigns(t *testing.T, st *store.CampaignStore, d *sql.DB, n int) []string {
	t.Helper()
	ctx := context.Background()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c := &models.Campaign{
			MessageBody: fmt.Sprintf("offer %d", i+1),
			Target:      models.TargetSpec{Mode: models.TargetAll},
			Recipients: []models.Recipient{
				{ID: "c1", Contact: "+111", DisplayName: "Amira"},
			},
		}
		require.NoError(t, st.Create(ctx, c))
		require.NoError(t, st.RecordOutcome(ctx, c.ID, "c1", models.SentOutcome(time.Now().UTC())))
		require.NoError(t, st.MarkCompleted(ctx, c.ID))

		_, err := d.Exec("UPDATE campaigns SET created_at = ? WHERE id = ?",
			time.Date(2026, 8, 1+i, 12, 0, 0, 0, time.UTC), c.ID)
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	return ids
}

func TestPageStats(t *testing.T) {
	tests := []struct {
		name    string
		records []models.CampaignSummary
		want    Stats
	}{
		{
			name:    "empty",
			records: nil,
			want:    Stats{},
		},
		{
			name: "no deliveries yet",
			records: []models.CampaignSummary{
				{Total: 0, Sent: 0, Failed: 0},
			},
			want: Stats{},
		},
		{
			name: "all sent",
			records: []models.CampaignSummary{
				{Total: 4, Sent: 4},
			},
			want: Stats{Total: 4, Sent: 4, SuccessRate: 100},
		},
		{
			name: "rounds to nearest",
			records: []models.CampaignSummary{
				{Total: 3, Sent: 2, Failed: 1},
			},
			// 2/3 = 66.67 rounds to 67.
			want: Stats{Total: 3, Sent: 2, Failed: 1, SuccessRate: 67},
		},
		{
			name: "aggregates across records",
			records: []models.CampaignSummary{
				{Total: 10, Sent: 9, Failed: 1},
				{Total: 10, Sent: 0, Failed: 10},
			},
			want: Stats{Total: 20, Sent: 9, Failed: 11, SuccessRate: 45},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageStats(tt.records))
		})
	}
}

func TestQueryPagination(t *testing.T) {
	st, d := setupStore(t)
	ids := seedCampaigns(t, st, d, 5)
	agg := New(st, 2)
	ctx := context.Background()

	page, err := agg.Query(ctx, models.CampaignListFilter{Page: 0})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.Records[0].ID, "newest first")

	page, err = agg.Query(ctx, models.CampaignListFilter{Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[0], page.Records[0].ID)
}

func TestViewLoadMore(t *testing.T) {
	st, d := setupStore(t)
	seedCampaigns(t, st, d, 5)
	agg := New(st, 2)
	ctx := context.Background()

	v := agg.NewView(models.CampaignListFilter{})

	more, err := v.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Len(t, v.Records(), 2)

	more, err = v.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Len(t, v.Records(), 4)

	more, err = v.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, v.Records(), 5)

	// Exhausted view stays put.
	more, err = v.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, v.Records(), 5)

	stats := v.Stats()
	assert.Equal(t, Stats{Total: 5, Sent: 5, SuccessRate: 100}, stats)
}

func TestViewSearch(t *testing.T) {
	st, _ := setupStore(t)
	ctx := context.Background()

	c1 := &models.Campaign{
		MessageBody: "Ramadan special offer",
		Target:      models.TargetSpec{Mode: models.TargetAll},
		Recipients:  []models.Recipient{{ID: "c1", Contact: "+111", DisplayName: "Amira"}},
	}
	c2 := &models.Campaign{
		MessageBody: "Weekend points bonus",
		Target:      models.TargetSpec{Mode: models.TargetAll},
		Recipients:  []models.Recipient{{ID: "c2", Contact: "+222", DisplayName: "Bilal"}},
	}
	require.NoError(t, st.Create(ctx, c1))
	require.NoError(t, st.Create(ctx, c2))

	agg := New(st, 10)
	v := agg.NewView(models.CampaignListFilter{})
	_, err := v.LoadMore(ctx)
	require.NoError(t, err)
	require.Len(t, v.Records(), 2)

	// Match on message body, case-insensitive.
	got, err := v.Search(ctx, "RAMADAN")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c1.ID, got[0].ID)

	// Match on recipient display name.
	got, err = v.Search(ctx, "bilal")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c2.ID, got[0].ID)

	// No match.
	got, err = v.Search(ctx, "nothing here")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Blank term returns everything loaded.
	got, err = v.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
