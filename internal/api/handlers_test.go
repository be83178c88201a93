package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimelassali/baraka-dispatch/internal/audience"
	"github.com/karimelassali/baraka-dispatch/internal/config"
	"github.com/karimelassali/baraka-dispatch/internal/db"
	"github.com/karimelassali/baraka-dispatch/internal/directory"
	"github.com/karimelassali/baraka-dispatch/internal/history"
	"github.com/karimelassali/baraka-dispatch/internal/metrics"
	"github.com/karimelassali/baraka-dispatch/internal/models"
	"github.com/karimelassali/baraka-dispatch/internal/progress"
	"github.com/karimelassali/baraka-dispatch/internal/sequencer"
	"github.com/karimelassali/baraka-dispatch/internal/store"
	"github.com/karimelassali/baraka-dispatch/internal/transport"
)

type testEnv struct {
	server    *Server
	store     *store.CampaignStore
	sequencer *sequencer.Manager
	mock      *transport.Mock
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	d, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	d.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(d))

	customers := []struct {
		id, contact, name, nationality string
		points                         int
	}{
		{"c1", "+111", "Amira", "EG", 50},
		{"c2", "+222", "Bilal", "SA", 150},
		{"c3", "+333", "Chadi", "EG", 300},
	}
	for _, c := range customers {
		_, err := d.Exec(
			"INSERT INTO customers (id, contact, display_name, nationality, points) VALUES (?, ?, ?, ?, ?)",
			c.id, c.contact, c.name, c.nationality, c.points,
		)
		require.NoError(t, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(d)
	m := metrics.New()
	mock := transport.NewMock()
	mgr := sequencer.New(st, mock, m, logger, 0)
	t.Cleanup(mgr.Stop)

	srv := NewServer(config.Default(), Deps{
		Resolver:  audience.New(directory.NewSQLDirectory(d)),
		Store:     st,
		Sequencer: mgr,
		Progress:  progress.New(st),
		History:   history.New(st, 20),
		Metrics:   m,
	}, logger)

	return &testEnv{server: srv, store: st, sequencer: mgr, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreview(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/audience/preview", PreviewRequest{
		Target: models.TargetSpec{Mode: models.TargetByNationality, Nationality: "EG"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[PreviewResponse](t, rec).Count)

	// An empty audience previews as zero, not as an error.
	rec = env.do(t, http.MethodPost, "/api/v1/audience/preview", PreviewRequest{
		Target: models.TargetSpec{Mode: models.TargetByNationality, Nationality: "FR"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[PreviewResponse](t, rec).Count)

	rec = env.do(t, http.MethodPost, "/api/v1/audience/preview", PreviewRequest{
		Target: models.TargetSpec{Mode: "everyone"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TARGET_SPEC", decode[ErrorResponse](t, rec).Code)
}

func TestCreateCampaignDelivers(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		MessageBody: "Hi {{name}}, double points this weekend!",
		Target:      models.TargetSpec{Mode: models.TargetAll},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	created := decode[CreateCampaignResponse](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Recipients)

	env.sequencer.Wait(created.ID)

	loaded, err := env.store.Load(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, loaded.Status)
	assert.Equal(t, 3, env.mock.SendCount())

	rec = env.do(t, http.MethodGet, "/api/v1/campaigns/"+created.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[progress.Snapshot](t, rec)
	assert.Equal(t, 3, snap.Sent)
	assert.Equal(t, "all 3 messages sent", snap.Summary)
}

func TestCreateCampaignValidation(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		Target: models.TargetSpec{Mode: models.TargetAll},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_MESSAGE", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		MessageBody: "hello",
		Target:      models.TargetSpec{Mode: models.TargetByNationality},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TARGET_SPEC", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		MessageBody: "hello",
		Target:      models.TargetSpec{Mode: models.TargetByNationality, Nationality: "FR"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_AUDIENCE", decode[ErrorResponse](t, rec).Code)
}

func TestGetCampaign(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/campaigns/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	created := decode[CreateCampaignResponse](t, env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		MessageBody: "hello",
		Target:      models.TargetSpec{Mode: models.TargetAll},
	}))
	env.sequencer.Wait(created.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/campaigns/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[models.Campaign](t, rec)
	assert.Equal(t, created.ID, c.ID)
	assert.Len(t, c.Recipients, 3)
}

func TestCancelWithoutActiveRun(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/campaigns/whatever/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_RUNNING", decode[ErrorResponse](t, rec).Code)
}

func TestResumeErrors(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/campaigns/missing/resume", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	created := decode[CreateCampaignResponse](t, env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
		MessageBody: "hello",
		Target:      models.TargetSpec{Mode: models.TargetAll},
	}))
	env.sequencer.Wait(created.ID)

	// Resuming a completed campaign is rejected.
	rec = env.do(t, http.MethodPost, "/api/v1/campaigns/"+created.ID+"/resume", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_COMPLETED", decode[ErrorResponse](t, rec).Code)
}

func TestListCampaigns(t *testing.T) {
	env := setupTestServer(t)

	for i := 0; i < 2; i++ {
		created := decode[CreateCampaignResponse](t, env.do(t, http.MethodPost, "/api/v1/campaigns", CreateCampaignRequest{
			MessageBody: "hello",
			Target:      models.TargetSpec{Mode: models.TargetAll},
		}))
		env.sequencer.Wait(created.ID)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/campaigns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListResponse](t, rec)
	require.Len(t, list.Records, 2)
	assert.False(t, list.HasMore)
	assert.Equal(t, 6, list.Stats.Total)
	assert.Equal(t, 100, list.Stats.SuccessRate)

	rec = env.do(t, http.MethodGet, "/api/v1/campaigns?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ListResponse](t, rec).Records)

	rec = env.do(t, http.MethodGet, "/api/v1/campaigns?page=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/campaigns?from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
