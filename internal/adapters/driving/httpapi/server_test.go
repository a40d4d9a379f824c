package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopy-comms/feedvault/internal/adapters/driven/storage/memory"
	"github.com/canopy-comms/feedvault/internal/concepts"
	"github.com/canopy-comms/feedvault/internal/core/services"
	"github.com/canopy-comms/feedvault/internal/extractors"
	"github.com/canopy-comms/feedvault/internal/extractors/csv"
	"github.com/canopy-comms/feedvault/internal/extractors/plaintext"
	"github.com/canopy-comms/feedvault/internal/extractors/rawtext"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (fixedEmbedder) Dimensions() int              { return 3 }
func (fixedEmbedder) ModelName() string            { return "stub-model" }
func (fixedEmbedder) Ping(_ context.Context) error { return nil }
func (fixedEmbedder) Close() error                 { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	audit := memory.NewAuditStore()
	store := memory.NewFeedStore(audit)
	registry := extractors.NewRegistry(plaintext.New(), csv.New(), rawtext.New())
	conceptEx := concepts.New()
	locks := services.NewFeedLocks()

	ingestion := services.NewIngestionService(
		store, registry, conceptEx, fixedEmbedder{}, nil, locks, services.IngestionConfig{})
	feeds := services.NewFeedService(store, audit, conceptEx, nil, locks)
	search := services.NewSearchService(store, fixedEmbedder{}, nil)

	return NewRouter(Deps{Ingestion: ingestion, Feeds: feeds, Search: search})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func ingestText(t *testing.T, router http.Handler, name, content string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/feeds/text", map[string]string{
		"name":    name,
		"content": content,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		FeedID string `json:"feed_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.FeedID
}

func TestRouter_RequiresOwnerHeader(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/feeds", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), ownerHeader)
}

func TestIngestText_CreatesFeed(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/feeds/text", map[string]string{
		"name":    "notes",
		"content": "meeting notes for tuesday",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.FeedID)
	assert.Equal(t, "notes", resp.Name)
	assert.Equal(t, 1, resp.Version)
	assert.Equal(t, "created", resp.Outcome)
}

func TestIngestText_UnchangedReingestReturnsOK(t *testing.T) {
	router := newTestRouter(t)

	ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodPost, "/v1/feeds/text", map[string]string{
		"name":    "notes",
		"content": "meeting notes",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unchanged", resp.Outcome)
	assert.Equal(t, 1, resp.Version)
	assert.True(t, resp.SimilarityKnown)
}

func TestIngestFile_UnsupportedExtension(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/feeds", map[string]any{
		"name":    "slides.pptx",
		"payload": []byte("not really a deck"),
	})

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestIngestText_EmptyContentIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/feeds/text", map[string]string{
		"name":    "notes",
		"content": "   ",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFeeds_ScopedToOwner(t *testing.T) {
	router := newTestRouter(t)

	ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodGet, "/v1/feeds", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Feeds []feedSummaryResponse `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Feeds, 1)
	assert.Equal(t, "notes", resp.Feeds[0].Name)
	assert.True(t, resp.Feeds[0].Indexed)

	// Another owner sees nothing.
	req := httptest.NewRequest(http.MethodGet, "/v1/feeds", nil)
	req.Header.Set(ownerHeader, "bob")
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)
	require.Equal(t, http.StatusOK, other.Code)

	var otherResp struct {
		Feeds []feedSummaryResponse `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(other.Body.Bytes(), &otherResp))
	assert.Empty(t, otherResp.Feeds)
}

func TestGetContent_ReturnsProcessedText(t *testing.T) {
	router := newTestRouter(t)

	id := ingestText(t, router, "notes", "the quick brown fox")

	rec := doJSON(t, router, http.MethodGet, "/v1/feeds/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp contentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "the quick brown fox", resp.ProcessedText)
	assert.Greater(t, resp.Structure.CharCount, 0)
}

func TestGetContent_UnknownFeedIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/feeds/no-such-feed", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAndRestore_Lifecycle(t *testing.T) {
	router := newTestRouter(t)

	id := ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodDelete, "/v1/feeds/"+id, map[string]string{
		"reason": "superseded",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Content of a deleted feed is not served.
	rec = doJSON(t, router, http.MethodGet, "/v1/feeds/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Double delete conflicts.
	rec = doJSON(t, router, http.MethodDelete, "/v1/feeds/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Listed under deleted feeds.
	rec = doJSON(t, router, http.MethodGet, "/v1/feeds/deleted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	// Audit trail carries the reason.
	rec = doJSON(t, router, http.MethodGet, "/v1/feeds/"+id+"/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "superseded")

	// Restore brings the feed back.
	rec = doJSON(t, router, http.MethodPost, "/v1/feeds/"+id+"/restore", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/feeds/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Restoring an active feed is a bad request.
	rec = doJSON(t, router, http.MethodPost, "/v1/feeds/"+id+"/restore", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditTrail_ScopedToOwner(t *testing.T) {
	router := newTestRouter(t)

	id := ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodDelete, "/v1/feeds/"+id, map[string]string{
		"reason": "superseded",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Another owner cannot read the trail; the feed does not exist
	// for them.
	req := httptest.NewRequest(http.MethodGet, "/v1/feeds/"+id+"/audit", nil)
	req.Header.Set(ownerHeader, "bob")
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusNotFound, other.Code)
}

func TestActorTrail_ListsOwnDeletions(t *testing.T) {
	router := newTestRouter(t)

	id := ingestText(t, router, "notes", "meeting notes")
	rec := doJSON(t, router, http.MethodDelete, "/v1/feeds/"+id, map[string]string{
		"reason": "superseded",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
	assert.Contains(t, rec.Body.String(), "superseded")

	// A window in the future matches nothing.
	rec = doJSON(t, router, http.MethodGet, "/v1/audit?from=2099-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), id)

	rec = doJSON(t, router, http.MethodGet, "/v1/audit?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReindex_NothingDegraded(t *testing.T) {
	router := newTestRouter(t)

	ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodPost, "/v1/reindex", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scanned int `json:"scanned"`
		Indexed int `json:"indexed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Scanned)
	assert.Zero(t, resp.Indexed)
}

func TestGetVersion_InvalidNumberIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	id := ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodGet, "/v1/feeds/"+id+"/versions/latest", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearch_ReturnsRankedHits(t *testing.T) {
	router := newTestRouter(t)

	ingestText(t, router, "notes", "meeting notes")

	rec := doJSON(t, router, http.MethodGet, "/v1/search?q=meeting", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []searchHitResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "notes", resp.Results[0].Name)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
}

func TestSearch_EmptyQueryIsBadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/search", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
