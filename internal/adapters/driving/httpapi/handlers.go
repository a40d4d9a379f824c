package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/canopy-comms/feedvault/internal/core/domain"
	"github.com/canopy-comms/feedvault/internal/core/ports/driving"
	"github.com/canopy-comms/feedvault/internal/logger"
)

type handler struct {
	deps Deps
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

type ingestFileRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
	// Payload is the raw file content, base64-encoded by
	// encoding/json's []byte handling.
	Payload []byte `json:"payload"`
}

type ingestTextRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content"`
}

type ingestResponse struct {
	FeedID          string  `json:"feed_id"`
	Name            string  `json:"name"`
	Version         int     `json:"version"`
	Outcome         string  `json:"outcome"`
	Similarity      float64 `json:"similarity,omitempty"`
	SimilarityKnown bool    `json:"similarity_known"`
	Degraded        bool    `json:"degraded,omitempty"`
}

func (h *handler) ingestFile(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ingestion == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion service not configured")
		return
	}

	var req ingestFileRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.deps.Ingestion.SubmitFile(r.Context(), driving.FileSubmission{
		OwnerID:     owner(r),
		Name:        req.Name,
		Description: req.Description,
		Kind:        domain.SourceKind(req.Kind),
		Payload:     req.Payload,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeIngestResult(w, result)
}

func (h *handler) ingestText(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ingestion == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion service not configured")
		return
	}

	var req ingestTextRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.deps.Ingestion.SubmitText(r.Context(), driving.TextSubmission{
		OwnerID:     owner(r),
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeIngestResult(w, result)
}

type reindexResponse struct {
	Scanned int `json:"scanned"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
}

func (h *handler) reindex(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ingestion == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion service not configured")
		return
	}

	result, err := h.deps.Ingestion.Reindex(r.Context(), owner(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reindexResponse{
		Scanned: result.Scanned,
		Indexed: result.Indexed,
		Skipped: result.Skipped,
	})
}

func writeIngestResult(w http.ResponseWriter, result *driving.IngestResult) {
	status := http.StatusOK
	if result.Outcome == driving.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, ingestResponse{
		FeedID:          result.FeedID,
		Name:            result.Name,
		Version:         result.Version,
		Outcome:         string(result.Outcome),
		Similarity:      result.Similarity,
		SimilarityKnown: result.SimilarityKnown,
		Degraded:        result.Degraded,
	})
}

type feedSummaryResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	SourceKind  string  `json:"source_kind"`
	SizeBytes   int64   `json:"size_bytes"`
	Version     int     `json:"version"`
	Indexed     bool    `json:"indexed"`
	UpdatedAt   string  `json:"updated_at"`
	DeletedAt   *string `json:"deleted_at,omitempty"`
}

func summaryResponses(feeds []driving.FeedSummary) []feedSummaryResponse {
	out := make([]feedSummaryResponse, len(feeds))
	for i, f := range feeds {
		out[i] = feedSummaryResponse{
			ID:          f.ID,
			Name:        f.Name,
			Description: f.Description,
			SourceKind:  string(f.SourceKind),
			SizeBytes:   f.SizeBytes,
			Version:     f.Version,
			Indexed:     f.Indexed,
			UpdatedAt:   f.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if f.DeletedAt != nil {
			deleted := f.DeletedAt.UTC().Format("2006-01-02T15:04:05Z")
			out[i].DeletedAt = &deleted
		}
	}
	return out
}

func (h *handler) listFeeds(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	kind := domain.SourceKind(r.URL.Query().Get("kind"))
	feeds, err := h.deps.Feeds.List(r.Context(), owner(r), kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"feeds": summaryResponses(feeds)})
}

func (h *handler) listDeleted(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	feeds, err := h.deps.Feeds.ListDeleted(r.Context(), owner(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"feeds": summaryResponses(feeds)})
}

type contentResponse struct {
	ProcessedText string                    `json:"processed_text"`
	OriginalText  string                    `json:"original_text,omitempty"`
	Structure     domain.StructuralMetadata `json:"structure"`
	ConceptMap    map[string][]string       `json:"concept_map,omitempty"`
}

func (h *handler) getContent(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	content, err := h.deps.Feeds.GetContent(r.Context(), owner(r), chi.URLParam(r, "feedID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contentResponse{
		ProcessedText: content.ProcessedText,
		OriginalText:  content.OriginalText,
		Structure:     content.Structure,
		ConceptMap:    content.ConceptMap,
	})
}

type deleteRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *handler) deleteFeed(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	// The body is optional; a bare DELETE carries no reason.
	var req deleteRequest
	if r.Body != nil {
		_ = decodeJSON(r.Body, &req)
	}

	if err := h.deps.Feeds.Delete(r.Context(), owner(r), chi.URLParam(r, "feedID"), req.Reason); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) restoreFeed(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	if err := h.deps.Feeds.Restore(r.Context(), owner(r), chi.URLParam(r, "feedID")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type versionSummaryResponse struct {
	Version   int    `json:"version"`
	Indexed   bool   `json:"indexed"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

func (h *handler) listVersions(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	versions, err := h.deps.Feeds.ListVersions(r.Context(), owner(r), chi.URLParam(r, "feedID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]versionSummaryResponse, len(versions))
	for i, v := range versions {
		out[i] = versionSummaryResponse{
			Version:   v.Version,
			Indexed:   v.Indexed,
			CreatedBy: v.CreatedBy,
			CreatedAt: v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": out})
}

type versionResponse struct {
	FeedID        string                    `json:"feed_id"`
	Version       int                       `json:"version"`
	ProcessedText string                    `json:"processed_text"`
	Structure     domain.StructuralMetadata `json:"structure"`
	ConceptMap    map[string][]string       `json:"concept_map,omitempty"`
	CreatedBy     string                    `json:"created_by"`
	CreatedAt     string                    `json:"created_at"`
}

func (h *handler) getVersion(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	n, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return
	}

	v, err := h.deps.Feeds.GetVersion(r.Context(), owner(r), chi.URLParam(r, "feedID"), n)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versionResponse{
		FeedID:        v.FeedID,
		Version:       v.Version,
		ProcessedText: v.ProcessedText,
		Structure:     v.Structure,
		ConceptMap:    v.ConceptMap,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

type auditRecordResponse struct {
	ID         string              `json:"id"`
	FeedID     string              `json:"feed_id"`
	FeedName   string              `json:"feed_name"`
	SourceKind string              `json:"source_kind"`
	SizeBytes  int64               `json:"size_bytes"`
	ConceptMap map[string][]string `json:"concept_map,omitempty"`
	DeletedBy  string              `json:"deleted_by"`
	Reason     string              `json:"reason,omitempty"`
	DeletedAt  string              `json:"deleted_at"`
}

func (h *handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	records, err := h.deps.Feeds.AuditTrail(r.Context(), owner(r), chi.URLParam(r, "feedID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": auditRecordsResponse(records)})
}

func (h *handler) actorTrail(w http.ResponseWriter, r *http.Request) {
	if h.deps.Feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed service not configured")
		return
	}

	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.deps.Feeds.ActorTrail(r.Context(), owner(r), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"records": auditRecordsResponse(records)})
}

// parseTimeParam reads an optional RFC 3339 query parameter. A missing
// parameter yields the zero time, which the service treats as unbounded.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q is not an RFC 3339 timestamp", name, raw)
	}
	return t, nil
}

func auditRecordsResponse(records []domain.DeletionRecord) []auditRecordResponse {
	out := make([]auditRecordResponse, len(records))
	for i, rec := range records {
		out[i] = auditRecordResponse{
			ID:         rec.ID,
			FeedID:     rec.FeedID,
			FeedName:   rec.FeedName,
			SourceKind: string(rec.SourceKind),
			SizeBytes:  rec.SizeBytes,
			ConceptMap: rec.ConceptMap,
			DeletedBy:  rec.DeletedBy,
			Reason:     rec.Reason,
			DeletedAt:  rec.DeletedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return out
}

type searchHitResponse struct {
	FeedID     string  `json:"feed_id"`
	Name       string  `json:"name"`
	SourceKind string  `json:"source_kind"`
	Score      float64 `json:"score"`
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	if h.deps.Search == nil {
		writeError(w, http.StatusServiceUnavailable, "search service not configured")
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	results, err := h.deps.Search.SearchSimilar(r.Context(), owner(r), q.Get("q"), domain.SearchOptions{
		Limit:      limit,
		SourceKind: domain.SourceKind(q.Get("kind")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]searchHitResponse, len(results))
	for i, res := range results {
		out[i] = searchHitResponse{
			FeedID:     res.FeedID,
			Name:       res.Name,
			SourceKind: string(res.SourceKind),
			Score:      res.Score,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

// decodeJSON decodes one JSON value and rejects trailing garbage.
func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrEncodingUndetected),
		errors.Is(err, domain.ErrNotDeleted):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyDeleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Warn("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
