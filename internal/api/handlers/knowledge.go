package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aifai-labs/aifai/internal/api"
	"github.com/aifai-labs/aifai/internal/api/middleware"
	"github.com/aifai-labs/aifai/internal/collab"
	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/aifai-labs/aifai/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateEntryInput) (*domain.KnowledgeEntry, error)
	Get(ctx context.Context, id, callerID int64) (*domain.KnowledgeEntry, error)
	Search(ctx context.Context, input service.SearchInput) ([]*domain.KnowledgeEntry, error)
	List(ctx context.Context, input service.ListEntriesInput) (*service.ListEntriesOutput, error)
	Vote(ctx context.Context, id int64, vote domain.VoteType, callerID int64) (*domain.KnowledgeEntry, error)
	Verify(ctx context.Context, id, callerID int64) (*domain.KnowledgeEntry, error)
	Related(ctx context.Context, id int64, limit int) ([]service.RelatedEntry, error)
	Path(ctx context.Context, startID, endID int64) ([]*domain.KnowledgeEntry, error)
	AcquireLock(ctx context.Context, entryID, editorID int64) (*collab.EditLock, error)
	ReleaseLock(ctx context.Context, entryID, editorID int64) error
	Watch(ctx context.Context, entryID, instanceID int64) error
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type CreateEntryRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CodeExample string   `json:"code_example"`
	Context     string   `json:"context"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

type VoteRequest struct {
	VoteType string `json:"vote_type"`
}

type EntryResponse struct {
	ID          int64    `json:"id"`
	InstanceID  int64    `json:"instance_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	CodeExample string   `json:"code_example,omitempty"`
	Context     string   `json:"context,omitempty"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	SuccessRate float64  `json:"success_rate"`
	UsageCount  int64    `json:"usage_count"`
	Upvotes     int64    `json:"upvotes"`
	Downvotes   int64    `json:"downvotes"`
	Verified    bool     `json:"verified"`
	VerifiedBy  *int64   `json:"verified_by,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type RelatedEntryResponse struct {
	Entry *EntryResponse `json:"entry"`
	Score float64        `json:"score"`
	Types []string       `json:"types"`
}

type LockResponse struct {
	EntryID    int64  `json:"entry_id"`
	EditorID   int64  `json:"editor_id"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at"`
}

type ListEntriesResponse struct {
	Items   []*EntryResponse `json:"items"`
	Cursor  string           `json:"cursor,omitempty"`
	HasMore bool             `json:"has_more"`
}

func entryToResponse(e *domain.KnowledgeEntry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		InstanceID:  e.InstanceID,
		Title:       e.Title,
		Description: e.Description,
		Content:     e.Content,
		CodeExample: e.CodeExample,
		Context:     e.Context,
		Category:    e.Category,
		Tags:        e.Tags,
		SuccessRate: e.SuccessRate,
		UsageCount:  e.UsageCount,
		Upvotes:     e.Upvotes,
		Downvotes:   e.Downvotes,
		Verified:    e.Verified,
		VerifiedBy:  e.VerifiedBy,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func entriesToResponse(entries []*domain.KnowledgeEntry) []*EntryResponse {
	out := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		out[i] = entryToResponse(e)
	}
	return out
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	instanceID := middleware.GetInstanceID(r.Context())
	if instanceID == 0 {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Category == "" {
		api.Error(w, http.StatusBadRequest, "category is required")
		return
	}

	input := service.CreateEntryInput{
		InstanceID:  instanceID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		CodeExample: req.CodeExample,
		Context:     req.Context,
		Category:    req.Category,
		Tags:        req.Tags,
	}

	entry, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, entryToResponse(entry))
}

func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	input := service.SearchInput{
		Query:        q.Get("query"),
		Category:     q.Get("category"),
		VerifiedOnly: q.Get("verified_only") == "true",
	}

	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				input.Tags = append(input.Tags, tag)
			}
		}
	}

	if raw := q.Get("min_success_rate"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate < 0 || rate > 1 {
			api.Error(w, http.StatusBadRequest, "min_success_rate must be a number between 0 and 1")
			return
		}
		input.MinSuccessRate = &rate
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		input.Limit = limit
	}

	entries, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entriesToResponse(entries))
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	input := service.ListEntriesInput{Cursor: q.Get("cursor")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		input.Limit = limit
	}

	out, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &ListEntriesResponse{
		Items:   entriesToResponse(out.Items),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	entry, err := h.svc.Get(r.Context(), id, middleware.GetInstanceID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entryToResponse(entry))
}

func (h *KnowledgeHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.svc.Vote(r.Context(), id, domain.VoteType(req.VoteType), middleware.GetInstanceID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entryToResponse(entry))
}

func (h *KnowledgeHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	entry, err := h.svc.Verify(r.Context(), id, middleware.GetInstanceID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entryToResponse(entry))
}

func (h *KnowledgeHandler) Related(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	related, err := h.svc.Related(r.Context(), id, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]*RelatedEntryResponse, len(related))
	for i, rel := range related {
		out[i] = &RelatedEntryResponse{
			Entry: entryToResponse(rel.Entry),
			Score: rel.Score,
			Types: rel.Types,
		}
	}

	api.Success(w, http.StatusOK, out)
}

func (h *KnowledgeHandler) Path(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	startID, err := strconv.ParseInt(q.Get("start_id"), 10, 64)
	if err != nil || startID <= 0 {
		api.Error(w, http.StatusBadRequest, "start_id must be a positive integer")
		return
	}

	endID, err := strconv.ParseInt(q.Get("end_id"), 10, 64)
	if err != nil || endID <= 0 {
		api.Error(w, http.StatusBadRequest, "end_id must be a positive integer")
		return
	}

	path, err := h.svc.Path(r.Context(), startID, endID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entriesToResponse(path))
}

func (h *KnowledgeHandler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	instanceID := middleware.GetInstanceID(r.Context())
	lock, err := h.svc.AcquireLock(r.Context(), id, instanceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &LockResponse{
		EntryID:    lock.ResourceID,
		EditorID:   lock.EditorID,
		AcquiredAt: lock.AcquiredAt.Format(time.RFC3339),
		ExpiresAt:  lock.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *KnowledgeHandler) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.ReleaseLock(r.Context(), id, middleware.GetInstanceID(r.Context())); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *KnowledgeHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Watch(r.Context(), id, middleware.GetInstanceID(r.Context())); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "watching"})
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
