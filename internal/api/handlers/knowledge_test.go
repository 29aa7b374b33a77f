package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aifai-labs/aifai/internal/api/middleware"
	"github.com/aifai-labs/aifai/internal/collab"
	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/aifai-labs/aifai/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) Create(ctx context.Context, input service.CreateEntryInput) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Get(ctx context.Context, id, callerID int64) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, id, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Search(ctx context.Context, input service.SearchInput) ([]*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) List(ctx context.Context, input service.ListEntriesInput) (*service.ListEntriesOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListEntriesOutput), args.Error(1)
}

func (m *MockKnowledgeService) Vote(ctx context.Context, id int64, vote domain.VoteType, callerID int64) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, id, vote, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Verify(ctx context.Context, id, callerID int64) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, id, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) Related(ctx context.Context, id int64, limit int) ([]service.RelatedEntry, error) {
	args := m.Called(ctx, id, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.RelatedEntry), args.Error(1)
}

func (m *MockKnowledgeService) Path(ctx context.Context, startID, endID int64) ([]*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, startID, endID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeService) AcquireLock(ctx context.Context, entryID, editorID int64) (*collab.EditLock, error) {
	args := m.Called(ctx, entryID, editorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*collab.EditLock), args.Error(1)
}

func (m *MockKnowledgeService) ReleaseLock(ctx context.Context, entryID, editorID int64) error {
	args := m.Called(ctx, entryID, editorID)
	return args.Error(0)
}

func (m *MockKnowledgeService) Watch(ctx context.Context, entryID, instanceID int64) error {
	args := m.Called(ctx, entryID, instanceID)
	return args.Error(0)
}

func testEntry() *domain.KnowledgeEntry {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	return &domain.KnowledgeEntry{
		ID:         1,
		InstanceID: 7,
		Title:      "Retry with backoff",
		Content:    "Use exponential backoff for transient failures.",
		Category:   "reliability",
		Tags:       []string{"retries"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// authedRequest builds a request carrying an authenticated instance id and,
// optionally, a chi id URL param.
func authedRequest(method, target string, body []byte, instanceID int64, idParam string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	ctx := req.Context()
	if instanceID != 0 {
		ctx = context.WithValue(ctx, middleware.InstanceIDKey, instanceID)
	}
	if idParam != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", idParam)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestKnowledgeHandler_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateEntryInput) bool {
			return input.InstanceID == 7 && input.Title == "Retry with backoff"
		})).Return(testEntry(), nil)

		body, _ := json.Marshal(CreateEntryRequest{
			Title:    "Retry with backoff",
			Content:  "Use exponential backoff for transient failures.",
			Category: "reliability",
		})
		req := authedRequest(http.MethodPost, "/knowledge/", body, 7, "")
		rec := httptest.NewRecorder()

		h.Create(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		body, _ := json.Marshal(CreateEntryRequest{Title: "only title"})
		req := authedRequest(http.MethodPost, "/knowledge/", body, 7, "")
		rec := httptest.NewRecorder()

		h.Create(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		body, _ := json.Marshal(CreateEntryRequest{Title: "t", Content: "c", Category: "x"})
		req := authedRequest(http.MethodPost, "/knowledge/", body, 0, "")
		rec := httptest.NewRecorder()

		h.Create(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestKnowledgeHandler_Search(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
			return input.Query == "docker" &&
				input.Category == "devops" &&
				len(input.Tags) == 2 &&
				input.VerifiedOnly &&
				input.MinSuccessRate != nil && *input.MinSuccessRate == 0.8 &&
				input.Limit == 5
		})).Return([]*domain.KnowledgeEntry{testEntry()}, nil)

		req := authedRequest(http.MethodGet,
			"/knowledge/?query=docker&category=devops&tags=docker,networking&verified_only=true&min_success_rate=0.8&limit=5",
			nil, 7, "")
		rec := httptest.NewRecorder()

		h.Search(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("rejects bad min_success_rate", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		req := authedRequest(http.MethodGet, "/knowledge/?min_success_rate=2.5", nil, 7, "")
		rec := httptest.NewRecorder()

		h.Search(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestKnowledgeHandler_Get(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Get", mock.Anything, int64(1), int64(7)).Return(testEntry(), nil)

		req := authedRequest(http.MethodGet, "/knowledge/1", nil, 7, "1")
		rec := httptest.NewRecorder()

		h.Get(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data EntryResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.Data.ID)
		assert.Equal(t, "Retry with backoff", resp.Data.Title)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Get", mock.Anything, int64(99), int64(7)).Return(nil, domain.ErrEntryNotFound)

		req := authedRequest(http.MethodGet, "/knowledge/99", nil, 7, "99")
		rec := httptest.NewRecorder()

		h.Get(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		req := authedRequest(http.MethodGet, "/knowledge/abc", nil, 7, "abc")
		rec := httptest.NewRecorder()

		h.Get(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestKnowledgeHandler_Vote(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Vote", mock.Anything, int64(1), domain.VoteUpvote, int64(7)).Return(testEntry(), nil)

		body, _ := json.Marshal(VoteRequest{VoteType: "upvote"})
		req := authedRequest(http.MethodPost, "/knowledge/1/vote", body, 7, "1")
		rec := httptest.NewRecorder()

		h.Vote(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid vote type", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Vote", mock.Anything, int64(1), domain.VoteType("sideways"), int64(7)).
			Return(nil, domain.ErrInvalidVoteType)

		body, _ := json.Marshal(VoteRequest{VoteType: "sideways"})
		req := authedRequest(http.MethodPost, "/knowledge/1/vote", body, 7, "1")
		rec := httptest.NewRecorder()

		h.Vote(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestKnowledgeHandler_Related(t *testing.T) {
	svc := new(MockKnowledgeService)
	h := NewKnowledgeHandler(svc)

	svc.On("Related", mock.Anything, int64(1), 5).Return([]service.RelatedEntry{
		{Entry: testEntry(), Score: 2.0, Types: []string{"shared-tag"}},
	}, nil)

	req := authedRequest(http.MethodGet, "/knowledge/1/related", nil, 7, "1")
	rec := httptest.NewRecorder()

	h.Related(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []RelatedEntryResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 2.0, resp.Data[0].Score)
	assert.Equal(t, []string{"shared-tag"}, resp.Data[0].Types)
}

func TestKnowledgeHandler_Path(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Path", mock.Anything, int64(1), int64(3)).Return([]*domain.KnowledgeEntry{testEntry()}, nil)

		req := authedRequest(http.MethodGet, "/knowledge/graph/path?start_id=1&end_id=3", nil, 7, "")
		rec := httptest.NewRecorder()

		h.Path(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing params", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		req := authedRequest(http.MethodGet, "/knowledge/graph/path?start_id=1", nil, 7, "")
		rec := httptest.NewRecorder()

		h.Path(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestKnowledgeHandler_Locks(t *testing.T) {
	t.Run("acquire", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
		svc.On("AcquireLock", mock.Anything, int64(1), int64(7)).Return(&collab.EditLock{
			ResourceType: "knowledge",
			ResourceID:   1,
			EditorID:     7,
			AcquiredAt:   now,
			ExpiresAt:    now.Add(5 * time.Minute),
		}, nil)

		req := authedRequest(http.MethodPut, "/knowledge/1/lock", nil, 7, "1")
		rec := httptest.NewRecorder()

		h.AcquireLock(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data LockResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(7), resp.Data.EditorID)
	})

	t.Run("conflict", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("AcquireLock", mock.Anything, int64(1), int64(8)).
			Return(nil, domain.NewLockConflictError(7))

		req := authedRequest(http.MethodPut, "/knowledge/1/lock", nil, 8, "1")
		rec := httptest.NewRecorder()

		h.AcquireLock(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("release without lock", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("ReleaseLock", mock.Anything, int64(1), int64(7)).Return(domain.ErrLockNotHeld)

		req := authedRequest(http.MethodDelete, "/knowledge/1/lock", nil, 7, "1")
		rec := httptest.NewRecorder()

		h.ReleaseLock(rec, req)
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	})

	t.Run("watch", func(t *testing.T) {
		svc := new(MockKnowledgeService)
		h := NewKnowledgeHandler(svc)

		svc.On("Watch", mock.Anything, int64(1), int64(7)).Return(nil)

		req := authedRequest(http.MethodPost, "/knowledge/1/watch", nil, 7, "1")
		rec := httptest.NewRecorder()

		h.Watch(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestKnowledgeHandler_List(t *testing.T) {
	svc := new(MockKnowledgeService)
	h := NewKnowledgeHandler(svc)

	svc.On("List", mock.Anything, service.ListEntriesInput{Cursor: "abc", Limit: 2}).
		Return(&service.ListEntriesOutput{
			Items:   []*domain.KnowledgeEntry{testEntry()},
			Cursor:  "next",
			HasMore: true,
		}, nil)

	req := authedRequest(http.MethodGet, "/knowledge/entries?cursor=abc&limit=2", nil, 7, "")
	rec := httptest.NewRecorder()

	h.List(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data ListEntriesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.HasMore)
	assert.Equal(t, "next", resp.Data.Cursor)
	require.Len(t, resp.Data.Items, 1)
}
