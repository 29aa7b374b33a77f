package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInstanceService struct {
	mock.Mock
}

func (m *MockInstanceService) Register(ctx context.Context, name string) (*domain.AIInstance, string, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*domain.AIInstance), args.String(1), args.Error(2)
}

func TestInstanceHandler_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockInstanceService)
		h := NewInstanceHandler(svc)

		instance := &domain.AIInstance{
			ID:        3,
			Name:      "claude-helper",
			TokenHash: "hash",
			CreatedAt: time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
		}
		svc.On("Register", mock.Anything, "claude-helper").Return(instance, "afi_token", nil)

		body, _ := json.Marshal(RegisterInstanceRequest{Name: "claude-helper"})
		req := httptest.NewRequest(http.MethodPost, "/instances", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		h.Register(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp struct {
			Data RegisterInstanceResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(3), resp.Data.ID)
		assert.Equal(t, "afi_token", resp.Data.APIToken)
	})

	t.Run("missing name", func(t *testing.T) {
		svc := new(MockInstanceService)
		h := NewInstanceHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/instances", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()

		h.Register(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("invalid body", func(t *testing.T) {
		svc := new(MockInstanceService)
		h := NewInstanceHandler(svc)

		req := httptest.NewRequest(http.MethodPost, "/instances", bytes.NewReader([]byte(`{not json`)))
		rec := httptest.NewRecorder()

		h.Register(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate name", func(t *testing.T) {
		svc := new(MockInstanceService)
		h := NewInstanceHandler(svc)

		svc.On("Register", mock.Anything, "dup").
			Return(nil, "", domain.NewDomainError(domain.ErrCodeConflict, "instance name or token already registered"))

		body, _ := json.Marshal(RegisterInstanceRequest{Name: "dup"})
		req := httptest.NewRequest(http.MethodPost, "/instances", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		h.Register(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
