package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aifai-labs/aifai/internal/api"
	"github.com/aifai-labs/aifai/internal/domain"
)

type InstanceService interface {
	Register(ctx context.Context, name string) (*domain.AIInstance, string, error)
}

type InstanceHandler struct {
	svc InstanceService
}

func NewInstanceHandler(svc InstanceService) *InstanceHandler {
	return &InstanceHandler{svc: svc}
}

type RegisterInstanceRequest struct {
	Name string `json:"name"`
}

// RegisterInstanceResponse carries the plaintext API token. It is returned
// exactly once, at registration time.
type RegisterInstanceResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	APIToken  string `json:"api_token"`
	CreatedAt string `json:"created_at"`
}

func (h *InstanceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	instance, token, err := h.svc.Register(r.Context(), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, &RegisterInstanceResponse{
		ID:        instance.ID,
		Name:      instance.Name,
		APIToken:  token,
		CreatedAt: instance.CreatedAt.Format(time.RFC3339),
	})
}
