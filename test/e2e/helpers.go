//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aifai-labs/aifai/internal/api/handlers"
	"github.com/aifai-labs/aifai/internal/collab"
	"github.com/aifai-labs/aifai/internal/jobs"
	"github.com/aifai-labs/aifai/internal/repository"
	"github.com/aifai-labs/aifai/internal/search"
	"github.com/aifai-labs/aifai/internal/server"
	"github.com/aifai-labs/aifai/internal/service"
	"github.com/aifai-labs/aifai/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestEnv holds the resources for end-to-end tests: a postgres container and
// a fully wired HTTP server.
type TestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	Dispatcher *jobs.Dispatcher
	HTTPClient *http.Client
	cancel     context.CancelFunc
}

// SetupEnv starts the container, runs migrations, and boots the API server.
func SetupEnv(t *testing.T) *TestEnv {
	ctx, cancel := context.WithCancel(context.Background())

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	entryRepo := repository.NewEntryRepository(pool)
	instanceRepo := repository.NewInstanceRepository(pool)

	instanceSvc := service.NewInstanceService(instanceRepo)

	dispatcher := jobs.NewDispatcher(jobs.LogSink{}, 64)
	go dispatcher.Start(ctx)

	entrySvc := service.NewEntryService(
		entryRepo,
		search.NewFallbackEngine(),
		collab.NewManager(2*time.Second),
		dispatcher,
		service.DefaultEntryServiceConfig(),
	)

	router := server.NewRouter(server.RouterConfig{
		TokenValidator:   instanceSvc,
		KnowledgeHandler: handlers.NewKnowledgeHandler(entrySvc),
		InstanceHandler:  handlers.NewInstanceHandler(instanceSvc),
	})

	srv := httptest.NewServer(router)

	return &TestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Server:     srv,
		Dispatcher: dispatcher,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		cancel:     cancel,
	}
}

// Cleanup releases all resources.
func (e *TestEnv) Cleanup() {
	e.Server.Close()
	e.Dispatcher.Stop()
	e.cancel()
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(context.Background())
	}
}

// Do issues an HTTP request against the test server.
func (e *TestEnv) Do(method, path, token string, body interface{}) (*http.Response, []byte) {
	e.T.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	if err != nil {
		e.T.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response body: %v", err)
	}
	return resp, raw
}

// RegisterInstance registers a new AI instance and returns its id and token.
func (e *TestEnv) RegisterInstance(name string) (int64, string) {
	e.T.Helper()

	resp, raw := e.Do(http.MethodPost, "/api/v1/instances", "", map[string]string{"name": name})
	if resp.StatusCode != http.StatusCreated {
		e.T.Fatalf("instance registration failed (%d): %s", resp.StatusCode, raw)
	}

	var out struct {
		Data struct {
			ID       int64  `json:"id"`
			APIToken string `json:"api_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		e.T.Fatalf("failed to decode registration response: %v", err)
	}
	return out.Data.ID, out.Data.APIToken
}

// CreateEntry creates a knowledge entry and returns its id.
func (e *TestEnv) CreateEntry(token string, entry map[string]interface{}) int64 {
	e.T.Helper()

	resp, raw := e.Do(http.MethodPost, "/api/v1/knowledge/", token, entry)
	if resp.StatusCode != http.StatusCreated {
		e.T.Fatalf("entry creation failed (%d): %s", resp.StatusCode, raw)
	}

	var out struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		e.T.Fatalf("failed to decode create response: %v", err)
	}
	return out.Data.ID
}

func decodeData(t *testing.T, raw []byte, out interface{}) {
	t.Helper()
	wrapper := struct {
		Data interface{} `json:"data"`
	}{Data: out}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, raw)
	}
}

func entryPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/v1/knowledge/%d%s", id, suffix)
}
