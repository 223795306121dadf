package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/config"
	"github.com/corretorconnect/match-engine/pkg/services/workqueue"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubQueue struct {
	p     workqueue.Progress
	tasks []workqueue.TaskSnapshot
}

func (q stubQueue) Progress() workqueue.Progress { return q.p }

func (q stubQueue) GetTasks() []workqueue.TaskSnapshot { return q.tasks }

func TestHealthHandler_Health_Minimal(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Discovery != nil {
		t.Error("expected no discovery stats without a queue")
	}
}

func TestHealthHandler_Health_WithDependencies(t *testing.T) {
	queue := stubQueue{p: workqueue.Progress{Pending: 2, Running: 1, Completed: 40, Failed: 3}}
	handler := NewHealthHandler(&config.Config{}, stubPinger{}, queue, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Database != "ok" {
		t.Errorf("expected database 'ok', got %q", response.Database)
	}
	if response.Discovery == nil || *response.Discovery != queue.p {
		t.Errorf("expected discovery stats %+v, got %+v", queue.p, response.Discovery)
	}
	if len(response.DiscoveryTasks) != 0 {
		t.Errorf("expected no discovery tasks, got %+v", response.DiscoveryTasks)
	}
}

func TestHealthHandler_Health_ListsRunningDiscovery(t *testing.T) {
	q := workqueue.New(zap.NewNop())
	defer func() { _ = q.Shutdown(context.Background()) }()

	release := make(chan struct{})
	defer close(release)
	q.Enqueue(workqueue.NewFuncTask("discover property", func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}))

	deadline := time.Now().Add(time.Second)
	for q.Progress().Running == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	handler := NewHealthHandler(&config.Config{}, nil, q, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.DiscoveryTasks) != 1 {
		t.Fatalf("expected 1 discovery task, got %+v", response.DiscoveryTasks)
	}
	task := response.DiscoveryTasks[0]
	if task.Name != "discover property" || task.Status != workqueue.TaskStatusRunning {
		t.Errorf("unexpected task snapshot %+v", task)
	}
	if task.StartedAt == nil {
		t.Error("expected running task to report a start time")
	}
}

func TestHealthHandler_Health_DatabaseDown(t *testing.T) {
	handler := NewHealthHandler(&config.Config{}, stubPinger{err: errors.New("connection refused")}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "degraded" || response.Database != "unreachable" {
		t.Errorf("unexpected response %+v", response)
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	handler := NewHealthHandler(cfg, nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Version != "test-version" {
		t.Errorf("expected version 'test-version', got '%s'", response.Version)
	}
	if response.Service != "match-engine" {
		t.Errorf("expected service 'match-engine', got '%s'", response.Service)
	}
	if response.Environment != "test" {
		t.Errorf("expected environment 'test', got '%s'", response.Environment)
	}
}
