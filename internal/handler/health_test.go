package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/model"
	"github.com/portfolio-contact/backend/internal/repository"
)

type mockDB struct {
	pingFunc func(ctx context.Context) error
}

func (m *mockDB) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

func TestHealth_OK(t *testing.T) {
	h := New(&mockDB{}, "http://localhost:3000")
	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status=ok, got %q", resp.Status)
	}
	if resp.Store != "" || resp.Dashboard != nil {
		t.Errorf("expected no store or dashboard details, got %+v", resp)
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	h := New(&mockDB{
		pingFunc: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	}, "http://localhost:3000")

	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected status=unhealthy, got %q", resp.Status)
	}
	if resp.Error != "connection refused" {
		t.Errorf("expected ping error, got %q", resp.Error)
	}
}

func TestHealth_ReportsStoreAndDashboard(t *testing.T) {
	repo := repository.NewMemoryContactRepository()
	defer repo.Close()
	repo.Put(&model.ContactMessage{ID: "a", Name: "Ann", Email: "ann@example.com", Subject: "other", Message: "Hello there", Status: model.StatusUnread, Timestamp: time.Now()})
	repo.Put(&model.ContactMessage{ID: "b", Name: "Bob", Email: "bob@example.com", Subject: "other", Message: "Hello again", Status: model.StatusRead, Timestamp: time.Now()})

	engine := dashboard.NewEngine(repo)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	h := New(repo, "", WithStoreDriver("memory"), WithDashboard(engine))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from in-memory store, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Store != "memory" {
		t.Errorf("expected store=memory, got %q", resp.Store)
	}
	want := dashboardHealth{Version: engine.State().Version, Total: 2, Unread: 1}
	if resp.Dashboard == nil || *resp.Dashboard != want {
		t.Errorf("expected dashboard %+v, got %+v", want, resp.Dashboard)
	}
}
