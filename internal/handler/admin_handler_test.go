package handler

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/model"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/portfolio-contact/backend/internal/service"
)

// ---------------------------------------------------------------------------
// stubStore: dashboard.Store with canned data and injectable failures
// ---------------------------------------------------------------------------

type stubStore struct {
	mu        sync.Mutex
	msgs      []*model.ContactMessage
	updateErr error
	deleteErr error
	updates   map[string]model.Status
	deleted   []string
}

func (s *stubStore) List(ctx context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error) {
	return s.msgs, nil
}

func (s *stubStore) Subscribe(ctx context.Context) (<-chan model.ContactChange, error) {
	return nil, errors.New("not supported")
}

func (s *stubStore) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = map[string]model.Status{}
	}
	s.updates[id] = status
	return s.updateErr
}

func (s *stubStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return s.deleteErr
}

var adminBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func adminMessages() []*model.ContactMessage {
	return []*model.ContactMessage{
		{ID: "c", Name: "Carol", Email: "carol@example.com", Subject: "job", Message: "Hiring now", Status: model.StatusUnread, Timestamp: adminBase.Add(2 * time.Minute)},
		{ID: "b", Name: "Bob", Email: "bob@example.com", Subject: "project", Message: "A \"quoted\" idea", Status: model.StatusRead, Timestamp: adminBase.Add(time.Minute)},
		{ID: "a", Name: "Ann", Email: "ann@example.com", Subject: "other", Message: "Hello", Status: model.StatusReplied, Timestamp: adminBase},
	}
}

func newAdminHandler(t *testing.T, store *stubStore) (*AdminHandler, *dashboard.Engine) {
	t.Helper()
	hub := NewNotificationHub()
	engine := dashboard.NewEngine(store, dashboard.WithNotifier(hub))
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	renderer := dashboard.NewRenderer(time.UTC)
	h := NewAdminHandler(engine, dashboard.NewActions(engine, store, renderer), renderer, hub)
	h.now = func() time.Time { return adminBase }
	return h, engine
}

func withID(req *http.Request, id string) *http.Request {
	req.SetPathValue("id", id)
	return req
}

// ---------------------------------------------------------------------------
// List / counters
// ---------------------------------------------------------------------------

func TestAdminHandler_Messages_Filtered(t *testing.T) {
	h, _ := newAdminHandler(t, &stubStore{msgs: adminMessages()})

	rec := httptest.NewRecorder()
	h.Messages(rec, httptest.NewRequest("GET", "/api/admin/messages?status=all&sort=oldest&q=", nil))

	var vm dashboard.ViewModel
	if err := json.NewDecoder(rec.Body).Decode(&vm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vm.Cards) != 3 || vm.Cards[0].ID != "a" || vm.Cards[2].ID != "c" {
		t.Errorf("expected oldest-first a..c, got %+v", vm.Cards)
	}
	if vm.TotalLabel != "3 total" || vm.UnreadLabel != "1 unread" {
		t.Errorf("unexpected labels %q %q", vm.TotalLabel, vm.UnreadLabel)
	}

	rec = httptest.NewRecorder()
	h.Messages(rec, httptest.NewRequest("GET", "/api/admin/messages?q=HIRING", nil))
	vm = dashboard.ViewModel{}
	_ = json.NewDecoder(rec.Body).Decode(&vm)
	if len(vm.Cards) != 1 || vm.Cards[0].ID != "c" || vm.Counters.Total != 3 {
		t.Errorf("expected only c with full counters, got %+v", vm)
	}
}

func TestAdminHandler_Counters(t *testing.T) {
	h, _ := newAdminHandler(t, &stubStore{msgs: adminMessages()})

	rec := httptest.NewRecorder()
	h.Counters(rec, httptest.NewRequest("GET", "/api/admin/counters", nil))

	if body := strings.TrimSpace(rec.Body.String()); body != `{"total":3,"unread":1}` {
		t.Errorf("unexpected body %s", body)
	}
}

// ---------------------------------------------------------------------------
// Per-message actions
// ---------------------------------------------------------------------------

func TestAdminHandler_Get_MarksRead(t *testing.T) {
	store := &stubStore{msgs: adminMessages()}
	h, _ := newAdminHandler(t, store)

	rec := httptest.NewRecorder()
	h.Get(rec, withID(httptest.NewRequest("GET", "/api/admin/messages/c", nil), "c"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var d dashboard.Detail
	_ = json.NewDecoder(rec.Body).Decode(&d)
	if d.SubjectLabel != "Job Opportunity" || d.Phone != "Not provided" {
		t.Errorf("unexpected detail %+v", d)
	}
	if store.updates["c"] != model.StatusRead {
		t.Errorf("expected c marked read, got %v", store.updates)
	}
}

func TestAdminHandler_MissingSelectionIs204(t *testing.T) {
	h, _ := newAdminHandler(t, &stubStore{msgs: adminMessages()})

	calls := map[string]http.HandlerFunc{
		"get":    h.Get,
		"toggle": h.ToggleRead,
		"delete": h.Delete,
		"reply":  h.Reply,
	}
	for name, fn := range calls {
		rec := httptest.NewRecorder()
		fn(rec, withID(httptest.NewRequest("POST", "/x?confirm=true", nil), "missing"))
		if rec.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", name, rec.Code)
		}
	}
}

func TestAdminHandler_ToggleRead(t *testing.T) {
	store := &stubStore{msgs: adminMessages()}
	h, _ := newAdminHandler(t, store)

	rec := httptest.NewRecorder()
	h.ToggleRead(rec, withID(httptest.NewRequest("PATCH", "/", nil), "b"))
	if body := strings.TrimSpace(rec.Body.String()); body != `{"id":"b","status":"unread"}` {
		t.Errorf("unexpected body %s", body)
	}

	store.updateErr = errors.New("down")
	rec = httptest.NewRecorder()
	h.ToggleRead(rec, withID(httptest.NewRequest("PATCH", "/", nil), "b"))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestAdminHandler_Delete(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		deleteErr error
		wantCode  int
		wantCalls int
	}{
		{"unconfirmed", "", nil, http.StatusBadRequest, 0},
		{"confirmed", "?confirm=true", nil, http.StatusAccepted, 1},
		{"store failure", "?confirm=true", errors.New("denied"), http.StatusBadGateway, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubStore{msgs: adminMessages(), deleteErr: tt.deleteErr}
			h, engine := newAdminHandler(t, store)

			rec := httptest.NewRecorder()
			h.Delete(rec, withID(httptest.NewRequest("DELETE", "/api/admin/messages/a"+tt.query, nil), "a"))

			if rec.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if len(store.deleted) != tt.wantCalls {
				t.Errorf("expected %d store deletes, got %d", tt.wantCalls, len(store.deleted))
			}
			if engine.Counters().Total != 3 {
				t.Error("local list must only change through the feed")
			}
		})
	}
}

func TestAdminHandler_Reply(t *testing.T) {
	store := &stubStore{msgs: adminMessages()}
	h, _ := newAdminHandler(t, store)

	rec := httptest.NewRecorder()
	h.Reply(rec, withID(httptest.NewRequest("POST", "/", nil), "b"))
	var ok dashboard.Handoff
	_ = json.NewDecoder(rec.Body).Decode(&ok)
	if rec.Code != http.StatusOK || ok.Status != model.StatusReplied || !strings.HasPrefix(ok.Mailto, "mailto:bob@example.com?") {
		t.Errorf("unexpected reply %d %+v", rec.Code, ok)
	}

	store.updateErr = errors.New("down")
	rec = httptest.NewRecorder()
	h.Reply(rec, withID(httptest.NewRequest("POST", "/", nil), "b"))
	var failed replyFailedResponse
	_ = json.NewDecoder(rec.Body).Decode(&failed)
	if rec.Code != http.StatusBadGateway || failed.Error != "reply_status_failed" || failed.Mailto == "" || failed.Status != model.StatusRead {
		t.Errorf("unexpected failed reply %d %+v", rec.Code, failed)
	}
}

func TestAdminHandler_WritesGoThroughContactService(t *testing.T) {
	repo := repository.NewMemoryContactRepository()
	defer repo.Close()
	repo.Put(&model.ContactMessage{ID: "m", Name: "Mia", Email: "mia@example.com", Subject: "job", Message: "Hello there", Status: model.StatusUnread, Timestamp: adminBase})

	engine := dashboard.NewEngine(repo)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	renderer := dashboard.NewRenderer(time.UTC)
	svc := service.NewContactService(repo)
	h := NewAdminHandler(engine, dashboard.NewActions(engine, svc, renderer), renderer, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, withID(httptest.NewRequest("GET", "/api/admin/messages/m", nil), "m"))
	var d dashboard.Detail
	_ = json.NewDecoder(rec.Body).Decode(&d)
	if d.Status != model.StatusRead {
		t.Errorf("expected detail status read, got %s", d.Status)
	}
	if got, err := svc.Get(context.Background(), "m"); err != nil || got.Status != model.StatusRead {
		t.Errorf("expected stored status read, got %+v (%v)", got, err)
	}

	rec = httptest.NewRecorder()
	h.Delete(rec, withID(httptest.NewRequest("DELETE", "/api/admin/messages/m?confirm=true", nil), "m"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if _, err := svc.Get(context.Background(), "m"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected deleted message, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

func TestAdminHandler_Export_CSV(t *testing.T) {
	h, _ := newAdminHandler(t, &stubStore{msgs: adminMessages()})

	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest("GET", "/api/admin/export?status=read", nil))

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="messages_2026-03-01.csv"` {
		t.Errorf("unexpected disposition %q", got)
	}
	records, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(records) != 2 || records[1][0] != "Bob" || records[1][4] != `A "quoted" idea` {
		t.Errorf("unexpected records %v", records)
	}
}

func TestAdminHandler_Export_Mbox(t *testing.T) {
	h, _ := newAdminHandler(t, &stubStore{msgs: adminMessages()})

	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest("GET", "/api/admin/export?format=mbox", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/mbox" {
		t.Errorf("unexpected content type %q", ct)
	}
	if n := strings.Count(rec.Body.String(), "X-Contact-Status:"); n != 3 {
		t.Errorf("expected 3 messages, got %d", n)
	}
}

func TestAdminHandler_Export_UnknownFormat(t *testing.T) {
	h, _ := newAdminHandler(t, &stubStore{})
	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest("GET", "/api/admin/export?format=xlsx", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

type sseEvent struct {
	name string
	data string
}

func readEvents(sc *bufio.Scanner, out chan<- sseEvent) {
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.name != "":
			out <- ev
			ev = sseEvent{}
		}
	}
	close(out)
}

func nextEvent(t *testing.T, events <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("stream ended before %q event", name)
			}
			if ev.name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q event", name)
		}
	}
}

func TestAdminHandler_Stream(t *testing.T) {
	h, engine := newAdminHandler(t, &stubStore{msgs: adminMessages()})
	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"?status=unread&notify=1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan sseEvent, 16)
	go readEvents(bufio.NewScanner(resp.Body), events)

	var vm dashboard.ViewModel
	first := nextEvent(t, events, "view")
	if err := json.Unmarshal([]byte(first.data), &vm); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(vm.Cards) != 1 || vm.Cards[0].ID != "c" {
		t.Fatalf("expected initial unread view [c], got %+v", vm.Cards)
	}

	engine.Apply(model.ContactChange{
		Kind: model.ChangeAdded,
		ID:   "d",
		Message: &model.ContactMessage{
			ID: "d", Name: "Dan", Email: "dan@example.com", Subject: "other",
			Message: "New one", Status: model.StatusUnread, Timestamp: adminBase.Add(time.Hour),
		},
	})

	var n Notification
	note := nextEvent(t, events, "notification")
	if err := json.Unmarshal([]byte(note.data), &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if n.ID != "d" || n.Title != dashboard.NotificationTitle || n.Body != "Dan: New one..." {
		t.Errorf("unexpected notification %+v", n)
	}

	waitView := time.After(3 * time.Second)
	for {
		select {
		case <-waitView:
			t.Fatal("no view containing the new message")
		default:
		}
		ev := nextEvent(t, events, "view")
		vm = dashboard.ViewModel{}
		_ = json.Unmarshal([]byte(ev.data), &vm)
		if len(vm.Cards) == 2 && vm.Cards[0].ID == "d" {
			return
		}
	}
}

func TestNotificationHub_PermittedOnlyWithSubscribers(t *testing.T) {
	hub := NewNotificationHub()
	if hub.Permitted() {
		t.Fatal("no subscribers: notifications must not be permitted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	if !hub.Permitted() {
		t.Fatal("expected permitted with a subscriber")
	}

	hub.Notify(&model.ContactMessage{ID: "x", Name: "X", Message: "hi"})
	select {
	case n := <-ch:
		if n.ID != "x" {
			t.Errorf("unexpected notification %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if hub.Permitted() {
		t.Error("expected not permitted after unsubscribe")
	}
}
