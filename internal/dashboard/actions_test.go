package dashboard

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/portfolio-contact/backend/internal/model"
)

func newActions(t *testing.T, store *fakeStore) (*Engine, *Actions) {
	t.Helper()
	e := NewEngine(store)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return e, NewActions(e, store, NewRenderer(time.UTC))
}

func TestActions_UnknownIDIsNoSelection(t *testing.T) {
	store := &fakeStore{}
	_, a := newActions(t, store)
	ctx := context.Background()

	if _, err := a.View(ctx, "nope"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("View: %v", err)
	}
	if _, err := a.ToggleRead(ctx, "nope"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("ToggleRead: %v", err)
	}
	if err := a.Delete(ctx, "nope", true); !errors.Is(err, ErrNoSelection) {
		t.Errorf("Delete: %v", err)
	}
	if _, err := a.Reply(ctx, "nope"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("Reply: %v", err)
	}
	if len(store.updates)+len(store.deletes) != 0 {
		t.Error("no store writes expected")
	}
}

func TestActions_View(t *testing.T) {
	tests := []struct {
		name       string
		status     model.Status
		updErr     error
		wantOps    []statusWrite
		wantStatus model.Status
	}{
		{"unread is marked read", model.StatusUnread, nil, []statusWrite{{"a", model.StatusRead}}, model.StatusRead},
		{"failed mark still returns detail", model.StatusUnread, errors.New("down"), []statusWrite{{"a", model.StatusRead}}, model.StatusUnread},
		{"read is left alone", model.StatusRead, nil, nil, model.StatusRead},
		{"replied is left alone", model.StatusReplied, nil, nil, model.StatusReplied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{msgs: []*model.ContactMessage{msg("a", tt.status, 1)}, updateErr: tt.updErr}
			_, a := newActions(t, store)

			d, err := a.View(context.Background(), "a")
			if err != nil {
				t.Fatalf("view: %v", err)
			}
			if d.ID != "a" || d.SubjectLabel != "Project Inquiry" {
				t.Errorf("unexpected detail %+v", d)
			}
			if d.Status != tt.wantStatus {
				t.Errorf("expected detail status %s, got %s", tt.wantStatus, d.Status)
			}
			if diff := cmp.Diff(tt.wantOps, store.updates); diff != "" {
				t.Errorf("writes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestActions_ToggleRead(t *testing.T) {
	tests := []struct {
		from, want model.Status
	}{
		{model.StatusUnread, model.StatusRead},
		{model.StatusRead, model.StatusUnread},
		{model.StatusReplied, model.StatusUnread},
	}
	for _, tt := range tests {
		store := &fakeStore{msgs: []*model.ContactMessage{msg("a", tt.from, 1)}}
		_, a := newActions(t, store)

		got, err := a.ToggleRead(context.Background(), "a")
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if got != tt.want || len(store.updates) != 1 || store.updates[0].Status != tt.want {
			t.Errorf("toggle from %s: got %s, writes %v", tt.from, got, store.updates)
		}
	}
}

func TestActions_Delete_RequiresConfirmation(t *testing.T) {
	store := &fakeStore{msgs: []*model.ContactMessage{msg("a", model.StatusRead, 1)}}
	_, a := newActions(t, store)

	if err := a.Delete(context.Background(), "a", false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if len(store.deletes) != 0 {
		t.Error("unconfirmed delete must not reach the store")
	}
}

func TestActions_Delete_FailureLeavesStateUnchanged(t *testing.T) {
	store := &fakeStore{
		msgs:      []*model.ContactMessage{msg("b", model.StatusRead, 2), msg("a", model.StatusUnread, 1)},
		deleteErr: errors.New("permission denied"),
	}
	e, a := newActions(t, store)
	before := e.State()

	if err := a.Delete(context.Background(), "a", true); err == nil {
		t.Fatal("expected delete error")
	}
	after := e.State()
	if diff := cmp.Diff(ids(before.View), ids(after.View)); diff != "" {
		t.Errorf("view changed (-before +after):\n%s", diff)
	}
	if before.Counters != after.Counters || before.Version != after.Version {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}
}

func TestActions_Delete_LocalRemovalComesFromFeed(t *testing.T) {
	store := &fakeStore{msgs: []*model.ContactMessage{msg("a", model.StatusRead, 1)}}
	e, a := newActions(t, store)

	if err := a.Delete(context.Background(), "a", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e.Counters().Total != 1 {
		t.Error("delete must not be applied optimistically")
	}
	e.Apply(model.ContactChange{Kind: model.ChangeRemoved, ID: "a"})
	if e.Counters().Total != 0 {
		t.Error("removed change must drop the message")
	}
}

func TestActions_Reply(t *testing.T) {
	m := msg("a", model.StatusRead, 0)
	m.Name = "Bob"
	m.Email = "bob@example.com"
	m.Message = "Can we talk? 100% serious & urgent"

	t.Run("acknowledged", func(t *testing.T) {
		store := &fakeStore{msgs: []*model.ContactMessage{m}}
		_, a := newActions(t, store)

		h, err := a.Reply(context.Background(), "a")
		if err != nil {
			t.Fatalf("reply: %v", err)
		}
		if h.Status != model.StatusReplied {
			t.Errorf("expected replied, got %s", h.Status)
		}
		if diff := cmp.Diff([]statusWrite{{"a", model.StatusReplied}}, store.updates); diff != "" {
			t.Errorf("writes mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("write fails", func(t *testing.T) {
		store := &fakeStore{msgs: []*model.ContactMessage{m}, updateErr: errors.New("down")}
		_, a := newActions(t, store)

		h, err := a.Reply(context.Background(), "a")
		if err == nil {
			t.Fatal("expected error")
		}
		if h.Mailto == "" || h.Status != model.StatusRead {
			t.Errorf("expected handoff with unchanged status, got %+v", h)
		}
	})
}

func TestActions_Mailto(t *testing.T) {
	m := msg("a", model.StatusRead, 0)
	m.Name = "Bob"
	m.Email = "bob@example.com"
	m.Message = "Can we talk? 100% serious & urgent (really)!"
	_, a := newActions(t, &fakeStore{})

	got := a.Mailto(m)
	if !strings.HasPrefix(got, "mailto:bob@example.com?subject=Re%3A%20Project%20Inquiry&body=") {
		t.Fatalf("unexpected mailto %q", got)
	}
	if strings.Contains(got, "+") {
		t.Errorf("spaces must be %%20, got %q", got)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	body := u.Query().Get("body")
	want := "\n\n--- Original Message ---\nFrom: Bob\nDate: 3/1/2026, 12:00:00 PM\n\n" + m.Message
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}
