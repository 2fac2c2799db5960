package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/portfolio-contact/backend/internal/model"
)

var (
	// ErrNoSelection is returned for ids absent from the local sequence.
	// Callers treat it as a silent no-op.
	ErrNoSelection = errors.New("no such message")
	// ErrNotConfirmed is returned by Delete when the user did not confirm.
	ErrNotConfirmed = errors.New("delete not confirmed")
)

// Writer performs the status and delete writes of the actions. The contact
// service satisfies it, and so does a bare Store.
type Writer interface {
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	Delete(ctx context.Context, id string) error
}

// Actions performs the per-message operations of the detail modal. Every
// action writes through the Writer only; local state changes arrive through
// the engine's subscription.
type Actions struct {
	engine   *Engine
	store    Writer
	renderer *Renderer
}

// NewActions binds actions to an engine. Writes go through w.
func NewActions(engine *Engine, w Writer, renderer *Renderer) *Actions {
	return &Actions{engine: engine, store: w, renderer: renderer}
}

// View returns the detail of a message and marks it read if it was unread.
// A failed status write is logged; the detail is still returned with the
// status unchanged.
func (a *Actions) View(ctx context.Context, id string) (Detail, error) {
	m, ok := a.engine.Lookup(id)
	if !ok {
		return Detail{}, ErrNoSelection
	}
	d := a.renderer.Detail(m)
	if m.Status == model.StatusUnread {
		if err := a.store.UpdateStatus(ctx, id, model.StatusRead); err != nil {
			slog.Error("mark message read failed", "id", id, "error", err)
		} else {
			d.Status = model.StatusRead
		}
	}
	return d, nil
}

// ToggleRead flips unread to read and anything else to unread. It returns
// the status that was written.
func (a *Actions) ToggleRead(ctx context.Context, id string) (model.Status, error) {
	m, ok := a.engine.Lookup(id)
	if !ok {
		return "", ErrNoSelection
	}
	next := model.StatusUnread
	if m.Status == model.StatusUnread {
		next = model.StatusRead
	}
	if err := a.store.UpdateStatus(ctx, id, next); err != nil {
		slog.Error("toggle read failed", "id", id, "error", err)
		return "", err
	}
	return next, nil
}

// Delete removes a message from the store once confirmed. The local list is
// only updated by the resulting removed change, so a failed delete leaves it
// untouched.
func (a *Actions) Delete(ctx context.Context, id string, confirmed bool) error {
	if _, ok := a.engine.Lookup(id); !ok {
		return ErrNoSelection
	}
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := a.store.Delete(ctx, id); err != nil {
		slog.Error("delete message failed", "id", id, "error", err)
		return err
	}
	return nil
}

// Handoff is the result of a reply: a mailto URI for the mail client and the
// status the message has after the reply.
type Handoff struct {
	Mailto string       `json:"mailto"`
	Status model.Status `json:"status"`
}

// Reply composes the mailto handoff and marks the message replied. The status
// write is awaited; on failure the handoff is still returned together with
// the unchanged status and the error.
func (a *Actions) Reply(ctx context.Context, id string) (Handoff, error) {
	m, ok := a.engine.Lookup(id)
	if !ok {
		return Handoff{}, ErrNoSelection
	}
	h := Handoff{Mailto: a.Mailto(m), Status: m.Status}
	if err := a.store.UpdateStatus(ctx, id, model.StatusReplied); err != nil {
		slog.Error("mark message replied failed", "id", id, "error", err)
		return h, err
	}
	h.Status = model.StatusReplied
	return h, nil
}

// Mailto builds the reply URI for m.
func (a *Actions) Mailto(m *model.ContactMessage) string {
	subject := "Re: " + model.SubjectLabel(m.Subject)
	body := "\n\n--- Original Message ---\nFrom: " + m.Name +
		"\nDate: " + a.renderer.FormatDate(m.Timestamp, true) +
		"\n\n" + m.Message
	return "mailto:" + m.Email + "?subject=" + encodeURIComponent(subject) +
		"&body=" + encodeURIComponent(body)
}

// encodeURIComponent percent-encodes everything except the unreserved marks
// mail clients expect to see verbatim, and uses %20 for spaces.
func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}

var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
