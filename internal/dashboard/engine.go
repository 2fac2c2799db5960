// Package dashboard keeps a local mirror of the contacts collection for the
// admin desk. The Engine reconciles store change events into an ordered list
// and re-derives the filtered view and counters after every change; Actions
// and the export and render helpers work on that state.
package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"github.com/portfolio-contact/backend/internal/model"
)

// Store is the subset of the contacts store the dashboard needs.
type Store interface {
	List(ctx context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error)
	Subscribe(ctx context.Context) (<-chan model.ContactChange, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	Delete(ctx context.Context, id string) error
}

// Notifier surfaces new unread messages outside the list, e.g. a desktop or
// browser alert. Notify is only called while Permitted reports true.
type Notifier interface {
	Permitted() bool
	Notify(m *model.ContactMessage)
}

// EventKind describes why the engine state changed.
type EventKind string

const (
	EventAdded    = EventKind(model.ChangeAdded)
	EventModified = EventKind(model.ChangeModified)
	EventRemoved  = EventKind(model.ChangeRemoved)
	EventLoaded   EventKind = "loaded"
	EventFilter   EventKind = "filter"
)

// Event is sent to watchers after the state changed. Watchers read the new
// state from the engine; a slow watcher only sees the latest event.
type Event struct {
	Version uint64    `json:"version"`
	Kind    EventKind `json:"kind"`
	ID      string    `json:"id,omitempty"`
}

// State is a consistent copy of the engine's derived data.
type State struct {
	Version  uint64
	Filter   Filter
	View     []*model.ContactMessage
	Counters Counters
}

// Engine owns the local message sequence. Messages held by the engine are
// never mutated in place; a modified change swaps in a new pointer, so slices
// handed out by the engine stay valid after later changes.
type Engine struct {
	store    Store
	notifier Notifier

	mu       sync.RWMutex
	messages []*model.ContactMessage
	filter   Filter
	view     []*model.ContactMessage
	counters Counters
	version  uint64
	watchers map[chan Event]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the new-message notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithFilter sets the initial filter.
func WithFilter(f Filter) Option {
	return func(e *Engine) { e.filter = f }
}

// NewEngine creates an empty engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		filter:   DefaultFilter(),
		watchers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.view = Project(nil, e.filter)
	return e
}

// Load replaces the local sequence with one full read of the collection. On
// failure the current (possibly empty) sequence is kept.
func (e *Engine) Load(ctx context.Context) error {
	msgs, err := e.store.List(ctx, model.ContactListOptions{})
	if err != nil {
		slog.Error("load messages failed", "error", err)
		return err
	}

	seen := make(map[string]bool, len(msgs))
	local := make([]*model.ContactMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		local = append(local, m.Clone())
	}

	e.mu.Lock()
	e.messages = local
	e.recomputeLocked(EventLoaded, "")
	e.mu.Unlock()

	slog.Info("messages loaded", "count", len(local))
	return nil
}

// Apply reconciles one change into the local sequence and reports whether it
// changed anything. Re-delivered adds, and modifies or removes of absent ids,
// are no-ops.
func (e *Engine) Apply(c model.ContactChange) bool {
	var notify *model.ContactMessage

	e.mu.Lock()
	idx := e.indexLocked(c.ID)
	switch c.Kind {
	case model.ChangeAdded:
		if idx >= 0 || c.Message == nil {
			e.mu.Unlock()
			return false
		}
		m := c.Message.Clone()
		m.ID = c.ID
		e.messages = append([]*model.ContactMessage{m}, e.messages...)
		if m.Status == model.StatusUnread {
			notify = m
		}
	case model.ChangeModified:
		if idx < 0 || c.Message == nil {
			e.mu.Unlock()
			return false
		}
		m := c.Message.Clone()
		m.ID = c.ID
		e.messages[idx] = m
	case model.ChangeRemoved:
		if idx < 0 {
			e.mu.Unlock()
			return false
		}
		e.messages = append(e.messages[:idx:idx], e.messages[idx+1:]...)
	default:
		e.mu.Unlock()
		slog.Warn("ignoring unknown change kind", "kind", c.Kind, "id", c.ID)
		return false
	}
	e.recomputeLocked(EventKind(c.Kind), c.ID)
	e.mu.Unlock()

	if notify != nil && e.notifier != nil && e.notifier.Permitted() {
		e.notifier.Notify(notify)
	}
	return true
}

// Run loads the collection and then applies store changes until ctx is done
// or the feed closes. The feed is opened before the load so nothing written
// in between is missed; its deliveries are applied only after the load, and
// overlap with the loaded data is absorbed by Apply. Failures are logged and
// leave the engine serving its current state; there is no reconnect.
func (e *Engine) Run(ctx context.Context) error {
	feed, err := e.store.Subscribe(ctx)
	if err != nil {
		slog.Error("subscribe to messages failed", "error", err)
		_ = e.Load(ctx)
		return err
	}

	_ = e.Load(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-feed:
			if !ok {
				if ctx.Err() == nil {
					slog.Warn("message feed closed; dashboard state is no longer live")
				}
				return nil
			}
			e.Apply(c)
		}
	}
}

// SetFilter changes the engine's filter and re-projects the view.
func (e *Engine) SetFilter(f Filter) {
	e.mu.Lock()
	e.filter = f
	e.recomputeLocked(EventFilter, "")
	e.mu.Unlock()
}

// State returns the current view, counters and version.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Version:  e.version,
		Filter:   e.filter,
		View:     append([]*model.ContactMessage(nil), e.view...),
		Counters: e.counters,
	}
}

// StateWith projects the local sequence with f without touching the engine's
// own filter. Counters always cover the full sequence.
func (e *Engine) StateWith(f Filter) State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Version:  e.version,
		Filter:   f,
		View:     Project(e.messages, f),
		Counters: e.counters,
	}
}

// Messages returns the local sequence in mirror order.
func (e *Engine) Messages() []*model.ContactMessage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*model.ContactMessage(nil), e.messages...)
}

// Counters returns the current summary figures.
func (e *Engine) Counters() Counters {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.counters
}

// Lookup finds a message in the local sequence.
func (e *Engine) Lookup(id string) (*model.ContactMessage, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i := e.indexLocked(id); i >= 0 {
		return e.messages[i], true
	}
	return nil, false
}

// Watch returns a channel that receives an Event after every state change.
// The channel is closed when ctx is done.
func (e *Engine) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 1)
	e.mu.Lock()
	e.watchers[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.watchers, ch)
		close(ch)
		e.mu.Unlock()
	}()
	return ch
}

func (e *Engine) indexLocked(id string) int {
	for i, m := range e.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// recomputeLocked re-derives view and counters, bumps the version and
// signals watchers. Callers hold e.mu for writing.
func (e *Engine) recomputeLocked(kind EventKind, id string) {
	e.view = Project(e.messages, e.filter)
	e.counters = Count(e.messages)
	e.version++

	ev := Event{Version: e.version, Kind: kind, ID: id}
	for ch := range e.watchers {
		select {
		case ch <- ev:
		default:
			// Replace the stale pending event with the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
