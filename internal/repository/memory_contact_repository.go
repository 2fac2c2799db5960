package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/portfolio-contact/backend/internal/model"
)

// MemoryContactRepository is an in-process ContactRepository with the same
// ordering and change-feed semantics as the PostgreSQL store. It backs tests
// and STORE_DRIVER=memory.
type MemoryContactRepository struct {
	mu       sync.Mutex
	messages map[string]*model.ContactMessage
	last     time.Time
	now      func() time.Time
	subs     map[*memorySub]struct{}
	closed   bool
}

// NewMemoryContactRepository creates an empty in-memory store.
func NewMemoryContactRepository() *MemoryContactRepository {
	return &MemoryContactRepository{
		messages: make(map[string]*model.ContactMessage),
		now:      time.Now,
		subs:     make(map[*memorySub]struct{}),
	}
}

var _ ContactRepository = (*MemoryContactRepository)(nil)

// Ping always succeeds.
func (r *MemoryContactRepository) Ping(context.Context) error { return nil }

// Save assigns an id and a strictly increasing timestamp, stores a copy and
// publishes an added change.
func (r *MemoryContactRepository) Save(_ context.Context, msg *model.ContactMessage) error {
	if !msg.Status.Valid() {
		return model.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()
	if !ts.After(r.last) {
		ts = r.last.Add(time.Microsecond)
	}
	r.last = ts

	msg.ID = uuid.New().String()
	msg.Timestamp = ts
	stored := msg.Clone()
	r.messages[stored.ID] = stored
	r.publishLocked(model.ContactChange{Kind: model.ChangeAdded, ID: stored.ID, Message: stored.Clone()})
	return nil
}

// Put stores msg as-is, keeping its id, status and timestamp, and publishes
// added or modified. It stands in for writes made by other clients of the
// store, including values the API itself would reject.
func (r *MemoryContactRepository) Put(msg *model.ContactMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := model.ChangeAdded
	if _, ok := r.messages[msg.ID]; ok {
		kind = model.ChangeModified
	}
	if msg.Timestamp.After(r.last) {
		r.last = msg.Timestamp
	}
	stored := msg.Clone()
	r.messages[stored.ID] = stored
	r.publishLocked(model.ContactChange{Kind: kind, ID: stored.ID, Message: stored.Clone()})
}

// List returns copies ordered newest first.
func (r *MemoryContactRepository) List(_ context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := strings.TrimSpace(opts.Status)
	var out []*model.ContactMessage
	for _, m := range r.messages {
		if status != "" && status != "all" && string(m.Status) != status {
			continue
		}
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Get returns a copy of the message with the given id.
func (r *MemoryContactRepository) Get(_ context.Context, id string) (*model.ContactMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

// UpdateStatus sets the status and publishes a modified change.
func (r *MemoryContactRepository) UpdateStatus(_ context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Status = status
	r.publishLocked(model.ContactChange{Kind: model.ChangeModified, ID: id, Message: m.Clone()})
	return nil
}

// Delete removes the message and publishes a removed change.
func (r *MemoryContactRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.messages[id]; !ok {
		return ErrNotFound
	}
	delete(r.messages, id)
	r.publishLocked(model.ContactChange{Kind: model.ChangeRemoved, ID: id})
	return nil
}

// Subscribe registers a change feed. Changes are queued per subscriber so a
// slow reader never loses or reorders events and never blocks writers.
func (r *MemoryContactRepository) Subscribe(ctx context.Context) (<-chan model.ContactChange, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &memorySub{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan model.ContactChange),
	}
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.subs, sub)
			r.mu.Unlock()
			close(sub.out)
		}()
		sub.pump(ctx)
	}()
	return sub.out, nil
}

// Close ends every subscription. Subsequent Subscribe calls fail.
func (r *MemoryContactRepository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for sub := range r.subs {
		close(sub.done)
	}
}

func (r *MemoryContactRepository) publishLocked(c model.ContactChange) {
	for sub := range r.subs {
		sub.push(c)
	}
}

type memorySub struct {
	mu      sync.Mutex
	pending []model.ContactChange
	signal  chan struct{}
	done    chan struct{}
	out     chan model.ContactChange
}

func (s *memorySub) push(c model.ContactChange) {
	s.mu.Lock()
	s.pending = append(s.pending, c)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *memorySub) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.signal:
		}

		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, c := range batch {
			select {
			case s.out <- c:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}
}
