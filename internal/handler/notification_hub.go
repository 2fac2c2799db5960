package handler

import (
	"context"
	"sync"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/model"
)

// Notification is a new-message alert pushed to opted-in admin streams.
type Notification struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NotificationHub fans new-message notifications out to admin streams that
// asked for them. It implements dashboard.Notifier: notifications are only
// permitted while at least one stream is subscribed.
type NotificationHub struct {
	mu   sync.Mutex
	subs map[chan Notification]struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{subs: make(map[chan Notification]struct{})}
}

// Permitted implements dashboard.Notifier.
func (h *NotificationHub) Permitted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}

// Notify implements dashboard.Notifier. Slow subscribers miss notifications
// rather than block the engine.
func (h *NotificationHub) Notify(m *model.ContactMessage) {
	n := Notification{ID: m.ID, Title: dashboard.NotificationTitle, Body: dashboard.NotificationBody(m)}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a stream until ctx is done; the channel is then closed.
func (h *NotificationHub) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}
