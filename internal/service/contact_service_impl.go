package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/portfolio-contact/backend/internal/model"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/portfolio-contact/backend/internal/validation"
)

// contactServiceImpl is the production implementation of ContactService.
type contactServiceImpl struct {
	repo     repository.ContactRepository
	schema   *validation.Schema
	ip       IPResolver
	notifier EmailNotifier
}

// ContactOption customizes NewContactService.
type ContactOption func(*contactServiceImpl)

// WithSchema replaces the embedded form schema.
func WithSchema(s *validation.Schema) ContactOption {
	return func(c *contactServiceImpl) { c.schema = s }
}

// WithIPResolver sets the resolver used when a submission carries no IP.
func WithIPResolver(r IPResolver) ContactOption {
	return func(c *contactServiceImpl) { c.ip = r }
}

// WithEmailNotifier replaces the logging notifier.
func WithEmailNotifier(n EmailNotifier) ContactOption {
	return func(c *contactServiceImpl) { c.notifier = n }
}

// NewContactService creates a ContactService backed by the given repository.
func NewContactService(repo repository.ContactRepository, opts ...ContactOption) ContactService {
	s := &contactServiceImpl{
		repo:     repo,
		schema:   validation.DefaultSchema(),
		notifier: LogEmailNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates, builds the unread record and stores it with one write.
// The store assigns ID and Timestamp.
func (s *contactServiceImpl) Submit(ctx context.Context, sub ContactSubmission) (*model.ContactMessage, error) {
	if errs := s.schema.Validate(sub.Values()); errs != nil {
		return nil, errs
	}

	msg := &model.ContactMessage{
		Name:       strings.TrimSpace(sub.Name),
		Email:      strings.TrimSpace(sub.Email),
		Phone:      strings.TrimSpace(sub.Phone),
		Subject:    strings.TrimSpace(sub.Subject),
		Message:    strings.TrimSpace(sub.Message),
		Newsletter: sub.Newsletter,
		Status:     model.StatusUnread,
		IP:         s.resolveIP(ctx, sub.IP),
	}
	if err := s.repo.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("save contact message: %w", err)
	}

	if err := s.notifier.ContactSubmitted(ctx, msg); err != nil {
		slog.Warn("contact notification failed", "id", msg.ID, "error", err)
	}
	return msg, nil
}

func (s *contactServiceImpl) resolveIP(ctx context.Context, known string) string {
	if known = strings.TrimSpace(known); known != "" {
		return known
	}
	if s.ip == nil {
		return model.UnknownIP
	}
	return s.ip.Lookup(ctx)
}

func (s *contactServiceImpl) Get(ctx context.Context, id string) (*model.ContactMessage, error) {
	return s.repo.Get(ctx, id)
}

// UpdateStatus changes the status of a contact message. Only the three
// known statuses are accepted.
func (s *contactServiceImpl) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *contactServiceImpl) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
