package service

import (
	"context"
	"log/slog"

	"github.com/portfolio-contact/backend/internal/model"
)

// User-facing outcomes of a submission.
const (
	MsgSubmitted       = "Thank you! Your message has been sent successfully."
	MsgFixErrors       = "Please fix the errors in the form."
	MsgSomethingFailed = "Something went wrong. Please try again later."
)

// ContactSubmission is the raw contact form as entered by the visitor.
type ContactSubmission struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	Newsletter bool   `json:"newsletter"`
	// IP is the submitter's address when the caller already knows it.
	// Empty means the service asks its IPResolver.
	IP string `json:"-"`
}

// Values maps the submission onto form field names for validation.
func (s ContactSubmission) Values() map[string]string {
	newsletter := ""
	if s.Newsletter {
		newsletter = "on"
	}
	return map[string]string{
		"name":       s.Name,
		"email":      s.Email,
		"phone":      s.Phone,
		"subject":    s.Subject,
		"message":    s.Message,
		"newsletter": newsletter,
	}
}

// IPResolver resolves the public address of the submitter. It never fails;
// unresolvable addresses are reported as model.UnknownIP.
type IPResolver interface {
	Lookup(ctx context.Context) string
}

// EmailNotifier is told about every stored submission.
type EmailNotifier interface {
	ContactSubmitted(ctx context.Context, msg *model.ContactMessage) error
}

// LogEmailNotifier is the default EmailNotifier. Email delivery is not
// wired up; it only records that a notification would have been sent.
type LogEmailNotifier struct{}

// ContactSubmitted implements EmailNotifier.
func (LogEmailNotifier) ContactSubmitted(_ context.Context, msg *model.ContactMessage) error {
	slog.Info("contact notification email skipped", "id", msg.ID, "subject", msg.Subject)
	return nil
}

// ContactService defines the business logic for contact form submissions.
type ContactService interface {
	// Submit validates sub and stores it as a new unread message. Validation
	// failures are returned as *validation.Errors without touching the store.
	Submit(ctx context.Context, sub ContactSubmission) (*model.ContactMessage, error)

	// Get returns a single message.
	Get(ctx context.Context, id string) (*model.ContactMessage, error)

	// UpdateStatus changes the status of a contact message. Statuses other
	// than unread, read and replied are rejected with model.ErrInvalidStatus.
	UpdateStatus(ctx context.Context, id string, status model.Status) error

	// Delete removes a contact message.
	Delete(ctx context.Context, id string) error
}
