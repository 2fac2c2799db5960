package model

import (
	"errors"
	"time"
)

// Status is the review state of a contact message.
type Status string

const (
	StatusUnread  Status = "unread"
	StatusRead    Status = "read"
	StatusReplied Status = "replied"
)

// StatusUnknown is the display state for values that are not one of the
// three known statuses. It is never written to the store.
const StatusUnknown Status = "unknown"

// ErrInvalidStatus is returned when a status outside unread/read/replied is
// about to be written.
var ErrInvalidStatus = errors.New("invalid status")

// Valid reports whether s is one of the writable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusReplied:
		return true
	}
	return false
}

// Display returns s for known statuses and StatusUnknown otherwise.
func (s Status) Display() Status {
	if s.Valid() {
		return s
	}
	return StatusUnknown
}

// ParseStatus converts user input into a writable Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// Subject codes offered by the contact form.
const (
	SubjectProject       = "project"
	SubjectJob           = "job"
	SubjectCollaboration = "collaboration"
	SubjectOther         = "other"
)

var subjectLabels = map[string]string{
	SubjectProject:       "Project Inquiry",
	SubjectJob:           "Job Opportunity",
	SubjectCollaboration: "Collaboration",
	SubjectOther:         "Other",
}

// SubjectLabel maps a subject code to its human label. Unrecognized codes
// are returned verbatim.
func SubjectLabel(code string) string {
	if label, ok := subjectLabels[code]; ok {
		return label
	}
	return code
}

// UnknownIP is recorded when the submitter's address could not be resolved.
const UnknownIP = "unknown"

// ContactMessage represents a message submitted via the contact form.
type ContactMessage struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	Newsletter bool      `json:"newsletter"`
	Status     Status    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	IP         string    `json:"ip"`
}

// Clone returns a shallow copy; all fields are values so the copy is independent.
func (m *ContactMessage) Clone() *ContactMessage {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// ContactListOptions carries filter and pagination parameters for listing contact messages.
type ContactListOptions struct {
	// Status filters by message status: "", "all", "unread", "read", "replied".
	// Empty string and "all" return all messages.
	Status string
	// Limit 0 means no limit (full-collection read).
	Limit  int
	Offset int
}

// ChangeKind is the type of a change delivered by a store subscription.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ContactChange is one incremental diff of the contacts collection.
// Message is nil for ChangeRemoved.
type ContactChange struct {
	Kind    ChangeKind      `json:"kind"`
	ID      string          `json:"id"`
	Message *ContactMessage `json:"message,omitempty"`
}
