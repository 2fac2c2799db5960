package dashboard

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/portfolio-contact/backend/internal/model"
)

const (
	previewRunes = 100
	dateLayout   = "1/2/2006"
	fullLayout   = "1/2/2006, 3:04:05 PM"
	noPhoneLabel = "Not provided"
	unknownDate  = "Unknown"
)

// NotificationTitle is the title of a new-message notification.
const NotificationTitle = "New Message Received"

// Card is the list-row view-model of one message.
type Card struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone,omitempty"`
	SubjectLabel string       `json:"subject_label"`
	Preview      string       `json:"preview"`
	Status       model.Status `json:"status"`
	Unread       bool         `json:"unread"`
	Date         string       `json:"date"`
	TimeAgo      string       `json:"time_ago"`
}

// Detail is the modal view-model of one message.
type Detail struct {
	ID           string       `json:"id"`
	SubjectLabel string       `json:"subject_label"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Time         string       `json:"time"`
	Message      string       `json:"message"`
	Status       model.Status `json:"status"`
	Newsletter   bool         `json:"newsletter"`
	IP           string       `json:"ip"`
}

// ViewModel is the whole list panel.
type ViewModel struct {
	Version     uint64   `json:"version"`
	Filter      Filter   `json:"filter"`
	Cards       []Card   `json:"cards"`
	Empty       bool     `json:"empty"`
	Counters    Counters `json:"counters"`
	TotalLabel  string   `json:"total_label"`
	UnreadLabel string   `json:"unread_label"`
}

// Renderer formats messages for display in one time zone.
type Renderer struct {
	loc *time.Location
	now func() time.Time
}

// NewRenderer returns a renderer for loc; nil means UTC.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc, now: time.Now}
}

// Location is the display time zone.
func (r *Renderer) Location() *time.Location { return r.loc }

// ViewModel renders a State.
func (r *Renderer) ViewModel(s State) ViewModel {
	cards := make([]Card, 0, len(s.View))
	for _, m := range s.View {
		cards = append(cards, r.Card(m))
	}
	return ViewModel{
		Version:     s.Version,
		Filter:      s.Filter,
		Cards:       cards,
		Empty:       len(cards) == 0,
		Counters:    s.Counters,
		TotalLabel:  fmt.Sprintf("%d total", s.Counters.Total),
		UnreadLabel: fmt.Sprintf("%d unread", s.Counters.Unread),
	}
}

// Card renders one list row.
func (r *Renderer) Card(m *model.ContactMessage) Card {
	return Card{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		Phone:        m.Phone,
		SubjectLabel: model.SubjectLabel(m.Subject),
		Preview:      Preview(m.Message),
		Status:       m.Status.Display(),
		Unread:       m.Status == model.StatusUnread,
		Date:         r.FormatDate(m.Timestamp, false),
		TimeAgo:      r.TimeAgo(m.Timestamp),
	}
}

// Detail renders the modal for one message.
func (r *Renderer) Detail(m *model.ContactMessage) Detail {
	phone := m.Phone
	if phone == "" {
		phone = noPhoneLabel
	}
	return Detail{
		ID:           m.ID,
		SubjectLabel: model.SubjectLabel(m.Subject),
		Name:         m.Name,
		Email:        m.Email,
		Phone:        phone,
		Time:         r.FormatDate(m.Timestamp, true),
		Message:      m.Message,
		Status:       m.Status.Display(),
		Newsletter:   m.Newsletter,
		IP:           m.IP,
	}
}

// FormatDate renders t as a date, or date and time when full is set.
func (r *Renderer) FormatDate(t time.Time, full bool) string {
	if t.IsZero() {
		return unknownDate
	}
	if full {
		return t.In(r.loc).Format(fullLayout)
	}
	return t.In(r.loc).Format(dateLayout)
}

// TimeAgo renders the age of t relative to now; a week or older falls back
// to the short date.
func (r *Renderer) TimeAgo(t time.Time) string {
	if t.IsZero() {
		return unknownDate
	}
	d := r.now().Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
	return r.FormatDate(t, false)
}

// Preview truncates text to the first 100 characters, adding "..." when
// something was cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "..."
}

// NotificationBody is the body of a new-message notification.
func NotificationBody(m *model.ContactMessage) string {
	body := m.Message
	if utf8.RuneCountInString(body) > previewRunes {
		body = string([]rune(body)[:previewRunes])
	}
	return m.Name + ": " + body + "..."
}
