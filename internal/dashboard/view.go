package dashboard

import (
	"sort"
	"strings"

	"github.com/portfolio-contact/backend/internal/model"
	"golang.org/x/text/cases"
)

// SortOrder selects the timestamp direction of a projected view.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Filter holds the dashboard's filter controls.
type Filter struct {
	Status string    `json:"status"`
	Search string    `json:"search"`
	Sort   SortOrder `json:"sort"`
}

// DefaultFilter shows everything, newest first.
func DefaultFilter() Filter {
	return Filter{Status: StatusAll, Sort: SortNewest}
}

// ParseFilter normalizes raw control values (typically query parameters).
// Empty status means all; any sort other than "oldest" means newest.
func ParseFilter(status, search, sortBy string) Filter {
	f := DefaultFilter()
	if s := strings.TrimSpace(status); s != "" {
		f.Status = s
	}
	f.Search = search
	if SortOrder(strings.TrimSpace(sortBy)) == SortOldest {
		f.Sort = SortOldest
	}
	return f
}

// Project derives the displayed sequence from the local messages. It never
// modifies its input and returns a fresh slice sharing the message pointers.
func Project(messages []*model.ContactMessage, f Filter) []*model.ContactMessage {
	var term string
	var fold cases.Caser
	if f.Search != "" {
		// Casers are stateful; one per call keeps Project safe for concurrent use.
		fold = cases.Fold()
		term = fold.String(f.Search)
	}

	out := make([]*model.ContactMessage, 0, len(messages))
	for _, m := range messages {
		if f.Status != "" && f.Status != StatusAll && string(m.Status) != f.Status {
			continue
		}
		if term != "" && !matches(fold, m, term) {
			continue
		}
		out = append(out, m)
	}

	if f.Sort == SortOldest {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.Before(out[j].Timestamp)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Timestamp.After(out[j].Timestamp)
		})
	}
	return out
}

// matches is an OR over name, email, message and subject code.
func matches(fold cases.Caser, m *model.ContactMessage, term string) bool {
	for _, field := range [...]string{m.Name, m.Email, m.Message, m.Subject} {
		if strings.Contains(fold.String(field), term) {
			return true
		}
	}
	return false
}

// Counters are the summary figures shown above the list.
type Counters struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// Count computes counters over the full local sequence, not the view.
func Count(messages []*model.ContactMessage) Counters {
	c := Counters{Total: len(messages)}
	for _, m := range messages {
		if m.Status == model.StatusUnread {
			c.Unread++
		}
	}
	return c
}
