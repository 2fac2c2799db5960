package dashboard

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/portfolio-contact/backend/internal/model"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatMbox = "mbox"
)

var csvHeader = []string{"Name", "Email", "Phone", "Subject", "Message", "Status", "Date", "Newsletter Opt-in"}

var csvQuoter = strings.NewReplacer(`"`, `""`)

// ExportFilename names an export file after the export date in loc.
func ExportFilename(now time.Time, loc *time.Location, format string) string {
	if loc == nil {
		loc = time.UTC
	}
	return "messages_" + now.In(loc).Format("2006-01-02") + "." + format
}

// ExportCSV writes messages (normally the filtered view) as CSV. The header
// row is bare; every value is quoted with embedded quotes doubled. Rows are
// separated by "\n" with no trailing newline.
func (r *Renderer) ExportCSV(w io.Writer, messages []*model.ContactMessage) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(csvHeader, ","))
	for _, m := range messages {
		bw.WriteByte('\n')
		for i, v := range r.csvRecord(m) {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(csvQuoter.Replace(v))
			bw.WriteByte('"')
		}
	}
	return bw.Flush()
}

func (r *Renderer) csvRecord(m *model.ContactMessage) []string {
	return []string{
		m.Name,
		m.Email,
		m.Phone,
		model.SubjectLabel(m.Subject),
		m.Message,
		string(m.Status),
		r.FormatDate(m.Timestamp, true),
		yesNo(m.Newsletter),
	}
}

// ExportMbox writes messages as an mbox mailbox, one message per contact.
func (r *Renderer) ExportMbox(w io.Writer, messages []*model.ContactMessage) error {
	mw := mbox.NewWriter(w)
	for _, m := range messages {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Unix(0, 0)
		}
		body, err := mw.CreateMessage(singleLine(m.Email), ts.UTC())
		if err != nil {
			return fmt.Errorf("create mbox message %s: %w", m.ID, err)
		}
		if err := r.writeMboxMessage(body, m, ts); err != nil {
			return fmt.Errorf("write mbox message %s: %w", m.ID, err)
		}
	}
	return mw.Close()
}

func (r *Renderer) writeMboxMessage(w io.Writer, m *model.ContactMessage, ts time.Time) error {
	from := (&mail.Address{Name: singleLine(m.Name), Address: singleLine(m.Email)}).String()

	var b strings.Builder
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(singleLine(v))
		b.WriteString("\n")
	}
	header("From", from)
	header("Reply-To", from)
	header("Subject", mime.QEncoding.Encode("utf-8", model.SubjectLabel(m.Subject)))
	header("Date", ts.In(r.loc).Format(time.RFC1123Z))
	header("Message-ID", "<"+m.ID+"@contacts.invalid>")
	header("X-Contact-Status", string(m.Status))
	header("X-Contact-Newsletter", yesNo(m.Newsletter))
	if m.Phone != "" {
		header("X-Contact-Phone", m.Phone)
	}
	if m.IP != "" {
		header("X-Contact-IP", m.IP)
	}
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=utf-8")
	b.WriteString("\n")
	b.WriteString(m.Message)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// singleLine flattens stored values that end up in a header line. Line
// breaks there would start new headers or end the header block.
func singleLine(s string) string {
	return lineBreaks.Replace(s)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
