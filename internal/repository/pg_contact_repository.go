package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portfolio-contact/backend/internal/model"
)

// ContactsChannel is the LISTEN/NOTIFY channel fed by the contacts trigger
// (see migrations/002_contacts_notify.up.sql).
const ContactsChannel = "contacts_changes"

// PgContactRepository is the PostgreSQL implementation of ContactRepository.
type PgContactRepository struct {
	pool *pgxpool.Pool
}

// NewPgContactRepository creates a PgContactRepository backed by the given pool.
func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

// Ensure PgContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*PgContactRepository)(nil)

const contactSelectCols = `id, name, email, phone, subject, message, newsletter, status, timestamp, ip`

func scanContact(scan func(...any) error) (*model.ContactMessage, error) {
	var m model.ContactMessage
	var status string
	if err := scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Message, &m.Newsletter, &status, &m.Timestamp, &m.IP); err != nil {
		return nil, err
	}
	// Stored verbatim; unknown values surface as StatusUnknown only at display time.
	m.Status = model.Status(status)
	return &m, nil
}

// Ping は DB 接続を確認する（DB インターフェース実装）
func (r *PgContactRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Save inserts a new contacts row and populates msg.ID and msg.Timestamp
// from the database RETURNING clause. The timestamp is always server-assigned.
func (r *PgContactRepository) Save(ctx context.Context, msg *model.ContactMessage) error {
	if !msg.Status.Valid() {
		return model.ErrInvalidStatus
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO contacts (name, email, phone, subject, message, newsletter, status, ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, timestamp`,
		msg.Name, msg.Email, msg.Phone, msg.Subject, msg.Message, msg.Newsletter, string(msg.Status), msg.IP,
	).Scan(&msg.ID, &msg.Timestamp)
}

// List returns contact messages ordered newest first, optionally filtered by
// status and paginated. Limit 0 reads the whole collection.
func (r *PgContactRepository) List(ctx context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error) {
	var args []any
	where := ""

	status := strings.TrimSpace(opts.Status)
	if status != "" && status != "all" {
		args = append(args, status)
		where = "WHERE status = $1"
	}

	query := `SELECT ` + contactSelectCols + ` FROM contacts ` + where +
		` ORDER BY timestamp DESC, seq DESC`
	if opts.Limit > 0 {
		args = append(args, opts.Limit, opts.Offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*model.ContactMessage
	for rows.Next() {
		m, err := scanContact(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Get returns the message with the given id, or ErrNotFound.
func (r *PgContactRepository) Get(ctx context.Context, id string) (*model.ContactMessage, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contactSelectCols+` FROM contacts WHERE id = $1`, id)
	m, err := scanContact(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// UpdateStatus is a partial update touching only the status column.
func (r *PgContactRepository) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}
	tag, err := r.pool.Exec(ctx, `UPDATE contacts SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the message with the given id.
func (r *PgContactRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// notifyPayload is the JSON body emitted by the contacts trigger.
type notifyPayload struct {
	Op string `json:"op"`
	ID string `json:"id"`
}

// Subscribe parks one pooled connection on LISTEN and converts trigger
// notifications into changes. Inserted and updated rows are re-read so the
// change carries the full record; rows that vanished in between are skipped
// because their DELETE notification follows.
func (r *PgContactRepository) Subscribe(ctx context.Context) (<-chan model.ContactChange, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ContactsChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", ContactsChannel, err)
	}

	out := make(chan model.ContactChange, 64)
	go func() {
		defer close(out)
		defer conn.Release()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("contacts subscription failed", "error", err)
				}
				return
			}

			change, ok := r.decodeNotification(ctx, n.Payload)
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *PgContactRepository) decodeNotification(ctx context.Context, payload string) (model.ContactChange, bool) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.ID == "" {
		slog.Warn("ignoring malformed contacts notification", "payload", payload)
		return model.ContactChange{}, false
	}

	var kind model.ChangeKind
	switch p.Op {
	case "INSERT":
		kind = model.ChangeAdded
	case "UPDATE":
		kind = model.ChangeModified
	case "DELETE":
		return model.ContactChange{Kind: model.ChangeRemoved, ID: p.ID}, true
	default:
		slog.Warn("ignoring unknown contacts notification op", "op", p.Op)
		return model.ContactChange{}, false
	}

	msg, err := r.Get(ctx, p.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("fetch changed contact failed", "id", p.ID, "error", err)
		}
		return model.ContactChange{}, false
	}
	return model.ContactChange{Kind: kind, ID: p.ID, Message: msg}, true
}
