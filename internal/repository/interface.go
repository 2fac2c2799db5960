package repository

import (
	"context"

	"github.com/portfolio-contact/backend/internal/model"
)

// DB は DB 接続の生存確認を行うインターフェース
type DB interface {
	Ping(ctx context.Context) error
}

// ContactRepository is the store capability shared by the submission path and
// the admin dashboard. Implementations assign ids and timestamps on Save and
// return List results ordered by timestamp, newest first.
type ContactRepository interface {
	DB
	Save(ctx context.Context, msg *model.ContactMessage) error
	List(ctx context.Context, opts model.ContactListOptions) ([]*model.ContactMessage, error)
	Get(ctx context.Context, id string) (*model.ContactMessage, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
	Delete(ctx context.Context, id string) error

	// Subscribe delivers incremental changes made after the call returns.
	// The channel is closed when ctx is done or the feed fails.
	Subscribe(ctx context.Context) (<-chan model.ContactChange, error)
}
