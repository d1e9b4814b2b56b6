package activity

import (
	"context"

	"github.com/careledger/careledger/pkg/principal"
)

type Repository interface {
	// Append stores e, assigning its monotonic ID and RecordedAt.
	Append(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id int64) (*Entry, error)
	// ListVisible returns the most recent visible entries, newest first.
	ListVisible(ctx context.Context, limit int) ([]*Entry, error)
	ListVisibleByActor(ctx context.Context, actor principal.Principal, limit int) ([]*Entry, error)
	SetVisibility(ctx context.Context, id int64, visible bool) error
}
