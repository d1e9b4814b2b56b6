package access

import (
	"context"

	"github.com/careledger/careledger/pkg/principal"
)

type GrantRepository interface {
	// Upsert creates the grant or refreshes relationship and timestamp on an
	// existing one. Granting twice is idempotent.
	Upsert(ctx context.Context, g *Grant) error
	Get(ctx context.Context, patient, member principal.Principal) (*Grant, error)
	// Delete removes the grant; NotFound if none exists.
	Delete(ctx context.Context, patient, member principal.Principal) error
	ListByPatient(ctx context.Context, patient principal.Principal) ([]*Grant, error)
}
