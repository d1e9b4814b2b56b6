package identity

import (
	"context"

	"github.com/careledger/careledger/pkg/principal"
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByPrincipal(ctx context.Context, p principal.Principal) (*Account, error)
	UpdateProfile(ctx context.Context, p principal.Principal, profile Profile) error
	UpdatePasscodeDigest(ctx context.Context, p principal.Principal, digest string) error
}
