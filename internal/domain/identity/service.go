// Package identity is the role and passcode registry. A principal registers
// exactly once, choosing a role that is immutable afterward; the passcode
// gates family-access grants and the passcode fallback profile read.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/domain/activity"
	"github.com/careledger/careledger/internal/platform/db"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

const minPasscodeLen = 4

// ActivityLogger appends entries to the activity log. Satisfied by
// *activity.Service; narrowed here so tests can record appends in memory.
type ActivityLogger interface {
	Append(ctx context.Context, req activity.NewEntry) (*activity.Entry, error)
}

type Service struct {
	repo     Repository
	activity ActivityLogger
	pool     *pgxpool.Pool
	log      zerolog.Logger
}

func NewService(repo Repository, act ActivityLogger, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{repo: repo, activity: act, pool: pool, log: log.With().Str("component", "identity").Logger()}
}

// RegisterRequest is the one-shot registration payload. The caller principal
// comes from the request context, never from here.
type RegisterRequest struct {
	Role     Role    `json:"role"`
	Profile  Profile `json:"profile"`
	Passcode string  `json:"passcode"`
}

// Register creates the caller's account. Role assignment is one-shot: a
// second registration for the same principal fails with InvalidState no
// matter which role it asks for.
func (s *Service) Register(ctx context.Context, caller principal.Principal, req RegisterRequest) (*Account, error) {
	if caller.IsZero() {
		return nil, errs.Unauthenticated("caller required")
	}
	if !registrableRoles[req.Role] {
		return nil, errs.InvalidInput("role %q is not registrable", req.Role)
	}
	if len(req.Passcode) < minPasscodeLen {
		return nil, errs.InvalidInput("passcode must be at least %d characters", minPasscodeLen)
	}
	if req.Profile.FullName == "" {
		return nil, errs.InvalidInput("full_name is required")
	}

	digest, err := hashPasscode(req.Passcode)
	if err != nil {
		return nil, fmt.Errorf("hashing passcode: %w", err)
	}

	a := &Account{
		Principal:      caller,
		Role:           req.Role,
		Profile:        req.Profile,
		PasscodeDigest: digest,
	}
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if existing, err := s.repo.GetByPrincipal(ctx, caller); err == nil && existing != nil {
			return errs.InvalidState("principal %s is already registered", caller.Short())
		} else if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		if a.Role == RolePatient {
			_, err := s.activity.Append(ctx, activity.NewEntry{
				Type:        activity.TypePatientRegistered,
				Description: fmt.Sprintf("patient %s registered", caller.Short()),
				Actor:       caller,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("principal", string(caller)).Str("role", string(a.Role)).Msg("account registered")
	return a, nil
}

// GetRole resolves a principal's role. Unknown principals resolve to
// RoleUnset without error; callers branching on role must treat RoleUnset as
// no authority.
func (s *Service) GetRole(ctx context.Context, p principal.Principal) (Role, error) {
	a, err := s.repo.GetByPrincipal(ctx, p)
	if errors.Is(err, errs.ErrNotFound) {
		return RoleUnset, nil
	}
	if err != nil {
		return RoleUnset, err
	}
	return a.Role, nil
}

// GetAccount returns the stored account. The passcode digest stays internal
// to the struct's json encoding.
func (s *Service) GetAccount(ctx context.Context, p principal.Principal) (*Account, error) {
	return s.repo.GetByPrincipal(ctx, p)
}

// VerifyPasscode checks a candidate against the stored digest. Unknown
// principals and mismatches both fail with Unauthenticated; the two cases
// are indistinguishable to the caller.
func (s *Service) VerifyPasscode(ctx context.Context, p principal.Principal, candidate string) error {
	a, err := s.repo.GetByPrincipal(ctx, p)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.Unauthenticated("passcode verification failed for %s", p.Short())
	}
	if err != nil {
		return err
	}
	if !verifyPasscode(a.PasscodeDigest, candidate) {
		return errs.Unauthenticated("passcode verification failed for %s", p.Short())
	}
	return nil
}

// UpdateProfile replaces the caller's own demographic fields. Role and
// passcode are untouched.
func (s *Service) UpdateProfile(ctx context.Context, caller principal.Principal, profile Profile) (*Account, error) {
	if caller.IsZero() {
		return nil, errs.Unauthenticated("caller required")
	}
	if profile.FullName == "" {
		return nil, errs.InvalidInput("full_name is required")
	}

	var updated *Account
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.UpdateProfile(ctx, caller, profile); err != nil {
			return err
		}
		a, err := s.repo.GetByPrincipal(ctx, caller)
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RotatePasscode replaces the caller's passcode after verifying the current
// one.
func (s *Service) RotatePasscode(ctx context.Context, caller principal.Principal, current, next string) error {
	if caller.IsZero() {
		return errs.Unauthenticated("caller required")
	}
	if len(next) < minPasscodeLen {
		return errs.InvalidInput("passcode must be at least %d characters", minPasscodeLen)
	}

	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.VerifyPasscode(ctx, caller, current); err != nil {
			return err
		}
		digest, err := hashPasscode(next)
		if err != nil {
			return fmt.Errorf("hashing passcode: %w", err)
		}
		return s.repo.UpdatePasscodeDigest(ctx, caller, digest)
	})
}
