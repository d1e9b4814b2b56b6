// Package access is the authorization layer: family grants plus the single
// read gateway every patient-data read must pass through. The authorization
// question (HasAccess) is a pure predicate; the gateway is the only place
// that both answers it and touches data, and every successful read leaves a
// records_accessed trace.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/domain/activity"
	"github.com/careledger/careledger/internal/domain/custody"
	"github.com/careledger/careledger/internal/domain/identity"
	"github.com/careledger/careledger/internal/platform/db"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

// IdentityDirectory is the slice of the identity service the gateway needs.
type IdentityDirectory interface {
	GetRole(ctx context.Context, p principal.Principal) (identity.Role, error)
	GetAccount(ctx context.Context, p principal.Principal) (*identity.Account, error)
	VerifyPasscode(ctx context.Context, p principal.Principal, candidate string) error
}

// CaseStore is the slice of the custody service the gateway needs.
type CaseStore interface {
	GetCase(ctx context.Context, id int64) (*custody.Case, error)
	ListCasesForPatient(ctx context.Context, patient principal.Principal) ([]*custody.Case, error)
	ListRecords(ctx context.Context, caseID int64) ([]*custody.Record, error)
	ListReports(ctx context.Context, caseID int64) ([]*custody.Report, error)
	HasRecordByDoctorForPatient(ctx context.Context, doctor, patient principal.Principal) (bool, error)
}

// ActivityLogger appends entries to the activity log.
type ActivityLogger interface {
	Append(ctx context.Context, req activity.NewEntry) (*activity.Entry, error)
}

type Service struct {
	grants   GrantRepository
	ident    IdentityDirectory
	cases    CaseStore
	activity ActivityLogger
	pool     *pgxpool.Pool
	log      zerolog.Logger
}

func NewService(grants GrantRepository, ident IdentityDirectory, cases CaseStore, act ActivityLogger, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{
		grants:   grants,
		ident:    ident,
		cases:    cases,
		activity: act,
		pool:     pool,
		log:      log.With().Str("component", "access").Logger(),
	}
}

// Grant authorizes member to read patient's data. The patient proves intent
// with their passcode before anything else happens: a wrong passcode leaves
// no grant and no activity. Granting an existing member refreshes the
// relationship and timestamp; one grant, one row.
func (s *Service) Grant(ctx context.Context, patient, member principal.Principal, relationship, passcode string) (*Grant, error) {
	if err := s.ident.VerifyPasscode(ctx, patient, passcode); err != nil {
		return nil, err
	}
	if member == patient {
		return nil, errs.InvalidInput("cannot grant access to yourself")
	}
	memberRole, err := s.ident.GetRole(ctx, member)
	if err != nil {
		return nil, err
	}
	if memberRole == identity.RoleUnset {
		return nil, errs.InvalidInput("principal %s is not registered", member.Short())
	}

	g := &Grant{Patient: patient, Member: member, Relationship: relationship}
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.grants.Upsert(ctx, g); err != nil {
			return err
		}
		_, err := s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeGrantCreated,
			Description: fmt.Sprintf("family access granted to %s (%s)", member.Short(), relationship),
			Actor:       patient,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("patient", string(patient)).Str("member", string(member)).Msg("family grant created")
	return g, nil
}

// Revoke removes member's grant, passcode-gated like Grant. Revoking a
// non-existent grant is NotFound; the effect is immediate for the next read.
func (s *Service) Revoke(ctx context.Context, patient, member principal.Principal, passcode string) error {
	if err := s.ident.VerifyPasscode(ctx, patient, passcode); err != nil {
		return err
	}

	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.grants.Delete(ctx, patient, member); err != nil {
			return err
		}
		_, err := s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeGrantRevoked,
			Description: fmt.Sprintf("family access revoked for %s", member.Short()),
			Actor:       patient,
		})
		return err
	})
}

// HasAccess answers whether requester may read patient's data right now:
// the patient themself, an active family grant, or clinician continuity
// (requester authored a record in one of patient's cases). Pure predicate:
// no side effects, no caching, and any resolution failure denies.
func (s *Service) HasAccess(ctx context.Context, patient, requester principal.Principal) (bool, error) {
	if requester.IsZero() || patient.IsZero() {
		return false, nil
	}
	if requester == patient {
		return true, nil
	}

	if _, err := s.grants.Get(ctx, patient, requester); err == nil {
		return true, nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return false, err
	}

	role, err := s.ident.GetRole(ctx, requester)
	if err != nil {
		return false, err
	}
	if role == identity.RoleDoctor {
		return s.cases.HasRecordByDoctorForPatient(ctx, requester, patient)
	}
	return false, nil
}

// ListGrants returns the patient's own grant list. Owner-only.
func (s *Service) ListGrants(ctx context.Context, caller, patient principal.Principal) ([]*Grant, error) {
	if caller != patient {
		return nil, errs.AccessDenied("only the patient may list their grants")
	}
	return s.grants.ListByPatient(ctx, patient)
}

// ReadCases is the gateway read for a patient's case list. The access check
// runs before any case data is touched; a denial reads nothing and logs
// nothing. Success appends records_accessed in the same transaction as the
// read result is produced.
func (s *Service) ReadCases(ctx context.Context, requester, patient principal.Principal) ([]*custody.Case, error) {
	ok, err := s.HasAccess(ctx, patient, requester)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.AccessDenied("%s may not read cases of %s", requester.Short(), patient.Short())
	}

	var cases []*custody.Case
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		cases, err = s.cases.ListCasesForPatient(ctx, patient)
		if err != nil {
			return err
		}
		return s.logAccess(ctx, requester, fmt.Sprintf("cases of %s read", patient.Short()), 0)
	})
	if err != nil {
		return nil, err
	}
	return cases, nil
}

// ReadRecords is the gateway read for a case's records. The case resolves to
// its patient and the predicate is re-evaluated live on every call.
func (s *Service) ReadRecords(ctx context.Context, requester principal.Principal, caseID int64) ([]*custody.Record, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	ok, err := s.HasAccess(ctx, c.Patient, requester)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.AccessDenied("%s may not read records of case %d", requester.Short(), caseID)
	}

	var records []*custody.Record
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		records, err = s.cases.ListRecords(ctx, caseID)
		if err != nil {
			return err
		}
		return s.logAccess(ctx, requester, fmt.Sprintf("records of case %d read", caseID), caseID)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ReadReports is the gateway read for a case's report refs.
func (s *Service) ReadReports(ctx context.Context, requester principal.Principal, caseID int64) ([]*custody.Report, error) {
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	ok, err := s.HasAccess(ctx, c.Patient, requester)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.AccessDenied("%s may not read reports of case %d", requester.Short(), caseID)
	}

	var reports []*custody.Report
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		reports, err = s.cases.ListReports(ctx, caseID)
		if err != nil {
			return err
		}
		return s.logAccess(ctx, requester, fmt.Sprintf("reports of case %d read", caseID), caseID)
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// ReadProfileWithPasscode is the secondary access channel: anyone holding
// the patient's passcode may read the profile, with the same audit trace as
// any other gateway read. A wrong passcode fails Unauthenticated and reads
// nothing.
func (s *Service) ReadProfileWithPasscode(ctx context.Context, requester, patient principal.Principal, passcode string) (*identity.Account, error) {
	if requester.IsZero() {
		return nil, errs.Unauthenticated("caller required")
	}
	if err := s.ident.VerifyPasscode(ctx, patient, passcode); err != nil {
		return nil, err
	}

	var account *identity.Account
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		a, err := s.ident.GetAccount(ctx, patient)
		if err != nil {
			return err
		}
		account = a
		return s.logAccess(ctx, requester, fmt.Sprintf("profile of %s read via passcode", patient.Short()), 0)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) logAccess(ctx context.Context, requester principal.Principal, description string, caseID int64) error {
	_, err := s.activity.Append(ctx, activity.NewEntry{
		Type:        activity.TypeRecordsAccessed,
		Description: description,
		Actor:       requester,
		CaseID:      caseID,
	})
	return err
}
