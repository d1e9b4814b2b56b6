// Package custody owns cases, records and report refs. Writes are clinical
// authorship (doctor-gated except report attachment); reads here are
// unguarded and must stay behind the access gateway.
package custody

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/domain/activity"
	"github.com/careledger/careledger/internal/domain/identity"
	"github.com/careledger/careledger/internal/platform/db"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

// RoleDirectory resolves principal roles. Satisfied by *identity.Service.
type RoleDirectory interface {
	GetRole(ctx context.Context, p principal.Principal) (identity.Role, error)
}

// ActivityLogger appends entries to the activity log. Satisfied by
// *activity.Service.
type ActivityLogger interface {
	Append(ctx context.Context, req activity.NewEntry) (*activity.Entry, error)
}

type Service struct {
	repo     Repository
	roles    RoleDirectory
	activity ActivityLogger
	pool     *pgxpool.Pool
	log      zerolog.Logger
}

func NewService(repo Repository, roles RoleDirectory, act ActivityLogger, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{repo: repo, roles: roles, activity: act, pool: pool, log: log.With().Str("component", "custody").Logger()}
}

// CreateCase opens a new case for patient, authored by the calling doctor.
func (s *Service) CreateCase(ctx context.Context, doctor, patient principal.Principal, title string) (*Case, error) {
	if err := s.requireRole(ctx, doctor, identity.RoleDoctor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(title) == "" {
		return nil, errs.InvalidInput("case title is required")
	}
	patientRole, err := s.roles.GetRole(ctx, patient)
	if err != nil {
		return nil, err
	}
	if patientRole != identity.RolePatient {
		return nil, errs.InvalidInput("principal %s is not a registered patient", patient.Short())
	}

	c := &Case{Patient: patient, CreatedBy: doctor, Title: title, IsOngoing: true}
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		if err := s.repo.CreateCase(ctx, c); err != nil {
			return err
		}
		_, err := s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeCaseCreated,
			Description: fmt.Sprintf("case %d (%s) opened for %s", c.ID, c.Title, patient.Short()),
			Actor:       doctor,
			CaseID:      c.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("case_id", c.ID).Msg("case created")
	return c, nil
}

// AddRecord appends a clinical record to an ongoing case. The record is
// immutable once written; a non-empty prescription or medications field
// additionally marks a prescription change in the activity log.
func (s *Service) AddRecord(ctx context.Context, doctor principal.Principal, caseID int64, in RecordInput) (*Record, error) {
	if err := s.requireRole(ctx, doctor, identity.RoleDoctor); err != nil {
		return nil, err
	}
	if in.isEmpty() {
		return nil, errs.InvalidInput("record must carry at least one clinical field")
	}

	rec := &Record{
		CaseID:       caseID,
		Doctor:       doctor,
		Symptoms:     in.Symptoms,
		Cause:        in.Cause,
		Inference:    in.Inference,
		Prescription: in.Prescription,
		Advices:      in.Advices,
		Medications:  in.Medications,
	}
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		c, err := s.repo.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		if !c.IsOngoing {
			return errs.InvalidState("case %d is closed", caseID)
		}
		if err := s.repo.CreateRecord(ctx, rec); err != nil {
			return err
		}
		if _, err := s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeRecordAdded,
			Description: fmt.Sprintf("record %d added to case %d", rec.ID, caseID),
			Actor:       doctor,
			CaseID:      caseID,
			RecordID:    rec.ID,
		}); err != nil {
			return err
		}
		if in.Prescription != "" || in.Medications != "" {
			if _, err := s.activity.Append(ctx, activity.NewEntry{
				Type:        activity.TypePrescriptionUpdated,
				Description: fmt.Sprintf("prescription updated on case %d", caseID),
				Actor:       doctor,
				CaseID:      caseID,
				RecordID:    rec.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AddReport attaches an opaque content ref to an ongoing case. Any
// registered principal may attach; unregistered callers are denied.
func (s *Service) AddReport(ctx context.Context, actor principal.Principal, caseID int64, contentRef string) (*Report, error) {
	if actor.IsZero() {
		return nil, errs.Unauthenticated("caller required")
	}
	role, err := s.roles.GetRole(ctx, actor)
	if err != nil {
		return nil, err
	}
	if role == identity.RoleUnset {
		return nil, errs.AccessDenied("principal %s is not registered", actor.Short())
	}
	if strings.TrimSpace(contentRef) == "" {
		return nil, errs.InvalidInput("content_ref is required")
	}

	rep := &Report{CaseID: caseID, ContentRef: contentRef, AddedBy: actor}
	err = db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		c, err := s.repo.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		if !c.IsOngoing {
			return errs.InvalidState("case %d is closed", caseID)
		}
		if err := s.repo.AppendReport(ctx, rep); err != nil {
			return err
		}
		_, err = s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeReportAdded,
			Description: fmt.Sprintf("report attached to case %d", caseID),
			Actor:       actor,
			CaseID:      caseID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// CloseCase ends an episode of care. Any registered doctor may close a case,
// not only the one who opened it or authored its records; closure is an
// administrative end-of-episode action rather than an authorship one. One-way:
// closing a closed case fails with InvalidState and leaves no trace.
func (s *Service) CloseCase(ctx context.Context, doctor principal.Principal, caseID int64) (*Case, error) {
	if err := s.requireRole(ctx, doctor, identity.RoleDoctor); err != nil {
		return nil, err
	}

	var closed *Case
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		c, err := s.repo.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		if !c.IsOngoing {
			return errs.InvalidState("case %d is already closed", caseID)
		}
		if err := s.repo.SetClosed(ctx, caseID); err != nil {
			return err
		}
		if _, err := s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeCaseClosed,
			Description: fmt.Sprintf("case %d closed", caseID),
			Actor:       doctor,
			CaseID:      caseID,
		}); err != nil {
			return err
		}
		if _, err := s.activity.Append(ctx, activity.NewEntry{
			Type:        activity.TypeAppointmentCompleted,
			Description: fmt.Sprintf("episode of care for case %d completed", caseID),
			Actor:       doctor,
			CaseID:      caseID,
		}); err != nil {
			return err
		}
		c2, err := s.repo.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		closed = c2
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// Unguarded reads. The access gateway is the only sanctioned caller for
// anything patient-facing.

func (s *Service) GetCase(ctx context.Context, id int64) (*Case, error) {
	return s.repo.GetCase(ctx, id)
}

func (s *Service) GetRecord(ctx context.Context, id int64) (*Record, error) {
	return s.repo.GetRecord(ctx, id)
}

func (s *Service) ListCasesForPatient(ctx context.Context, patient principal.Principal) ([]*Case, error) {
	return s.repo.ListCasesByPatient(ctx, patient)
}

func (s *Service) ListCaseIDsForPatient(ctx context.Context, patient principal.Principal) ([]int64, error) {
	return s.repo.ListCaseIDsByPatient(ctx, patient)
}

func (s *Service) ListCaseIDsForDoctor(ctx context.Context, doctor principal.Principal) ([]int64, error) {
	return s.repo.ListCaseIDsByDoctor(ctx, doctor)
}

func (s *Service) ListRecords(ctx context.Context, caseID int64) ([]*Record, error) {
	return s.repo.ListRecordsByCase(ctx, caseID)
}

func (s *Service) ListReports(ctx context.Context, caseID int64) ([]*Report, error) {
	return s.repo.ListReportsByCase(ctx, caseID)
}

// HasRecordByDoctorForPatient backs the clinician continuity rule in the
// access gateway.
func (s *Service) HasRecordByDoctorForPatient(ctx context.Context, doctor, patient principal.Principal) (bool, error) {
	return s.repo.HasRecordByDoctorForPatient(ctx, doctor, patient)
}

func (s *Service) requireRole(ctx context.Context, p principal.Principal, want identity.Role) error {
	if p.IsZero() {
		return errs.Unauthenticated("caller required")
	}
	role, err := s.roles.GetRole(ctx, p)
	if err != nil {
		return err
	}
	if role != want {
		return errs.AccessDenied("principal %s is not a %s", p.Short(), want)
	}
	return nil
}
