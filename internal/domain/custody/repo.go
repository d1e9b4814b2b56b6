package custody

import (
	"context"

	"github.com/careledger/careledger/pkg/principal"
)

type Repository interface {
	CreateCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id int64) (*Case, error)
	ListCasesByPatient(ctx context.Context, patient principal.Principal) ([]*Case, error)
	ListCaseIDsByPatient(ctx context.Context, patient principal.Principal) ([]int64, error)
	ListCaseIDsByDoctor(ctx context.Context, doctor principal.Principal) ([]int64, error)
	// SetClosed marks the case closed. The service guards the one-way rule.
	SetClosed(ctx context.Context, id int64) error

	CreateRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, id int64) (*Record, error)
	ListRecordsByCase(ctx context.Context, caseID int64) ([]*Record, error)
	// HasRecordByDoctorForPatient reports whether doctor authored at least one
	// record in any of patient's cases. Backs the clinician continuity rule.
	HasRecordByDoctorForPatient(ctx context.Context, doctor, patient principal.Principal) (bool, error)

	AppendReport(ctx context.Context, r *Report) error
	ListReportsByCase(ctx context.Context, caseID int64) ([]*Report, error)
}
