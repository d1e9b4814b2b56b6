package custody

import (
	"time"

	"github.com/careledger/careledger/pkg/principal"
)

// Case is an episode of care owned by one patient. Records and reports
// append in order while the case is ongoing; closing is one-way.
type Case struct {
	ID        int64               `db:"id" json:"id"`
	Patient   principal.Principal `db:"patient" json:"patient"`
	CreatedBy principal.Principal `db:"created_by" json:"created_by"`
	Title     string              `db:"title" json:"title"`
	IsOngoing bool                `db:"is_ongoing" json:"is_ongoing"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	ClosedAt  *time.Time          `db:"closed_at" json:"closed_at,omitempty"`
}

// Record is a clinical entry authored by one doctor. Immutable once written.
type Record struct {
	ID           int64               `db:"id" json:"id"`
	CaseID       int64               `db:"case_id" json:"case_id"`
	Doctor       principal.Principal `db:"doctor" json:"doctor"`
	Symptoms     string              `db:"symptoms" json:"symptoms,omitempty"`
	Cause        string              `db:"cause" json:"cause,omitempty"`
	Inference    string              `db:"inference" json:"inference,omitempty"`
	Prescription string              `db:"prescription" json:"prescription,omitempty"`
	Advices      string              `db:"advices" json:"advices,omitempty"`
	Medications  string              `db:"medications" json:"medications,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}

// Report is an opaque content reference attached to a case. The bytes live
// in the blob store; the ledger keeps only the ref and who attached it.
type Report struct {
	ID         int64               `db:"id" json:"id"`
	CaseID     int64               `db:"case_id" json:"case_id"`
	ContentRef string              `db:"content_ref" json:"content_ref"`
	AddedBy    principal.Principal `db:"added_by" json:"added_by"`
	AddedAt    time.Time           `db:"added_at" json:"added_at"`
}

// RecordInput is the doctor-supplied clinical payload for a new record.
type RecordInput struct {
	Symptoms     string `json:"symptoms"`
	Cause        string `json:"cause"`
	Inference    string `json:"inference"`
	Prescription string `json:"prescription"`
	Advices      string `json:"advices"`
	Medications  string `json:"medications"`
}

func (in RecordInput) isEmpty() bool {
	return in.Symptoms == "" && in.Cause == "" && in.Inference == "" &&
		in.Prescription == "" && in.Advices == "" && in.Medications == ""
}
