package activity

import (
	"time"

	"github.com/careledger/careledger/pkg/principal"
)

// Type enumerates the observable actions recorded in the activity log.
type Type string

const (
	TypeCaseCreated          Type = "case_created"
	TypeRecordAdded          Type = "record_added"
	TypeReportAdded          Type = "report_added"
	TypeCaseClosed           Type = "case_closed"
	TypeRecordsAccessed      Type = "records_accessed"
	TypePrescriptionUpdated  Type = "prescription_updated"
	TypeAppointmentCompleted Type = "appointment_completed"
	TypeGrantCreated         Type = "family_grant_created"
	TypeGrantRevoked         Type = "family_grant_revoked"
	TypePatientRegistered    Type = "patient_registration"
)

var validTypes = map[Type]bool{
	TypeCaseCreated:          true,
	TypeRecordAdded:          true,
	TypeReportAdded:          true,
	TypeCaseClosed:           true,
	TypeRecordsAccessed:      true,
	TypePrescriptionUpdated:  true,
	TypeAppointmentCompleted: true,
	TypeGrantCreated:         true,
	TypeGrantRevoked:         true,
	TypePatientRegistered:    true,
}

// Entry is one observed action. Everything except IsVisible is immutable
// once appended; visibility may be flipped by the entry's actor only.
type Entry struct {
	ID          int64               `db:"id" json:"id"`
	Type        Type                `db:"activity_type" json:"activity_type"`
	Description string              `db:"description" json:"description"`
	Actor       principal.Principal `db:"actor" json:"actor"`
	CaseID      int64               `db:"related_case_id" json:"related_case_id,omitempty"`
	RecordID    int64               `db:"related_record_id" json:"related_record_id,omitempty"`
	IsVisible   bool                `db:"is_visible" json:"is_visible"`
	RecordedAt  time.Time           `db:"recorded_at" json:"recorded_at"`
}

// NewEntry is the append request. IDs and timestamps are assigned by the log.
type NewEntry struct {
	Type        Type
	Description string
	Actor       principal.Principal
	CaseID      int64
	RecordID    int64
}
