package custody

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careledger/careledger/internal/platform/db"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const caseCols = `id, patient, created_by, title, is_ongoing, created_at, closed_at`

func (r *repoPG) CreateCase(ctx context.Context, c *Case) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_case (patient, created_by, title, is_ongoing)
		VALUES ($1,$2,$3,TRUE)
		RETURNING id, created_at`,
		c.Patient, c.CreatedBy, c.Title,
	).Scan(&c.ID, &c.CreatedAt)
}

func (r *repoPG) GetCase(ctx context.Context, id int64) (*Case, error) {
	c, err := scanCase(r.conn(ctx).QueryRow(ctx, `SELECT `+caseCols+` FROM medical_case WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("case %d", id)
	}
	return c, err
}

func (r *repoPG) ListCasesByPatient(ctx context.Context, patient principal.Principal) ([]*Case, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+caseCols+` FROM medical_case WHERE patient = $1 ORDER BY id`, patient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *repoPG) ListCaseIDsByPatient(ctx context.Context, patient principal.Principal) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM medical_case WHERE patient = $1 ORDER BY id`, patient)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *repoPG) ListCaseIDsByDoctor(ctx context.Context, doctor principal.Principal) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM medical_case WHERE created_by = $1 ORDER BY id`, doctor)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func (r *repoPG) SetClosed(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_case SET is_ongoing = FALSE, closed_at = NOW()
		WHERE id = $1 AND is_ongoing`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.InvalidState("case %d is not ongoing", id)
	}
	return nil
}

const recordCols = `id, case_id, doctor, symptoms, cause, inference, prescription, advices, medications, created_at`

func (r *repoPG) CreateRecord(ctx context.Context, rec *Record) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (case_id, doctor, symptoms, cause, inference, prescription, advices, medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at`,
		rec.CaseID, rec.Doctor, rec.Symptoms, rec.Cause, rec.Inference, rec.Prescription, rec.Advices, rec.Medications,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *repoPG) GetRecord(ctx context.Context, id int64) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("record %d", id)
	}
	return rec, err
}

func (r *repoPG) ListRecordsByCase(ctx context.Context, caseID int64) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM medical_record WHERE case_id = $1 ORDER BY id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *repoPG) HasRecordByDoctorForPatient(ctx context.Context, doctor, patient principal.Principal) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM medical_record mr
			JOIN medical_case mc ON mc.id = mr.case_id
			WHERE mr.doctor = $1 AND mc.patient = $2
		)`, doctor, patient).Scan(&exists)
	return exists, err
}

func (r *repoPG) AppendReport(ctx context.Context, rep *Report) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO case_report (case_id, content_ref, added_by)
		VALUES ($1,$2,$3)
		RETURNING id, added_at`,
		rep.CaseID, rep.ContentRef, rep.AddedBy,
	).Scan(&rep.ID, &rep.AddedAt)
}

func (r *repoPG) ListReportsByCase(ctx context.Context, caseID int64) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, case_id, content_ref, added_by, added_at
		FROM case_report WHERE case_id = $1 ORDER BY id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		var rep Report
		if err := rows.Scan(&rep.ID, &rep.CaseID, &rep.ContentRef, &rep.AddedBy, &rep.AddedAt); err != nil {
			return nil, err
		}
		reports = append(reports, &rep)
	}
	return reports, rows.Err()
}

func scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.Patient, &c.CreatedBy, &c.Title, &c.IsOngoing, &c.CreatedAt, &c.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.CaseID, &rec.Doctor, &rec.Symptoms, &rec.Cause, &rec.Inference, &rec.Prescription, &rec.Advices, &rec.Medications, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
