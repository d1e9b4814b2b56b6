package activity

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

const entryCols = `id, activity_type, description, actor, related_case_id, related_record_id, is_visible, recorded_at`

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO activity_log (activity_type, description, actor, related_case_id, related_record_id, is_visible)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, recorded_at`,
		e.Type, e.Description, e.Actor, e.CaseID, e.RecordID, e.IsVisible,
	).Scan(&e.ID, &e.RecordedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM activity_log WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("activity entry %d", id)
	}
	return e, err
}

func (r *repoPG) ListVisible(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM activity_log
		WHERE is_visible ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *repoPG) ListVisibleByActor(ctx context.Context, actor principal.Principal, limit int) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM activity_log
		WHERE is_visible AND actor = $1 ORDER BY id DESC LIMIT $2`, actor, limit)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *repoPG) SetVisibility(ctx context.Context, id int64, visible bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE activity_log SET is_visible = $2 WHERE id = $1`, id, visible)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("activity entry %d", id)
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Type, &e.Description, &e.Actor, &e.CaseID, &e.RecordID, &e.IsVisible, &e.RecordedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
