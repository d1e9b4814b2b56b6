package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careledger/careledger/internal/platform/db"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

type grantRepoPG struct {
	pool *pgxpool.Pool
}

func NewGrantRepo(pool *pgxpool.Pool) GrantRepository {
	return &grantRepoPG{pool: pool}
}

func (r *grantRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *grantRepoPG) Upsert(ctx context.Context, g *Grant) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO family_grant (patient, member, relationship)
		VALUES ($1,$2,$3)
		ON CONFLICT (patient, member)
		DO UPDATE SET relationship = EXCLUDED.relationship, granted_at = NOW()
		RETURNING granted_at`,
		g.Patient, g.Member, g.Relationship,
	).Scan(&g.GrantedAt)
}

func (r *grantRepoPG) Get(ctx context.Context, patient, member principal.Principal) (*Grant, error) {
	var g Grant
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient, member, relationship, granted_at
		FROM family_grant WHERE patient = $1 AND member = $2`, patient, member,
	).Scan(&g.Patient, &g.Member, &g.Relationship, &g.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("no grant from %s to %s", patient.Short(), member.Short())
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *grantRepoPG) Delete(ctx context.Context, patient, member principal.Principal) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM family_grant WHERE patient = $1 AND member = $2`, patient, member)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("no grant from %s to %s", patient.Short(), member.Short())
	}
	return nil
}

func (r *grantRepoPG) ListByPatient(ctx context.Context, patient principal.Principal) ([]*Grant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient, member, relationship, granted_at
		FROM family_grant WHERE patient = $1 ORDER BY granted_at`, patient)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Patient, &g.Member, &g.Relationship, &g.GrantedAt); err != nil {
			return nil, err
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}
