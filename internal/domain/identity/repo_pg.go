package identity

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

const accountCols = `principal, role, full_name, date_of_birth, contact_number, postal_address,
	allergies, weight, height, passcode_digest, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, a *Account) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO account (principal, role, full_name, date_of_birth, contact_number, postal_address,
			allergies, weight, height, passcode_digest)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.Principal, a.Role, a.Profile.FullName, a.Profile.DateOfBirth, a.Profile.ContactNumber,
		a.Profile.PostalAddress, a.Profile.Allergies, a.Profile.Weight, a.Profile.Height,
		a.PasscodeDigest,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByPrincipal(ctx context.Context, p principal.Principal) (*Account, error) {
	a, err := scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE principal = $1`, p))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("account %s", p.Short())
	}
	return a, err
}

func (r *repoPG) UpdateProfile(ctx context.Context, p principal.Principal, profile Profile) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE account SET full_name=$2, date_of_birth=$3, contact_number=$4, postal_address=$5,
			allergies=$6, weight=$7, height=$8, updated_at=NOW()
		WHERE principal = $1`,
		p, profile.FullName, profile.DateOfBirth, profile.ContactNumber, profile.PostalAddress,
		profile.Allergies, profile.Weight, profile.Height,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("account %s", p.Short())
	}
	return nil
}

func (r *repoPG) UpdatePasscodeDigest(ctx context.Context, p principal.Principal, digest string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE account SET passcode_digest=$2, updated_at=NOW() WHERE principal = $1`, p, digest)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("account %s", p.Short())
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.Principal, &a.Role, &a.Profile.FullName, &a.Profile.DateOfBirth, &a.Profile.ContactNumber,
		&a.Profile.PostalAddress, &a.Profile.Allergies, &a.Profile.Weight, &a.Profile.Height,
		&a.PasscodeDigest, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
