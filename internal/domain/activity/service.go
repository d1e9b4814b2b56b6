// Package activity keeps the append-only ledger of observable actions. Other
// domain services append entries inside the same transaction as the state
// change they describe, so an action and its trace commit or vanish together.
package activity

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careledger/careledger/internal/platform/db"
	"github.com/careledger/careledger/internal/platform/errs"
	"github.com/careledger/careledger/pkg/principal"
)

const defaultListLimit = 100

type Service struct {
	repo Repository
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewService(repo Repository, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{repo: repo, pool: pool, log: log.With().Str("component", "activity").Logger()}
}

// Append records one action. New entries start visible; only the actor may
// later hide them. Payload fields never identify the actor, the context does.
func (s *Service) Append(ctx context.Context, req NewEntry) (*Entry, error) {
	if !validTypes[req.Type] {
		return nil, errs.InvalidInput("unknown activity type %q", req.Type)
	}
	if req.Actor.IsZero() {
		return nil, errs.InvalidInput("activity entry requires an actor")
	}

	e := &Entry{
		Type:        req.Type,
		Description: req.Description,
		Actor:       req.Actor,
		CaseID:      req.CaseID,
		RecordID:    req.RecordID,
		IsVisible:   true,
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return nil, err
	}
	s.log.Debug().Int64("entry_id", e.ID).Str("type", string(e.Type)).Msg("activity appended")
	return e, nil
}

// List returns the newest visible entries across all actors.
func (s *Service) List(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	return s.repo.ListVisible(ctx, limit)
}

// ListForActor returns the newest visible entries performed by actor.
func (s *Service) ListForActor(ctx context.Context, actor principal.Principal, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultListLimit
	}
	return s.repo.ListVisibleByActor(ctx, actor, limit)
}

// ToggleVisibility flips the visibility of one entry. Only the entry's own
// actor may do this; anyone else is denied and the entry is untouched. The
// entry body is immutable either way.
func (s *Service) ToggleVisibility(ctx context.Context, caller principal.Principal, id int64) (*Entry, error) {
	if caller.IsZero() {
		return nil, errs.Unauthenticated("caller required")
	}

	var toggled *Entry
	err := db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		e, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if e.Actor != caller {
			return errs.AccessDenied("only the actor of entry %d may change its visibility", id)
		}
		if err := s.repo.SetVisibility(ctx, id, !e.IsVisible); err != nil {
			return err
		}
		e.IsVisible = !e.IsVisible
		toggled = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toggled, nil
}
