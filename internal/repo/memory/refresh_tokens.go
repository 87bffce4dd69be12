package memory

import (
	"context"
	"time"

	"github.com/geocoder89/plansync/internal/auth"
)

type RefreshTokensRepo struct {
	s *Store
}

func NewRefreshTokensRepo(s *Store) *RefreshTokensRepo {
	return &RefreshTokensRepo{s: s}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row auth.RefreshToken) error {
	r.s.mu.Lock()
	r.s.refresh[row.ID] = row
	r.s.mu.Unlock()
	return nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, oldID, presentedHash string, next auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.refresh[oldID]
	if !ok {
		return auth.ErrRefreshTokenNotFound
	}

	now := time.Now().UTC()
	if err := row.CheckRotatable(presentedHash, now); err != nil {
		return err
	}

	nextID := next.ID
	row.RevokedAt = &now
	row.ReplacedBy = &nextID
	r.s.refresh[oldID] = row
	r.s.refresh[next.ID] = next

	return nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.refresh[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	row.RevokedAt = &now
	r.s.refresh[id] = row
	return nil
}
