package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
	"github.com/a112660307-droid/reward-card/internal/cardsvc/store"
)

// IdentityService mints and looks up anonymous session identities.
type IdentityService struct {
	sessionStore *store.SessionStore
}

func NewIdentityService(sessionStore *store.SessionStore) *IdentityService {
	return &IdentityService{sessionStore: sessionStore}
}

// Mint creates a fresh anonymous identity. Every browser session calls this
// once and keeps the uid for its lifetime.
func (s *IdentityService) Mint(ctx context.Context) (*models.Session, error) {
	sess, err := s.sessionStore.CreateSession(ctx, uuid.New().String())
	if err != nil {
		return nil, fmt.Errorf("mint identity: %w", err)
	}
	return sess, nil
}

// Lookup returns the session for uid, or nil when it was never minted.
func (s *IdentityService) Lookup(ctx context.Context, uid string) (*models.Session, error) {
	return s.sessionStore.GetSession(ctx, uid)
}
