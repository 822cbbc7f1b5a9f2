package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
)

// SessionStore persists anonymous identities in Postgres.
type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

// EnsureSchema creates the sessions table when it does not exist yet.
func (s *SessionStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS sessions (
            uid        TEXT PRIMARY KEY,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `)
	if err != nil {
		return fmt.Errorf("could not ensure sessions table: %v", err)
	}
	return nil
}

func (s *SessionStore) CreateSession(ctx context.Context, uid string) (*models.Session, error) {
	sess := &models.Session{}

	query := `
        INSERT INTO sessions (uid)
        VALUES ($1)
        RETURNING uid, created_at;
    `

	err := s.db.QueryRow(ctx, query, uid).Scan(&sess.Uid, &sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("could not create session: %v", err)
	}

	return sess, nil
}

func (s *SessionStore) GetSession(ctx context.Context, uid string) (*models.Session, error) {
	row := s.db.QueryRow(ctx, `
        SELECT uid, created_at
        FROM sessions
        WHERE uid = $1
    `, uid)

	sess := &models.Session{}
	err := row.Scan(&sess.Uid, &sess.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return sess, nil
}
