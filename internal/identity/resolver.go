// Package identity obtains the stable anonymous identity for the current
// session. Resolution is a startup precondition: it polls the identity
// endpoint with a fixed bound and fails fatally when the bound is exhausted.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/a112660307-droid/reward-card/internal/comm"
)

const (
	readyAttempts = 80
	readyInterval = 50 * time.Millisecond
)

// Session is the resolved anonymous identity plus its bearer token.
type Session struct {
	Uid   string
	Token string
}

type Resolver struct {
	endpoint string
	client   *http.Client
	attempts int
	interval time.Duration

	cached *Session
}

// NewResolver points at the card service identity endpoint, e.g.
// http://localhost:8080/v1/identity.
func NewResolver(endpoint string) *Resolver {
	return &Resolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		attempts: readyAttempts,
		interval: readyInterval,
	}
}

// Resolve returns the session identity, minting one on first call and
// returning the same value afterwards. It retries while the service is not
// ready yet, up to the fixed bound, then gives up for good.
func (r *Resolver) Resolve(ctx context.Context) (*Session, error) {
	if r.cached != nil {
		return r.cached, nil
	}

	var lastErr error
	for i := 0; i < r.attempts; i++ {
		s, err := r.mint(ctx)
		if err == nil {
			r.cached = s
			return s, nil
		}
		lastErr = err
		log.Debugf("identity not ready (attempt %d/%d): %v", i+1, r.attempts, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.interval):
		}
	}

	return nil, fmt.Errorf("identity provider not ready after %d attempts: %w", r.attempts, lastErr)
}

func (r *Resolver) mint(ctx context.Context) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity endpoint returned %d", resp.StatusCode)
	}

	var payload struct {
		Data comm.IdentityData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if payload.Data.Uid == "" {
		return nil, fmt.Errorf("identity endpoint returned an empty uid")
	}

	return &Session{Uid: payload.Data.Uid, Token: payload.Data.Token}, nil
}
