// Package sync owns the in-memory truth for one card session: a single
// store subscription, the access mode derived per snapshot, and the
// mutation commands funnelled through the store adapter.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"

	log "github.com/sirupsen/logrus"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
	"github.com/a112660307-droid/reward-card/internal/locator"
	"github.com/a112660307-droid/reward-card/internal/project"
)

var (
	ErrNotReady     = errors.New("card is still synchronizing")
	ErrCardNotFound = errors.New("this card does not exist or was deleted")
	ErrCancelled    = errors.New("cancelled")
)

type State int

const (
	StateInitializing State = iota
	StateSyncedOwner
	StateSyncedViewer
	StateNotFound
)

// Core drives one card session. Every dependency is injected at
// construction; there is no ambient shared state.
type Core struct {
	adapter  Adapter
	identity string
	cardID   string
	render   func(project.View)
	confirm  func(prompt string) bool

	mu    stdsync.Mutex
	state State
	last  *models.Card
	unsub Unsubscribe
}

func NewCore(adapter Adapter, identity, cardID string, render func(project.View), confirm func(string) bool) *Core {
	return &Core{
		adapter:  adapter,
		identity: identity,
		cardID:   cardID,
		render:   render,
		confirm:  confirm,
	}
}

// Start creates the document if this session is the first to resolve the id
// (that identity becomes the permanent owner) and opens the single
// subscription. The first delivered snapshot ends the initializing state.
func (c *Core) Start(ctx context.Context) error {
	cur, err := c.adapter.Get(ctx, c.cardID)
	if err != nil {
		return fmt.Errorf("initial card lookup: %w", err)
	}
	if cur == nil {
		if err := c.adapter.CreateIfAbsent(ctx, models.NewCard(c.cardID, c.identity)); err != nil {
			return fmt.Errorf("create card: %w", err)
		}
	}

	unsub, err := c.adapter.Subscribe(ctx, c.cardID, c.onSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe card: %w", err)
	}
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
	return nil
}

// Stop tears down the subscription.
func (c *Core) Stop() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// onSnapshot re-derives the access mode and re-renders the whole view from
// scratch on every delivered state. NotFound is terminal: once the document
// is observed absent the session stops reacting.
func (c *Core) onSnapshot(card *models.Card) {
	c.mu.Lock()
	if c.state == StateNotFound {
		c.mu.Unlock()
		return
	}

	if card == nil {
		c.state = StateNotFound
		c.last = nil
		c.mu.Unlock()
		log.Warnf("card %s is gone; entering read-only not-found state", c.cardID)
		c.render(project.NotFound(c.cardID))
		return
	}

	isOwner := card.IsOwnedBy(c.identity)
	if isOwner {
		c.state = StateSyncedOwner
	} else {
		c.state = StateSyncedViewer
	}
	c.last = card
	c.mu.Unlock()

	c.render(project.Build(card, isOwner))
}

// guardOwner is the advisory precondition of every mutation; authoritative
// enforcement lives with the store's rule layer.
func (c *Core) guardOwner() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateInitializing:
		return ErrNotReady
	case StateNotFound:
		return ErrCardNotFound
	case StateSyncedViewer:
		return models.ErrReadOnly
	}
	return nil
}

// AddPoint increments the balance by one.
func (c *Core) AddPoint(ctx context.Context) error {
	if err := c.guardOwner(); err != nil {
		return err
	}
	return c.adapter.AddPoints(ctx, c.cardID, +1)
}

// SubtractPoint decrements the balance by one, clamped at zero.
func (c *Core) SubtractPoint(ctx context.Context) error {
	if err := c.guardOwner(); err != nil {
		return err
	}
	return c.adapter.AddPoints(ctx, c.cardID, -1)
}

// Reset zeroes the balance and empties the reward catalog after the user
// confirms. A declined confirmation is a silent no-op.
func (c *Core) Reset(ctx context.Context) error {
	if err := c.guardOwner(); err != nil {
		return err
	}
	if !c.confirm("reset points and rewards?") {
		return nil
	}
	return c.adapter.SetFields(ctx, c.cardID, map[string]any{
		"points":  int64(0),
		"rewards": []models.Reward{},
	})
}

// SaveBannerURL stores the trimmed banner image url; empty clears it back
// to the placeholder.
func (c *Core) SaveBannerURL(ctx context.Context, raw string) error {
	return c.saveImageURL(ctx, "bannerImageUrl", raw)
}

// SaveStampURL stores the trimmed stamp image url; empty falls back to the
// built-in stamp.
func (c *Core) SaveStampURL(ctx context.Context, raw string) error {
	return c.saveImageURL(ctx, "stampImageUrl", raw)
}

func (c *Core) saveImageURL(ctx context.Context, field, raw string) error {
	if err := c.guardOwner(); err != nil {
		return err
	}
	u := strings.TrimSpace(raw)
	if !models.ValidImageURL(u) {
		return models.ErrInvalidImageURL
	}
	return c.adapter.SetFields(ctx, c.cardID, map[string]any{field: u})
}

// AddReward validates the inputs and prepends a fresh catalog entry.
func (c *Core) AddReward(ctx context.Context, name string, cost float64, note string) error {
	if err := c.guardOwner(); err != nil {
		return err
	}
	r, err := models.NewReward(locator.NewID(), name, cost, note)
	if err != nil {
		return err
	}
	return c.adapter.PushReward(ctx, c.cardID, r)
}

// RedeemReward subtracts the reward's cost after a confirmation. The reward
// itself stays on the card. The balance is re-read immediately before the
// spend and the spend is conditional, so a concurrent session cannot drive
// the balance negative.
func (c *Core) RedeemReward(ctx context.Context, rewardID string) error {
	if err := c.guardOwner(); err != nil {
		return err
	}

	card, err := c.adapter.Get(ctx, c.cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return ErrCardNotFound
	}
	r := card.FindReward(rewardID)
	if r == nil {
		return models.ErrRewardNotFound
	}
	if card.Points < r.Cost {
		return fmt.Errorf("%w (have %d, need %d)", models.ErrInsufficientPoints, card.Points, r.Cost)
	}
	if !c.confirm(fmt.Sprintf("redeem %q for %d points?", r.Name, r.Cost)) {
		return ErrCancelled
	}

	ok, err := c.adapter.SpendPoints(ctx, c.cardID, r.Cost)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w (need %d)", models.ErrInsufficientPoints, r.Cost)
	}
	return nil
}

// DeleteReward removes a reward by id after a confirmation.
func (c *Core) DeleteReward(ctx context.Context, rewardID string) error {
	if err := c.guardOwner(); err != nil {
		return err
	}

	card, err := c.adapter.Get(ctx, c.cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return ErrCardNotFound
	}
	r := card.FindReward(rewardID)
	if r == nil {
		return models.ErrRewardNotFound
	}
	if !c.confirm(fmt.Sprintf("delete %q?", r.Name)) {
		return ErrCancelled
	}
	return c.adapter.PullReward(ctx, c.cardID, rewardID)
}
