package sync

import (
	"context"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
)

// Unsubscribe tears down a subscription.
type Unsubscribe func()

// Adapter is the boundary to the durable card store. Get and Subscribe
// deliver nil for an absent document. The point and reward primitives are
// atomic field-level transforms, so two sessions mutating the same card
// cannot lose each other's writes.
type Adapter interface {
	Get(ctx context.Context, id string) (*models.Card, error)

	// CreateIfAbsent writes the initial document only when no document with
	// its id exists yet; an existing document is never overwritten.
	CreateIfAbsent(ctx context.Context, card *models.Card) error

	// SetFields merges the named fields into the document and advances its
	// updatedAt timestamp.
	SetFields(ctx context.Context, id string, fields map[string]any) error

	// AddPoints moves the balance by delta, clamped at zero.
	AddPoints(ctx context.Context, id string, delta int64) error

	// SpendPoints subtracts cost only when the balance covers it; returns
	// false without writing otherwise.
	SpendPoints(ctx context.Context, id string, cost int64) (bool, error)

	// PushReward prepends r to the reward list.
	PushReward(ctx context.Context, id string, r models.Reward) error

	// PullReward removes the reward with rewardID, leaving the rest in order.
	PullReward(ctx context.Context, id, rewardID string) error

	// Subscribe invokes fn once immediately with the current state and again
	// on every change until unsubscribed.
	Subscribe(ctx context.Context, id string, fn func(*models.Card)) (Unsubscribe, error)
}
