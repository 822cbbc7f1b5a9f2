package models

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	ErrReadOnly           = errors.New("card is read-only for this identity")
	ErrEmptyRewardName    = errors.New("reward name is required")
	ErrInvalidRewardCost  = errors.New("reward cost must be a positive number")
	ErrInvalidImageURL    = errors.New("image url must be empty or start with http:// or https://")
	ErrRewardNotFound     = errors.New("reward not found on this card")
	ErrInsufficientPoints = errors.New("not enough points to redeem this reward")
)

// Card is the shared loyalty ledger document, one per shareable link.
type Card struct {
	ID             string    `bson:"_id" json:"id"`
	OwnerIdentity  string    `bson:"ownerIdentity" json:"ownerIdentity"` // immutable after creation
	Points         int64     `bson:"points" json:"points"`
	Rewards        []Reward  `bson:"rewards" json:"rewards"` // newest first
	BannerImageURL string    `bson:"bannerImageUrl" json:"bannerImageUrl"`
	StampImageURL  string    `bson:"stampImageUrl" json:"stampImageUrl"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Reward struct {
	ID        string `bson:"id" json:"id"` // unique within the card
	Name      string `bson:"name" json:"name"`
	Cost      int64  `bson:"cost" json:"cost"`
	Note      string `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt int64  `bson:"createdAt" json:"createdAt"` // unix milliseconds, client assigned
}

// NewCard returns the initial document written when a link is opened for the
// first time. Whoever writes it becomes the permanent owner.
func NewCard(id, ownerIdentity string) *Card {
	return &Card{
		ID:            id,
		OwnerIdentity: ownerIdentity,
		Points:        0,
		Rewards:       []Reward{},
	}
}

// NewReward validates the user inputs and builds a catalog entry. Cost is
// floored to an integer; name and note are trimmed.
func NewReward(id, name string, cost float64, note string) (Reward, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Reward{}, ErrEmptyRewardName
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost <= 0 {
		return Reward{}, ErrInvalidRewardCost
	}

	return Reward{
		ID:        id,
		Name:      name,
		Cost:      int64(math.Floor(cost)),
		Note:      strings.TrimSpace(note),
		CreatedAt: time.Now().UnixMilli(),
	}, nil
}

// ApplyDelta moves the balance by delta, clamped at the zero floor.
func ApplyDelta(points, delta int64) int64 {
	next := points + delta
	if next < 0 {
		return 0
	}
	return next
}

var imageURLPattern = regexp.MustCompile(`(?i)^https?://`)

// ValidImageURL reports whether s may be stored as a banner or stamp image
// url. Empty means "use the default" and is always allowed.
func ValidImageURL(s string) bool {
	return s == "" || imageURLPattern.MatchString(s)
}

// FindReward returns the reward with the given id, or nil.
func (c *Card) FindReward(id string) *Reward {
	for i := range c.Rewards {
		if c.Rewards[i].ID == id {
			return &c.Rewards[i]
		}
	}
	return nil
}

// WithoutReward returns the reward list minus the entry with the given id,
// preserving the order of everything else.
func WithoutReward(rewards []Reward, id string) ([]Reward, bool) {
	next := make([]Reward, 0, len(rewards))
	removed := false
	for _, r := range rewards {
		if r.ID == id {
			removed = true
			continue
		}
		next = append(next, r)
	}
	return next, removed
}

// IsOwnedBy derives the access mode for an identity. It is recomputed on
// every snapshot rather than cached.
func (c *Card) IsOwnedBy(identity string) bool {
	return c.OwnerIdentity == identity
}
