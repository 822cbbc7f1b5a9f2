package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
	"github.com/a112660307-droid/reward-card/internal/cardsvc/store"
	"github.com/a112660307-droid/reward-card/internal/locator"
)

// CardService applies the card mutation rules on behalf of gateway clients.
// It is the write-side rule layer: every mutation re-reads the document,
// rejects writers that are not the recorded owner, and then issues a single
// atomic store update.
type CardService struct {
	cardStore *store.CardStore
}

func NewCardService(cardStore *store.CardStore) *CardService {
	return &CardService{cardStore: cardStore}
}

// OpenCard returns the card, creating it first when the id has never been
// seen; the opening identity becomes the permanent owner in that case.
func (s *CardService) OpenCard(ctx context.Context, id, uid string) (*models.Card, error) {
	card, err := s.cardStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		if err := s.cardStore.CreateIfAbsent(ctx, models.NewCard(id, uid)); err != nil {
			return nil, err
		}
		card, err = s.cardStore.Get(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	return card, nil
}

// ownedCard loads the card and rejects every identity but the owner.
func (s *CardService) ownedCard(ctx context.Context, id, uid string) (*models.Card, error) {
	card, err := s.cardStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, fmt.Errorf("card %s does not exist", id)
	}
	if !card.IsOwnedBy(uid) {
		return nil, models.ErrReadOnly
	}
	return card, nil
}

func (s *CardService) AddPoint(ctx context.Context, id, uid string) error {
	if _, err := s.ownedCard(ctx, id, uid); err != nil {
		return err
	}
	return s.cardStore.AddPoints(ctx, id, +1)
}

func (s *CardService) SubtractPoint(ctx context.Context, id, uid string) error {
	if _, err := s.ownedCard(ctx, id, uid); err != nil {
		return err
	}
	return s.cardStore.AddPoints(ctx, id, -1)
}

func (s *CardService) Reset(ctx context.Context, id, uid string) error {
	if _, err := s.ownedCard(ctx, id, uid); err != nil {
		return err
	}
	return s.cardStore.SetFields(ctx, id, map[string]any{
		"points":  int64(0),
		"rewards": []models.Reward{},
	})
}

func (s *CardService) SaveBannerURL(ctx context.Context, id, uid, raw string) error {
	return s.saveImageURL(ctx, id, uid, "bannerImageUrl", raw)
}

func (s *CardService) SaveStampURL(ctx context.Context, id, uid, raw string) error {
	return s.saveImageURL(ctx, id, uid, "stampImageUrl", raw)
}

func (s *CardService) saveImageURL(ctx context.Context, id, uid, field, raw string) error {
	if _, err := s.ownedCard(ctx, id, uid); err != nil {
		return err
	}
	u := strings.TrimSpace(raw)
	if !models.ValidImageURL(u) {
		return models.ErrInvalidImageURL
	}
	return s.cardStore.SetFields(ctx, id, map[string]any{field: u})
}

func (s *CardService) AddReward(ctx context.Context, id, uid, name string, cost float64, note string) error {
	if _, err := s.ownedCard(ctx, id, uid); err != nil {
		return err
	}
	r, err := models.NewReward(locator.NewID(), name, cost, note)
	if err != nil {
		return err
	}
	return s.cardStore.PushReward(ctx, id, r)
}

// RedeemReward subtracts the reward cost; the reward entry itself stays on
// the card.
func (s *CardService) RedeemReward(ctx context.Context, id, uid, rewardID string) error {
	card, err := s.ownedCard(ctx, id, uid)
	if err != nil {
		return err
	}
	r := card.FindReward(rewardID)
	if r == nil {
		return models.ErrRewardNotFound
	}
	if card.Points < r.Cost {
		return fmt.Errorf("%w (have %d, need %d)", models.ErrInsufficientPoints, card.Points, r.Cost)
	}

	ok, err := s.cardStore.SpendPoints(ctx, id, r.Cost)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w (need %d)", models.ErrInsufficientPoints, r.Cost)
	}
	return nil
}

func (s *CardService) DeleteReward(ctx context.Context, id, uid, rewardID string) error {
	card, err := s.ownedCard(ctx, id, uid)
	if err != nil {
		return err
	}
	if card.FindReward(rewardID) == nil {
		return models.ErrRewardNotFound
	}
	return s.cardStore.PullReward(ctx, id, rewardID)
}
