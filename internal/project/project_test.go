package project

import (
	"strings"
	"testing"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
)

func card(points int64, rewards ...models.Reward) *models.Card {
	return &models.Card{ID: "c1", OwnerIdentity: "uid-1", Points: points, Rewards: rewards}
}

func countCollected(v View) int {
	n := 0
	for _, s := range v.Stamps {
		if s.Collected {
			n++
		}
	}
	return n
}

func TestBuild_StampGrid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		points    int64
		collected int
	}{
		{0, 0},
		{3, 3},
		{50, 50},
		{120, 50}, // grid is bounded
		{-4, 0},   // negative balances render as zero
	}

	for _, tc := range tests {
		v := Build(card(tc.points), true)
		if len(v.Stamps) != StampSlots {
			t.Fatalf("points=%d: grid has %d slots, want %d", tc.points, len(v.Stamps), StampSlots)
		}
		if got := countCollected(v); got != tc.collected {
			t.Fatalf("points=%d: %d collected, want %d", tc.points, got, tc.collected)
		}
	}
}

func TestBuild_StampImageFallback(t *testing.T) {
	t.Parallel()

	v := Build(card(2), true)
	if v.Stamps[0].ImageURL != DefaultStampImageURL {
		t.Fatalf("expected default stamp image, got %q", v.Stamps[0].ImageURL)
	}
	if v.Stamps[2].ImageURL != "" {
		t.Fatalf("uncollected slot should carry no image")
	}

	c := card(2)
	c.StampImageURL = "https://example.com/stamp.png"
	v = Build(c, true)
	if v.Stamps[0].ImageURL != "https://example.com/stamp.png" {
		t.Fatalf("configured stamp image ignored: %q", v.Stamps[0].ImageURL)
	}
}

func TestBuild_RewardAffordances(t *testing.T) {
	t.Parallel()

	rewards := []models.Reward{
		{ID: "cheap", Name: "Sticker", Cost: 2},
		{ID: "steep", Name: "Mug", Cost: 10},
	}

	owner := Build(card(5, rewards...), true)
	if !owner.Rewards[0].CanRedeem || !owner.Rewards[0].CanDelete {
		t.Fatalf("owner should be able to act on an affordable reward: %+v", owner.Rewards[0])
	}
	if owner.Rewards[1].CanRedeem {
		t.Fatalf("redeem must stay gated on a live sufficiency check")
	}
	if !owner.Rewards[1].CanDelete {
		t.Fatalf("delete does not depend on balance")
	}

	viewer := Build(card(100, rewards...), false)
	for _, row := range viewer.Rewards {
		if row.CanRedeem || row.CanDelete {
			t.Fatalf("viewer rows must be disabled: %+v", row)
		}
	}
	if viewer.Mode != ModeViewer {
		t.Fatalf("mode = %v, want viewer", viewer.Mode)
	}
}

func TestNotFoundView(t *testing.T) {
	t.Parallel()

	v := NotFound("c1")
	if v.Mode != ModeNotFound {
		t.Fatalf("mode = %v", v.Mode)
	}
	if len(v.Rewards) != 0 || len(v.Stamps) != 0 {
		t.Fatalf("not-found view must carry no affordances")
	}
	if !strings.Contains(v.Text(), "does not exist") {
		t.Fatalf("text rendering misses the not-found notice: %q", v.Text())
	}
}

func TestText_MentionsCardAndRewards(t *testing.T) {
	t.Parallel()

	v := Build(card(3, models.Reward{ID: "r1", Name: "Coffee", Cost: 5, Note: "hot"}), true)
	text := v.Text()

	for _, want := range []string{"Card ID: c1", "points: 3", "Coffee", "(hot)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered text misses %q:\n%s", want, text)
		}
	}
}
