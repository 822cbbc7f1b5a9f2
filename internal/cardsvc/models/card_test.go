package models

import (
	"math"
	"strings"
	"testing"
)

func TestApplyDelta_ClampsAtZero(t *testing.T) {
	t.Parallel()

	tests := []struct {
		points, delta, want int64
	}{
		{0, 1, 1},
		{0, -1, 0},
		{1, -1, 0},
		{5, 1, 6},
		{5, -1, 4},
		{0, -100, 0},
	}

	for _, tc := range tests {
		if got := ApplyDelta(tc.points, tc.delta); got != tc.want {
			t.Fatalf("ApplyDelta(%d, %d) = %d, want %d", tc.points, tc.delta, got, tc.want)
		}
	}
}

func TestValidImageURL(t *testing.T) {
	t.Parallel()

	accept := []string{"", "http://example.com/a.png", "https://example.com/a.png", "HTTPS://EXAMPLE.COM/A.PNG", "HtTp://x"}
	for _, s := range accept {
		if !ValidImageURL(s) {
			t.Fatalf("ValidImageURL(%q) = false, want true", s)
		}
	}

	reject := []string{"ftp://example.com/a.png", "example.com/a.png", "javascript:alert(1)", "https:/broken", " http://leading-space"}
	for _, s := range reject {
		if ValidImageURL(s) {
			t.Fatalf("ValidImageURL(%q) = true, want false", s)
		}
	}
}

func TestNewReward_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewReward("r1", "   ", 5, ""); err != ErrEmptyRewardName {
		t.Fatalf("expected ErrEmptyRewardName, got %v", err)
	}

	for _, cost := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := NewReward("r1", "Coffee", cost, ""); err != ErrInvalidRewardCost {
			t.Fatalf("cost %v: expected ErrInvalidRewardCost, got %v", cost, err)
		}
	}

	r, err := NewReward("r1", "  Coffee  ", 5.9, "  free refill ")
	if err != nil {
		t.Fatalf("NewReward error: %v", err)
	}
	if r.Name != "Coffee" {
		t.Fatalf("name not trimmed: %q", r.Name)
	}
	if r.Cost != 5 {
		t.Fatalf("cost not floored: %d", r.Cost)
	}
	if r.Note != "free refill" {
		t.Fatalf("note not trimmed: %q", r.Note)
	}
	if r.CreatedAt == 0 {
		t.Fatalf("createdAt not assigned")
	}
}

func TestWithoutReward_KeepsOrder(t *testing.T) {
	t.Parallel()

	rewards := []Reward{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	next, removed := WithoutReward(rewards, "b")
	if !removed {
		t.Fatalf("expected removal of b")
	}
	if len(next) != 2 || next[0].ID != "a" || next[1].ID != "c" {
		t.Fatalf("unexpected remainder: %+v", next)
	}

	same, removed := WithoutReward(rewards, "nope")
	if removed || len(same) != 3 {
		t.Fatalf("removal of unknown id changed the list: %+v", same)
	}
}

func TestFindReward(t *testing.T) {
	t.Parallel()

	card := &Card{Rewards: []Reward{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}}

	if r := card.FindReward("b"); r == nil || r.Name != "B" {
		t.Fatalf("FindReward(b) = %+v", r)
	}
	if r := card.FindReward("z"); r != nil {
		t.Fatalf("FindReward(z) = %+v, want nil", r)
	}
}

func TestIsOwnedBy(t *testing.T) {
	t.Parallel()

	card := NewCard("c1", "uid-1")
	if !card.IsOwnedBy("uid-1") {
		t.Fatalf("owner not recognized")
	}
	if card.IsOwnedBy("uid-2") {
		t.Fatalf("viewer recognized as owner")
	}
	if card.IsOwnedBy(strings.ToUpper("uid-1")) {
		t.Fatalf("identity comparison must be exact")
	}
}
