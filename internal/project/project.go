// Package project turns one card snapshot plus the derived access mode into
// a complete view description. It holds no state and is safe to call on
// every delivered snapshot.
package project

import (
	"fmt"
	"strings"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
)

// StampSlots is the fixed size of the stamp grid.
const StampSlots = 50

// DefaultStampImageURL is used while the owner has not configured a stamp
// image yet.
const DefaultStampImageURL = "https://upload.wikimedia.org/wikipedia/commons/thumb/5/5a/Red_stamp.svg/512px-Red_stamp.svg.png"

type Mode int

const (
	ModeOwner Mode = iota
	ModeViewer
	ModeNotFound
)

func (m Mode) String() string {
	switch m {
	case ModeOwner:
		return "owner"
	case ModeViewer:
		return "viewer"
	default:
		return "not-found"
	}
}

type Stamp struct {
	Slot      int
	Collected bool
	ImageURL  string // set only on collected slots
}

type RewardRow struct {
	ID        string
	Name      string
	Cost      int64
	Note      string
	CanRedeem bool
	CanDelete bool
}

// View is everything a renderer needs; it carries no behaviour beyond Text.
type View struct {
	CardID    string
	Mode      Mode
	Points    int64
	Stamps    []Stamp
	BannerURL string // empty means render the placeholder
	Rewards   []RewardRow
}

// Build projects a present card. Redeem affordances are gated on ownership
// and a live sufficiency check against the snapshot balance.
func Build(card *models.Card, isOwner bool) View {
	points := card.Points
	if points < 0 {
		points = 0
	}

	stampURL := strings.TrimSpace(card.StampImageURL)
	if stampURL == "" {
		stampURL = DefaultStampImageURL
	}

	mode := ModeViewer
	if isOwner {
		mode = ModeOwner
	}

	v := View{
		CardID:    card.ID,
		Mode:      mode,
		Points:    points,
		Stamps:    make([]Stamp, StampSlots),
		BannerURL: strings.TrimSpace(card.BannerImageURL),
	}

	for i := 0; i < StampSlots; i++ {
		s := Stamp{Slot: i + 1, Collected: int64(i+1) <= points}
		if s.Collected {
			s.ImageURL = stampURL
		}
		v.Stamps[i] = s
	}

	for _, r := range card.Rewards {
		v.Rewards = append(v.Rewards, RewardRow{
			ID:        r.ID,
			Name:      r.Name,
			Cost:      r.Cost,
			Note:      r.Note,
			CanRedeem: isOwner && points >= r.Cost,
			CanDelete: isOwner,
		})
	}

	return v
}

// NotFound is the terminal view for an absent document: read-only posture,
// no affordances.
func NotFound(cardID string) View {
	return View{CardID: cardID, Mode: ModeNotFound}
}

// Text renders the view for a terminal. Browsers project the raw snapshot
// themselves; this is the cardctl rendering.
func (v View) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Card ID: %s\n", v.CardID)
	if v.Mode == ModeNotFound {
		b.WriteString("this card does not exist or was deleted\n")
		return b.String()
	}

	fmt.Fprintf(&b, "mode: %s | points: %d\n", v.Mode, v.Points)
	if v.BannerURL != "" {
		fmt.Fprintf(&b, "banner: %s\n", v.BannerURL)
	} else {
		b.WriteString("banner: (none)\n")
	}

	for i, s := range v.Stamps {
		if s.Collected {
			b.WriteString("●")
		} else {
			b.WriteString("○")
		}
		if (i+1)%10 == 0 {
			b.WriteString("\n")
		}
	}

	if len(v.Rewards) == 0 {
		b.WriteString("no rewards yet\n")
		return b.String()
	}

	for _, r := range v.Rewards {
		line := fmt.Sprintf("- [%s] %s (%d pts)", r.ID, r.Name, r.Cost)
		if r.Note != "" {
			line += " (" + r.Note + ")"
		}
		if r.CanRedeem {
			line += " [redeemable]"
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}
