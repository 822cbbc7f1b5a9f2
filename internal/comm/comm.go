package comm

import (
	"encoding/json"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
)

// WSMessage is the envelope shared by the websocket gateway and the card
// service; Type selects the payload shape carried in Data.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "open-card", "add-point"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
}

// IdentityData is the response of the anonymous identity endpoint.
type IdentityData struct {
	Uid   string `json:"uid"`
	Token string `json:"token"`
}

// CardSnapshot is one delivered state of a card document. Found is false
// when the document is absent (never created or deleted out-of-band); Card
// is nil in that case.
type CardSnapshot struct {
	CardID string       `json:"card_id"`
	Found  bool         `json:"found"`
	Card   *models.Card `json:"card,omitempty"`
}

// OpError reports a rejected mutation back to the issuing socket with a
// user-facing message.
type OpError struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// CardCommand is the shared payload of every card mutation sent through the
// gateway. Fields beyond CardID/Uid are used only by the operations that
// need them.
type CardCommand struct {
	CardID   string  `json:"card_id"`
	Uid      string  `json:"uid"`
	RewardID string  `json:"reward_id,omitempty"`
	Name     string  `json:"name,omitempty"`
	Cost     float64 `json:"cost,omitempty"`
	Note     string  `json:"note,omitempty"`
	URL      string  `json:"url,omitempty"`
}
