package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/a112660307-droid/reward-card/internal/cardsvc/models"
	"github.com/a112660307-droid/reward-card/internal/cardsvc/service"
	"github.com/a112660307-droid/reward-card/internal/cardsvc/store"
	"github.com/a112660307-droid/reward-card/internal/comm"
	natscli "github.com/a112660307-droid/reward-card/internal/nats"
)

// Broker executes card commands arriving from the websocket gateway and
// broadcasts card snapshots back out.
type Broker struct {
	Conn        *nats.Conn
	CardService *service.CardService
	CardStore   *store.CardStore
}

func NewBroker(nc *nats.Conn, cardService *service.CardService, cardStore *store.CardStore) *Broker {
	return &Broker{
		Conn:        nc,
		CardService: cardService,
		CardStore:   cardStore,
	}
}

// handleMessage dispatches one command from the gateway.
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	cmd := comm.CardCommand{}
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		log.Errorf("Error decoding %s command: %s", msg.Type, err)
		return
	}
	if cmd.CardID == "" || cmd.Uid == "" {
		log.Errorf("Dropping %s command with missing card id or uid", msg.Type)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "open-card":
		card, err := b.CardService.OpenCard(ctx, cmd.CardID, cmd.Uid)
		if err != nil {
			log.Errorf("Error [CardService.OpenCard] %s", err)
			b.PublishOpError(msg.Type, "could not open this card", msg.SocketId)
			return
		}
		b.PublishSnapshot(comm.CardSnapshot{CardID: cmd.CardID, Found: card != nil, Card: card}, msg.SocketId)
	case "add-point":
		b.reply(msg, b.CardService.AddPoint(ctx, cmd.CardID, cmd.Uid))
	case "subtract-point":
		b.reply(msg, b.CardService.SubtractPoint(ctx, cmd.CardID, cmd.Uid))
	case "reset-card":
		b.reply(msg, b.CardService.Reset(ctx, cmd.CardID, cmd.Uid))
	case "save-banner":
		b.reply(msg, b.CardService.SaveBannerURL(ctx, cmd.CardID, cmd.Uid, cmd.URL))
	case "save-stamp":
		b.reply(msg, b.CardService.SaveStampURL(ctx, cmd.CardID, cmd.Uid, cmd.URL))
	case "add-reward":
		b.reply(msg, b.CardService.AddReward(ctx, cmd.CardID, cmd.Uid, cmd.Name, cmd.Cost, cmd.Note))
	case "redeem-reward":
		b.reply(msg, b.CardService.RedeemReward(ctx, cmd.CardID, cmd.Uid, cmd.RewardID))
	case "delete-reward":
		b.reply(msg, b.CardService.DeleteReward(ctx, cmd.CardID, cmd.Uid, cmd.RewardID))
	default:
		log.Error("Unknown message")
	}
}

// reply surfaces a rejected mutation to the issuing socket; accepted
// mutations answer through the change watcher broadcast instead.
func (b *Broker) reply(msg *comm.WSMessage, err error) {
	if err == nil {
		return
	}
	log.Infof("rejected %s: %s", msg.Type, err)
	b.PublishOpError(msg.Type, userMessage(err), msg.SocketId)
}

// userMessage keeps store internals out of what the browser shows.
func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrReadOnly),
		errors.Is(err, models.ErrEmptyRewardName),
		errors.Is(err, models.ErrInvalidRewardCost),
		errors.Is(err, models.ErrInvalidImageURL),
		errors.Is(err, models.ErrRewardNotFound),
		errors.Is(err, models.ErrInsufficientPoints):
		return err.Error()
	default:
		return "the operation failed, please try again"
	}
}

func (b *Broker) PublishSnapshot(snap comm.CardSnapshot, socketId string) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Errorf("unable to marshal snapshot for card %s", snap.CardID)
		return
	}

	msg := &comm.WSMessage{
		Type:     "card-snapshot",
		Data:     data,
		SocketId: socketId,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(natscli.TopicGateway, payload)
}

func (b *Broker) PublishOpError(op, message, socketId string) {
	data, err := json.Marshal(comm.OpError{Op: op, Message: message})
	if err != nil {
		log.Errorf("unable to marshal op error for %s", op)
		return
	}

	msg := &comm.WSMessage{
		Type:     "op-error",
		Data:     data,
		SocketId: socketId,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(natscli.TopicGateway, payload)
}

// BroadcastSnapshot publishes a changed card to every gateway; the gateways
// fan it out to the sockets watching that card.
func (b *Broker) BroadcastSnapshot(id string, card *models.Card) {
	data, err := json.Marshal(comm.CardSnapshot{CardID: id, Found: card != nil, Card: card})
	if err != nil {
		log.Errorf("unable to marshal broadcast snapshot for card %s", id)
		return
	}

	msg := &comm.WSMessage{
		Type: "card-snapshot",
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(natscli.TopicSnapshots, payload)
}

// RunWatcher pumps the collection change stream into snapshot broadcasts
// until ctx ends.
func (b *Broker) RunWatcher(ctx context.Context) {
	err := b.CardStore.WatchAll(ctx, b.BroadcastSnapshot)
	if err != nil && ctx.Err() == nil {
		log.Errorf("card watcher stopped: %v", err)
	}
}

// SubscribeGateway consumes commands published by the websocket gateway.
func (b *Broker) SubscribeGateway() (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(natscli.TopicCommands, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
