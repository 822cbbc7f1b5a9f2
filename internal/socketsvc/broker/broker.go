package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/a112660307-droid/reward-card/internal/comm"
	natscli "github.com/a112660307-droid/reward-card/internal/nats"
)

// Broker bridges NATS and the websocket registry: commands flow out to the
// card service, snapshots and errors flow back in to the sockets. Socket
// writes go through WriteToSocket so the two subscription callbacks never
// race on one connection.
type Broker struct {
	Conn           *nats.Conn
	WriteToSocket  func(string, interface{}) (bool, error)
	GetCardSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncWriteToSocket func(string, interface{}) (bool, error), fncGetCardSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		WriteToSocket:  fncWriteToSocket,
		GetCardSockets: fncGetCardSockets,
	}
}

// SubscribeResponses consumes per-socket responses from the card service.
func (b *Broker) SubscribeResponses() (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(natscli.TopicGateway, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// SubscribeSnapshots consumes card change broadcasts.
func (b *Broker) SubscribeSnapshots() (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(natscli.TopicSnapshots, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// PublishCommand forwards a client command to the card service.
func (b *Broker) PublishCommand(payload []byte) error {
	return b.Publish(natscli.TopicCommands, payload)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receives messages from the card service.
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case "card-snapshot":
		if message.SocketId != "" {
			b.sendMessage(message)
			return
		}
		b.broadcastSnapshot(message)
	case "op-error":
		b.sendMessage(message)
	default:
		log.Error("Unknown message")
		return
	}
}

// broadcastSnapshot fans a changed card out to every socket watching it.
func (b *Broker) broadcastSnapshot(m *comm.WSMessage) {
	snap := comm.CardSnapshot{}
	if err := json.Unmarshal(m.Data, &snap); err != nil {
		log.Errorf("Error decoding snapshot broadcast: %s", err)
		return
	}

	sockets, ok := b.GetCardSockets(snap.CardID)
	if !ok {
		return
	}

	for _, socketId := range sockets {
		if ok, err := b.WriteToSocket(socketId, m); ok && err != nil {
			log.Errorf("Error writing snapshot to socket %s: %s", socketId, err)
		}
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(m *comm.WSMessage) {
	if ok, err := b.WriteToSocket(m.SocketId, m); ok && err != nil {
		log.Println(err)
	}
}
