package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/a112660307-droid/reward-card/internal/comm"
	"github.com/a112660307-droid/reward-card/internal/socketsvc/broker"
)

// commands the gateway forwards to the card service
var cardCommands = map[string]bool{
	"open-card":      true,
	"add-point":      true,
	"subtract-point": true,
	"reset-card":     true,
	"save-banner":    true,
	"save-stamp":     true,
	"add-reward":     true,
	"redeem-reward":  true,
	"delete-reward":  true,
}

// wsConn pairs a socket with its write lock. gorilla/websocket permits one
// concurrent writer per connection, and the gateway has several write paths
// into the same socket (per-socket responses, snapshot broadcasts, read-loop
// errors).
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type Ws struct {
	connMap sync.Map // socketId -> *wsConn
	cardMap sync.Map // socketId -> card id the socket is watching
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles one message from a web client. open-card doubles as
// the subscription: the socket keeps receiving snapshots of that card until
// it disconnects.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	if !cardCommands[message.Type] {
		log.Warnf("unknown event received: %s", message.Type)
		return
	}

	cmd := comm.CardCommand{}
	if err := json.Unmarshal(message.Data, &cmd); err != nil {
		log.Errorf("Error: malformed %s payload %s", message.Type, err)
		return
	}
	if cmd.CardID == "" || cmd.Uid == "" {
		log.Errorf("Invalid %s payload: missing card id or uid", message.Type)
		return
	}

	if message.Type == "open-card" {
		s.StoreCardSub(socketId, cmd.CardID)
	}

	message.SocketId = socketId
	bytes, err := json.Marshal(message)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.PublishCommand(bytes); err != nil {
		log.Errorf("Failed to publish %s command: %v", message.Type, err)
		return
	}

	log.Debugf("forwarded %s for card %s from socket %s", message.Type, cmd.CardID, socketId)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &wsConn{conn: conn})
}

// WriteToSocket is the single write path to a socket. The bool reports
// whether the socket is registered on this gateway instance; a miss is
// normal when the socket lives on another instance.
func (s *Ws) WriteToSocket(socketId string, v interface{}) (bool, error) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return false, nil
	}

	wc := c.(*wsConn)
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return true, wc.conn.WriteJSON(v)
}

func (s *Ws) StoreCardSub(socketId string, cardId string) {
	s.cardMap.Store(socketId, cardId)
}

// GetCardSockets lists every socket watching the card.
func (s *Ws) GetCardSockets(cardId string) ([]string, bool) {
	var sockets []string
	found := false

	s.cardMap.Range(func(key, value interface{}) bool {
		if value.(string) == cardId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.cardMap.Delete(socketId)
}
