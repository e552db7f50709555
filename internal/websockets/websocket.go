package websockets

import (
	"time"

	"biteback/internal/events"
	"biteback/internal/repositories"
	"biteback/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	PING_INTERVAL     = 30 * time.Second
	PONG_TIMEOUT      = 60 * time.Second
	WRITE_TIMEOUT     = 10 * time.Second
	MAX_MESSAGE_SIZE  = 64 * 1024
	SEND_CHANNEL_SIZE = 64

	SYSTEM_CHANNEL = "system"
)

type Message struct {
	ID        string             `json:"id"`
	Type      events.MessageType `json:"type"`
	Channel   string             `json:"channel,omitempty"`
	Action    string             `json:"action,omitempty"`
	Data      map[string]any     `json:"data,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// TokenValidator verifies the bearer token a client sends in its auth response.
type TokenValidator interface {
	ValidateToken(token string) (*types.TokenInfo, error)
}

type Client struct {
	ID           string
	UserID       uuid.UUID
	RestaurantID uuid.UUID
	Connection   *websocket.Conn
	Manager      *Manager
	Status       int
	send         chan Message
}

type Manager struct {
	hub            *Hub
	auth           TokenValidator
	userRepo       repositories.UserRepository
	restaurantRepo repositories.RestaurantRepository
	log            logger.Logger
}

// New starts the hub and subscribes it to ledger and broadcast events.
func New(
	subscriber events.Subscriber,
	auth TokenValidator,
	repos repositories.Repository,
) (*Manager, error) {
	manager := newManager(auth, repos)
	log := manager.log.Function("New")

	log.Info("Starting websocket hub")
	go manager.hub.run(manager)

	if err := subscriber.Subscribe(events.MISSIONS_CHANNEL, manager.HandleLedgerEvent); err != nil {
		return nil, log.Err("failed to subscribe to ledger events", err)
	}
	if err := subscriber.Subscribe(events.BROADCAST_CHANNEL, manager.HandleBroadcastEvent); err != nil {
		return nil, log.Err("failed to subscribe to broadcast events", err)
	}

	return manager, nil
}

func newManager(auth TokenValidator, repos repositories.Repository) *Manager {
	return &Manager{
		hub: &Hub{
			register:   make(chan *Client),
			unregister: make(chan *Client),
			clients:    make(map[string]*Client),
		},
		auth:           auth,
		userRepo:       repos.User,
		restaurantRepo: repos.Restaurant,
		log:            logger.New("websockets"),
	}
}

func newClient(m *Manager, conn *websocket.Conn) *Client {
	return &Client{
		ID:         uuid.New().String(),
		Connection: conn,
		Manager:    m,
		Status:     STATUS_UNAUTHENTICATED,
		send:       make(chan Message, SEND_CHANNEL_SIZE),
	}
}

func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")
	client := newClient(m, c)

	if err := client.sendAuthRequest(); err != nil {
		if err := c.Close(); err != nil {
			log.Er("failed to close connection", err)
		}
		return
	}

	m.hub.register <- client
	defer func() {
		log.Info("Client disconnected", "clientID", client.ID)
		m.hub.unregister <- client
		_ = c.Close()
	}()

	client.startAuthTimeout()
	go client.readPump()
	client.writePump()
}

// HandleLedgerEvent forwards completion and redemption events to the
// connections of the restaurant they belong to.
func (m *Manager) HandleLedgerEvent(event events.Event) error {
	if event.RestaurantID == nil {
		return nil
	}

	data := map[string]any{}
	for key, value := range event.Data {
		data[key] = value
	}
	if event.MissionID != nil {
		data["missionId"] = event.MissionID.String()
	}
	if event.UserID != nil {
		data["customerId"] = event.UserID.String()
	}

	m.sendToRestaurant(*event.RestaurantID, Message{
		ID:        event.ID,
		Type:      event.Type,
		Channel:   events.MISSIONS_CHANNEL.String(),
		Data:      data,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Manager) HandleBroadcastEvent(event events.Event) error {
	m.sendToAuthenticatedClients(Message{
		ID:        uuid.New().String(),
		Type:      events.BROADCAST,
		Channel:   SYSTEM_CHANNEL,
		Action:    "broadcast",
		Data:      event.Data,
		Timestamp: time.Now(),
	})
	return nil
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.unregister <- c
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		return c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT))
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			return
		}

		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message Message) {
	log := c.Manager.log.Function("routeMessage")

	switch {
	case message.Type == events.AUTH_RESPONSE:
		c.handleAuthResponse(message)
	case !c.Manager.isAuthenticated(c):
		c.handleUnauthenticatedMessage(message)
	case message.Type == events.PING:
		c.Manager.enqueue(c, Message{
			ID:        uuid.New().String(),
			Type:      events.PONG,
			Channel:   SYSTEM_CHANNEL,
			Timestamp: time.Now(),
		})
	default:
		log.Debug("Ignoring client message", "clientID", c.ID, "type", message.Type)
	}
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
