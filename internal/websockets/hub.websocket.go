package websockets

import (
	"sync"

	"github.com/google/uuid"
)

const (
	STATUS_UNAUTHENTICATED = iota
	STATUS_AUTHENTICATED
	STATUS_CLOSED
)

// Hub owns the client set. Client status and send channels are only touched
// under mutex, so a send never races the close in unregisterClient.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	clients    map[string]*Client
	mutex      sync.RWMutex
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)
		case client := <-h.unregister:
			m.unregisterClient(client)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	m.hub.clients[client.ID] = client
	m.log.Function("registerClient").Debug("Client registered", "clientID", client.ID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	if client.Status == STATUS_CLOSED {
		return
	}

	client.Status = STATUS_CLOSED
	close(client.send)
	delete(m.hub.clients, client.ID)

	m.log.Function("unregisterClient").Info(
		"Client unregistered",
		"clientID", client.ID,
		"userID", client.UserID,
	)
}

func (m *Manager) promoteClientToAuthenticated(client *Client, userID, restaurantID uuid.UUID) bool {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	if client.Status != STATUS_UNAUTHENTICATED {
		return false
	}

	client.Status = STATUS_AUTHENTICATED
	client.UserID = userID
	client.RestaurantID = restaurantID
	return true
}

func (m *Manager) isAuthenticated(client *Client) bool {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return client.Status == STATUS_AUTHENTICATED
}

// enqueue drops the message when the client is closed or its buffer is full.
func (m *Manager) enqueue(client *Client, message Message) bool {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return m.trySend(client, message)
}

func (m *Manager) trySend(client *Client, message Message) bool {
	if client.Status == STATUS_CLOSED {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		m.log.Function("trySend").Warn("Client send channel full, dropping message", "clientID", client.ID)
		return false
	}
}

func (m *Manager) sendToRestaurant(restaurantID uuid.UUID, message Message) int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()

	sent := 0
	for _, client := range m.hub.clients {
		if client.Status == STATUS_AUTHENTICATED && client.RestaurantID == restaurantID {
			if m.trySend(client, message) {
				sent++
			}
		}
	}

	m.log.Function("sendToRestaurant").Debug(
		"Ledger event delivered",
		"restaurantID", restaurantID,
		"eventType", message.Type,
		"sentTo", sent,
	)
	return sent
}

func (m *Manager) sendToAuthenticatedClients(message Message) int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()

	sent := 0
	for _, client := range m.hub.clients {
		if client.Status == STATUS_AUTHENTICATED && m.trySend(client, message) {
			sent++
		}
	}
	return sent
}
