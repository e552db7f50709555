package websockets

import (
	"context"
	"time"

	"biteback/internal/events"
	"biteback/internal/types"

	"github.com/google/uuid"
)

const AUTH_HANDSHAKE_TIMEOUT = 10 * time.Second

func (c *Client) startAuthTimeout() {
	time.AfterFunc(AUTH_HANDSHAKE_TIMEOUT, func() {
		if c.Manager.isAuthenticated(c) {
			return
		}
		c.Manager.log.Function("startAuthTimeout").Warn(
			"Client failed to authenticate within timeout, disconnecting",
			"clientID", c.ID,
		)
		c.sendAuthFailure("Authentication timeout")
	})
}

func (c *Client) handleAuthResponse(message Message) {
	log := c.Manager.log.Function("handleAuthResponse")

	token, _ := message.Data["token"].(string)
	if err := c.Manager.authenticate(context.Background(), c, token); err != nil {
		log.Info("WebSocket authentication failed", "clientID", c.ID, "error", err.Error())
		c.sendAuthFailure("Authentication failed")
		return
	}

	c.Manager.enqueue(c, Message{
		ID:      uuid.New().String(),
		Type:    events.AUTH_SUCCESS,
		Channel: SYSTEM_CHANNEL,
		Action:  "authenticated",
		Data: map[string]any{
			"userId":       c.UserID.String(),
			"restaurantId": c.RestaurantID.String(),
		},
		Timestamp: time.Now(),
	})
}

// authenticate binds the client to the restaurant owned by the token's user.
// Only business users with a restaurant can follow the feed.
func (m *Manager) authenticate(ctx context.Context, client *Client, token string) error {
	log := m.log.Function("authenticate")

	if token == "" {
		return log.ErrorWithType(types.ErrUnauthorized, "missing token", "clientID", client.ID)
	}

	info, err := m.auth.ValidateToken(token)
	if err != nil {
		return err
	}

	user, err := m.userRepo.GetByExternalID(ctx, info.Subject)
	if err != nil {
		return err
	}
	if !user.IsBusiness() {
		return log.ErrorWithType(types.ErrForbidden, "feed requires a business account", "userID", user.ID)
	}

	restaurant, err := m.restaurantRepo.GetByOwnerID(ctx, user.ID)
	if err != nil {
		return err
	}

	if !m.promoteClientToAuthenticated(client, user.ID, restaurant.ID) {
		return log.ErrorWithType(types.ErrValidation, "client already authenticated", "clientID", client.ID)
	}

	log.Info(
		"WebSocket client authenticated",
		"clientID", client.ID,
		"userID", user.ID,
		"restaurantID", restaurant.ID,
	)
	return nil
}

func (c *Client) sendAuthFailure(reason string) {
	c.Manager.enqueue(c, Message{
		ID:        uuid.New().String(),
		Type:      events.AUTH_FAILURE,
		Channel:   SYSTEM_CHANNEL,
		Action:    "authentication_failed",
		Data:      map[string]any{"reason": reason},
		Timestamp: time.Now(),
	})

	time.AfterFunc(100*time.Millisecond, func() {
		if c.Connection != nil {
			_ = c.Connection.Close()
		}
	})
}

func (c *Client) sendAuthRequest() error {
	err := c.Connection.WriteJSON(Message{
		ID:        uuid.New().String(),
		Type:      events.AUTH_REQUEST,
		Channel:   SYSTEM_CHANNEL,
		Action:    "authenticate",
		Timestamp: time.Now(),
	})
	if err != nil {
		return c.Manager.log.Function("sendAuthRequest").Err("failed to send auth request", err)
	}
	return nil
}

func (c *Client) handleUnauthenticatedMessage(message Message) {
	c.Manager.log.Function("handleUnauthenticatedMessage").Warn(
		"Blocking message from unauthenticated client",
		"clientID", c.ID,
		"messageType", message.Type,
	)

	c.Manager.enqueue(c, Message{
		ID:        uuid.New().String(),
		Type:      events.AUTH_FAILURE,
		Channel:   SYSTEM_CHANNEL,
		Action:    "authentication_required",
		Data:      map[string]any{"reason": "Authentication required"},
		Timestamp: time.Now(),
	})
}
