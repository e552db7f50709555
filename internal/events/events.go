package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"biteback/config"
	"biteback/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

const (
	BROADCAST_CHANNEL Channel = "broadcast"
	MISSIONS_CHANNEL  Channel = "missions"
)

type MessageType string

const (
	PING              MessageType = "ping"
	PONG              MessageType = "pong"
	BROADCAST         MessageType = "broadcast"
	ERROR             MessageType = "error"
	AUTH_REQUEST      MessageType = "auth_request"
	AUTH_RESPONSE     MessageType = "auth_response"
	AUTH_SUCCESS      MessageType = "auth_success"
	AUTH_FAILURE      MessageType = "auth_failure"
	MISSION_COMPLETED MessageType = "mission_completed"
	VOUCHER_REDEEMED  MessageType = "voucher_redeemed"
)

type Event struct {
	ID           string         `json:"id"`
	Type         MessageType    `json:"type"`
	Channel      Channel        `json:"channel"`
	UserID       *uuid.UUID     `json:"userId,omitempty"`
	RestaurantID *uuid.UUID     `json:"restaurantId,omitempty"`
	MissionID    *uuid.UUID     `json:"missionId,omitempty"`
	Data         map[string]any `json:"data"`
	Timestamp    time.Time      `json:"timestamp"`
}

type EventHandler func(event Event) error

// Publisher is the write side of the bus used by controllers.
type Publisher interface {
	Publish(channel Channel, event Event) error
}

// Subscriber is the read side of the bus.
type Subscriber interface {
	Subscribe(channel Channel, handler EventHandler) error
}

type EventBus struct {
	client    valkey.Client
	logger    logger.Logger
	config    config.Config
	handlers  map[Channel][]EventHandler
	listening map[Channel]bool
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(client valkey.Client, config config.Config) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		client:    client,
		logger:    logger.New("EventBus"),
		config:    config,
		handlers:  make(map[Channel][]EventHandler),
		listening: make(map[Channel]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Publish sends the event through valkey so every instance sees it. Without a
// client the event is delivered to local handlers only.
func (eb *EventBus) Publish(channel Channel, event Event) error {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Channel == "" {
		event.Channel = channel
	}

	if eb.client == nil {
		eb.notifyLocalHandlers(channel, event)
		return nil
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return log.Err("failed to marshal event", err, "eventID", event.ID)
	}

	ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
	defer cancel()

	err = eb.client.Do(ctx, eb.client.B().Publish().Channel(channel.String()).Message(string(eventData)).Build()).
		Error()
	if err != nil {
		return log.Err(
			"failed to publish event to valkey",
			err,
			"channel", channel,
			"eventID", event.ID,
		)
	}

	log.Debug("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)
	return nil
}

func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) error {
	log := eb.logger.Function("Subscribe")

	eb.mutex.Lock()
	eb.handlers[channel] = append(eb.handlers[channel], handler)
	startListener := eb.client != nil && !eb.listening[channel]
	eb.listening[channel] = true
	eb.mutex.Unlock()

	log.Info("Handler subscribed to channel", "channel", channel)

	if startListener {
		go eb.listenToChannel(channel)
	}

	return nil
}

func (eb *EventBus) notifyLocalHandlers(channel Channel, event Event) {
	log := eb.logger.Function("notifyLocalHandlers")

	eb.mutex.RLock()
	handlers := append([]EventHandler(nil), eb.handlers[channel]...)
	eb.mutex.RUnlock()

	for i, handler := range handlers {
		go func(h EventHandler, handlerIndex int) {
			if err := h(event); err != nil {
				log.Er(
					"handler failed",
					err,
					"channel", channel,
					"eventID", event.ID,
					"handlerIndex", handlerIndex,
				)
			}
		}(handler, i)
	}
}

func (eb *EventBus) listenToChannel(channel Channel) {
	log := eb.logger.Function("listenToChannel")

	log.Info("Starting to listen to channel", "channel", channel)

	err := eb.client.Receive(
		eb.ctx,
		eb.client.B().Subscribe().Channel(channel.String()).Build(),
		func(msg valkey.PubSubMessage) {
			var event Event
			if err := json.Unmarshal([]byte(msg.Message), &event); err != nil {
				log.Er("failed to unmarshal event", err, "channel", channel)
				return
			}

			eb.notifyLocalHandlers(channel, event)
		},
	)
	if err != nil && eb.ctx.Err() == nil {
		log.Er("failed to listen to channel", err, "channel", channel)
	}
}

func (eb *EventBus) Close() error {
	eb.cancel()
	eb.logger.Function("Close").Info("EventBus closed")
	return nil
}

// NewCompletionEvent describes a ledger transition for the given completion.
func NewCompletionEvent(eventType MessageType, completion *models.MissionCompletion) Event {
	customerID := completion.CustomerID
	restaurantID := completion.RestaurantID
	missionID := completion.MissionID

	return Event{
		Type:         eventType,
		Channel:      MISSIONS_CHANNEL,
		UserID:       &customerID,
		RestaurantID: &restaurantID,
		MissionID:    &missionID,
		Data: map[string]any{
			"completionId": completion.ID.String(),
			"missionTitle": completion.MissionTitle,
			"voucherId":    completion.Voucher(),
			"redeemed":     completion.Redeemed,
		},
	}
}
