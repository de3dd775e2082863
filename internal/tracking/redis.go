package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "orders:status:"

// Channel names the pub/sub channel of an order.
func Channel(orderID int64) string {
	return channelPrefix + strconv.FormatInt(orderID, 10)
}

// Publisher sends status events over redis pub/sub so every API replica can
// reach its own websocket clients.
type Publisher struct {
	client *redis.Client
}

// NewPublisher constructs a publisher.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends the event on the order's channel.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(event.OrderID), payload).Err()
}

// Relay feeds every order channel into the hub until ctx is cancelled.
func Relay(ctx context.Context, client *redis.Client, hub *Hub, logger *slog.Logger) error {
	sub := client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("tracking: subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := decodeMessage(msg)
			if err != nil {
				logger.Warn("tracking: drop message", slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			hub.Broadcast(event)
		}
	}
}

func decodeMessage(msg *redis.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		return Event{}, err
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64)
	if err != nil {
		return Event{}, err
	}
	event.OrderID = id
	return event, nil
}
