package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
)

const channelPrefix = "notifications:"

func NewRedis(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func Channel(email string) string {
	return channelPrefix + email
}

// RedisPusher publishes notifications on the recipient's channel. Every
// instance relays them to its own websocket sessions; a push gateway can
// subscribe to the same channels for device delivery.
type RedisPusher struct {
	RDB *redis.Client
}

func (p *RedisPusher) Push(ctx context.Context, msg notifications.PushMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	if err := p.RDB.Publish(ctx, Channel(msg.Recipient), b).Err(); err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	return nil
}

// Relay forwards published notifications to local websocket sessions until
// ctx ends.
func Relay(ctx context.Context, rdb *redis.Client, hub *Hub, logger logrus.FieldLogger) error {
	sub := rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe notifications: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("notification subscription closed")
			}
			email := strings.TrimPrefix(m.Channel, channelPrefix)
			if email == "" {
				continue
			}
			out, err := Envelope([]byte(m.Payload))
			if err != nil {
				logger.WithError(err).Warn("drop malformed notification")
				continue
			}
			hub.SendRaw(email, out)
		}
	}
}

// RelayBackoff bounds the wait between relay restarts.
type RelayBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultRelayBackoff = RelayBackoff{Initial: time.Second, Max: 30 * time.Second}

// KeepRelaying runs relay until ctx ends, restarting it after every failure.
// The wait doubles up to Max and resets once a run outlives Max.
func KeepRelaying(ctx context.Context, logger logrus.FieldLogger, b RelayBackoff, relay func(context.Context) error) {
	wait := b.Initial
	for {
		started := time.Now()
		err := relay(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("relay returned")
		}
		if time.Since(started) > b.Max {
			wait = b.Initial
		}
		logger.WithError(err).WithField("retry_in", wait.String()).Warn("notification relay stopped")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		wait *= 2
		if wait > b.Max {
			wait = b.Max
		}
	}
}

// Envelope wraps a published PushMessage into the frame sent to websocket
// clients.
func Envelope(payload []byte) ([]byte, error) {
	var msg notifications.PushMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"type":  "notification",
		"title": msg.Title,
		"body":  msg.Body,
		"image": msg.Image,
		"data":  msg.Data,
	})
}
