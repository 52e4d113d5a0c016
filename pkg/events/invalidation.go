package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/sitepass/pkg/observability"
)

// InvalidationChannel carries membership changes between replicas
const InvalidationChannel = "sitepass:invalidations"

const broadcastTimeout = 2 * time.Second

// Invalidator drops cached state for one membership
type Invalidator interface {
	Invalidate(projectID, userID string)
}

// Broadcaster forwards local membership changes to every replica listening
// on channel. It is registered as an invalidator on the team registry.
type Broadcaster struct {
	client  *redis.Client
	channel string
	logger  *observability.Logger
}

// NewBroadcaster creates a broadcaster on channel, or InvalidationChannel
// when empty
func NewBroadcaster(client *redis.Client, channel string, logger *observability.Logger) *Broadcaster {
	if channel == "" {
		channel = InvalidationChannel
	}
	return &Broadcaster{client: client, channel: channel, logger: logger}
}

// Invalidate publishes a MembershipChanged event. Failures are logged; the
// cache TTL bounds staleness on replicas that miss it.
func (b *Broadcaster) Invalidate(projectID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	data, err := json.Marshal(Event{
		Type:       MembershipChanged,
		ProjectID:  projectID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	})
	if err == nil {
		err = b.client.Publish(ctx, b.channel, data).Err()
	}
	if err != nil {
		b.logger.WithError(err).WithFields(map[string]interface{}{
			"project_id": projectID,
			"user_id":    userID,
		}).Warn("Failed to broadcast membership change")
	}
}

// Listener applies membership changes published by other replicas
type Listener struct {
	pubsub *redis.PubSub
	target Invalidator
	logger *observability.Logger
}

// Listen subscribes to channel, or InvalidationChannel when empty, and
// returns once the subscription is confirmed
func Listen(ctx context.Context, client *redis.Client, channel string, target Invalidator, logger *observability.Logger) (*Listener, error) {
	if channel == "" {
		channel = InvalidationChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	return &Listener{pubsub: pubsub, target: target, logger: logger}, nil
}

// Run applies messages until ctx is done or the listener is closed
func (l *Listener) Run(ctx context.Context) error {
	ch := l.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l.logger.WithError(err).Warn("Dropping malformed invalidation")
				continue
			}
			if event.Type != MembershipChanged {
				continue
			}
			l.target.Invalidate(event.ProjectID, event.UserID)
		}
	}
}

// Close ends the subscription
func (l *Listener) Close() error {
	return l.pubsub.Close()
}
