// Package events publishes invitation lifecycle notifications to observers
// such as the notification sender.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/sitepass/pkg/observability"
)

// DefaultChannel is the Redis channel events are published on
const DefaultChannel = "sitepass:events"

// Type names an event
type Type string

const (
	InvitationCreated         Type = "invitation.created"
	InvitationAccepted        Type = "invitation.accepted"
	InvitationAccessRequested Type = "invitation.access_requested"
	InvitationApproved        Type = "invitation.approved"
	InvitationRejected        Type = "invitation.rejected"
	InvitationRevoked         Type = "invitation.revoked"
	InvitationExpired         Type = "invitation.expired"

	// MembershipChanged tells other replicas to drop cached membership
	MembershipChanged Type = "membership.changed"
)

// Event is a committed state change
type Event struct {
	Type         Type      `json:"type"`
	ProjectID    string    `json:"project_id"`
	InvitationID string    `json:"invitation_id,omitempty"`
	MemberID     string    `json:"member_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	Email        string    `json:"email,omitempty"`
	ActorUserID  string    `json:"actor_user_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers events. Publishing happens after commit, so a failed
// publish never undoes a transition.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the log only
type LogPublisher struct {
	logger *observability.Logger
}

// NewLogPublisher creates a log-only publisher
func NewLogPublisher(logger *observability.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.logger.WithFields(map[string]interface{}{
		"event":         string(event.Type),
		"project_id":    event.ProjectID,
		"invitation_id": event.InvitationID,
	}).Info("Event published")
	return nil
}

// RedisPublisher publishes JSON-encoded events on a Redis pub/sub channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel, or DefaultChannel when empty
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish sends the event to every current subscriber
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(context.Context, Event) error { return nil }
