package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/troublesprouter/freight-crm/internal/entity"
)

type EventType string

const (
	LeadClaimed  EventType = "lead.claimed"
	LeadReleased EventType = "lead.released"
	LeadCreated  EventType = "lead.created"
	LeadInactive EventType = "lead.inactive"
)

type LeadEvent struct {
	Type           EventType     `json:"type"`
	LeadID         string        `json:"lead_id"`
	OrganizationID string        `json:"organization_id"`
	RepID          string        `json:"rep_id,omitempty"`
	Status         entity.Status `json:"status"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// NewLeadEvent describes lead's state right after a change made by repID.
func NewLeadEvent(t EventType, lead *entity.Lead, repID string) LeadEvent {
	return LeadEvent{
		Type:           t,
		LeadID:         lead.ID,
		OrganizationID: lead.OrganizationID,
		RepID:          repID,
		Status:         lead.Status,
		OccurredAt:     lead.UpdatedAt,
	}
}

// SweepRequest asks a consumer to run the inactivity sweep.
type SweepRequest struct {
	RequestedBy string     `json:"requested_by"`
	Now         *time.Time `json:"now,omitempty"`
}

type EventPublisher interface {
	PublishLeadEvent(ctx context.Context, ev LeadEvent) error
}

// Publisher is the part of *amqp.Channel the producer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func (p *RabbitMQProducer) PublishLeadEvent(ctx context.Context, ev LeadEvent) error {
	return p.publish(ctx, string(ev.Type), ev)
}

func (p *RabbitMQProducer) PublishSweepRequest(ctx context.Context, req SweepRequest) error {
	return p.publish(ctx, SweepRoutingKey, req)
}

func (p *RabbitMQProducer) publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

// NopPublisher drops events; used when RabbitMQ is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishLeadEvent(context.Context, LeadEvent) error { return nil }
