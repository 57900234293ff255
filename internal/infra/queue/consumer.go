package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/troublesprouter/freight-crm/internal/logs"
	"github.com/troublesprouter/freight-crm/internal/usecase"
)

// SweepRunner runs one inactivity sweep and handles its side effects.
type SweepRunner interface {
	Run(ctx context.Context, trigger string, now time.Time) (*usecase.SweepReport, error)
}

// SweepConsumer runs a sweep for every request on the sweep queue.
type SweepConsumer struct {
	Channel *amqp.Channel
	Runner  SweepRunner
	Now     func() time.Time
}

func NewSweepConsumer(ch *amqp.Channel, runner SweepRunner) *SweepConsumer {
	return &SweepConsumer{Channel: ch, Runner: runner, Now: time.Now}
}

// Start consumes until ctx is cancelled or the channel closes.
func (c *SweepConsumer) Start(ctx context.Context, queueName string) error {
	msgs, err := c.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logs.Logger.Infof("[*] sweep consumer waiting on '%s'", queueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks processed requests and dead-letters the rest. A sweep where only
// some organizations failed still counts as processed.
func (c *SweepConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var req SweepRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		logs.Logger.Errorf("[SWEEP] invalid request: %v", err)
		_ = d.Nack(false, false)
		return
	}

	now := c.Now()
	if req.Now != nil {
		now = *req.Now
	}

	report, err := c.Runner.Run(ctx, "queue", now)
	if report == nil {
		logs.Logger.Errorf("[SWEEP] run requested by %q failed: %v", req.RequestedBy, err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
