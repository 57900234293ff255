package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "ex.crm" // topic exchange for lead events and sweep requests
	DLXName      = "ex.dlx" // dead letter exchange

	SweepQueue      = "q.sweep"
	SweepDLQ        = "q.sweep.dlq"
	SweepRoutingKey = "sweep.request"

	LeadEventsQueue = "q.lead-events"
	LeadEventsKey   = "lead.*"
)

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

func (r *RabbitMQ) Close() error {
	if r.Ch != nil {
		r.Ch.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}

func setupTopology(ch *amqp.Channel) error {
	// 1. Dead letters for sweep requests that cannot be processed
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(SweepDLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(SweepDLQ, SweepRoutingKey, DLXName, false, nil); err != nil {
		return err
	}

	// 2. Main exchange
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	// 3. Sweep requests
	args := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": SweepRoutingKey,
	}
	if _, err := ch.QueueDeclare(SweepQueue, true, false, false, false, args); err != nil {
		return err
	}
	if err := ch.QueueBind(SweepQueue, SweepRoutingKey, ExchangeName, false, nil); err != nil {
		return err
	}

	// 4. Lead events, for downstream consumers (activity feed, reporting)
	if _, err := ch.QueueDeclare(LeadEventsQueue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(LeadEventsQueue, LeadEventsKey, ExchangeName, false, nil)
}
