package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"github.com/unclebandit/pledge-escrow/internal/model"
)

// AMQPPublisher publishes JSON payloads to durable RabbitMQ queues named after the topic.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func DialAMQP(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to queue: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open queue channel: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, declared: map[string]bool{}}, nil
}

func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (p *AMQPPublisher) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[topic] {
		if _, err := declare(p.ch, topic); err != nil {
			return fmt.Errorf("declare queue %s: %w", topic, err)
		}
		p.declared[topic] = true
	}

	return p.ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Subscribe is not supported on the publisher side; consumers use ConsumeCampaignEvents.
func (p *AMQPPublisher) Subscribe(topic string, handler func(payload any) error) error {
	return errors.New("amqp publisher does not deliver to in-process subscribers")
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// ConsumeCampaignEvents decodes deliveries from the events queue and hands each
// to handle. Failed deliveries are requeued once; later failures are dropped
// after logging so a poison message cannot stall the queue.
// It returns when the delivery channel closes.
func ConsumeCampaignEvents(ch *amqp.Channel, topic string, handle func(model.CampaignEvent) error) error {
	q, err := declare(ch, topic)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	for d := range msgs {
		var ev model.CampaignEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Println("Invalid event:", err)
			d.Ack(false)
			continue
		}
		if err := handle(ev); err != nil {
			log.Printf("Failed to handle event %s: %v", ev.ID, err)
			if !d.Redelivered {
				d.Nack(false, true) // requeue
				continue
			}
			log.Printf("Dropping event %s after redelivery", ev.ID)
		}
		d.Ack(false)
	}
	return nil
}
