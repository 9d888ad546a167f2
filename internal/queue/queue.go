package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

// CampaignEventsTopic is the default topic for committed campaign events.
const CampaignEventsTopic = "campaign_events"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers to in-process subscribers with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	inflight sync.WaitGroup
	backoff  time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		backoff:  500 * time.Millisecond,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{
			Payload:    payload,
			RetryCount: 0,
			MaxRetries: 3,
		}
		q.inflight.Add(1)
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	defer q.inflight.Done()
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(job.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has been handled or given up on.
func (q *InMemoryQueue) Wait() {
	q.inflight.Wait()
}

// StartAuditSubscriber records every campaign event in the audit trail.
func StartAuditSubscriber(q Queue, topic string, audit repository.AuditRepository) error {
	return q.Subscribe(topic, func(payload any) error {
		ev, ok := payload.(model.CampaignEvent)
		if !ok {
			log.Printf("⚠️ Invalid payload type %T, expected CampaignEvent", payload)
			return nil // no retry
		}
		if err := audit.Append(context.Background(), ev); err != nil {
			log.Println("⚠️ Failed to append audit event:", err)
			return err // retry
		}
		return nil
	})
}
