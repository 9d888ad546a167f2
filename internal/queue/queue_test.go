package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	q := NewInMemoryQueue()
	if err := q.Publish("nobody", 1); err == nil {
		t.Fatal("expected error publishing to a topic with no subscribers")
	}
}

func TestPublishRetriesFailedHandler(t *testing.T) {
	q := NewInMemoryQueue()
	q.backoff = time.Millisecond

	var calls int32
	q.Subscribe("t", func(payload any) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("try again")
		}
		return nil
	})

	if err := q.Publish("t", "x"); err != nil {
		t.Fatal(err)
	}
	q.Wait()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestPublishGivesUpAfterMaxRetries(t *testing.T) {
	q := NewInMemoryQueue()
	q.backoff = time.Millisecond

	var calls int32
	q.Subscribe("t", func(payload any) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("always")
	})
	q.Publish("t", "x")
	q.Wait()

	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected 1 attempt plus 3 retries, got %d", got)
	}
}

func TestAuditSubscriber(t *testing.T) {
	q := NewInMemoryQueue()
	audit := repository.NewMemoryAuditRepository()
	if err := StartAuditSubscriber(q, CampaignEventsTopic, audit); err != nil {
		t.Fatal(err)
	}

	q.Publish(CampaignEventsTopic, model.CampaignEvent{ID: "a", Type: model.EventFundsClaimed, CampaignID: 3})
	q.Publish(CampaignEventsTopic, "not an event")
	q.Wait()

	events, _ := audit.ListByCampaign(context.Background(), 3)
	if len(events) != 1 || events[0].Type != model.EventFundsClaimed {
		t.Fatalf("unexpected audit trail: %+v", events)
	}
}
