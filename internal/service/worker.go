package service

import (
	"context"
	"log"
	"time"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
)

// Finalizer defines the methods the worker needs
type Finalizer interface {
	ExpiredCampaigns(ctx context.Context, limit int) ([]uint64, error)
	FinalizeCampaign(ctx context.Context, id uint64) (model.CampaignState, error)
}

// Worker finalizes campaigns whose identifiers arrive on JobChan
type Worker struct {
	Finalizer Finalizer
	JobChan   <-chan uint64
	OnDone    func(id uint64, state model.CampaignState, err error)
}

// Constructor
func NewWorker(f Finalizer, jobChan <-chan uint64) *Worker {
	return &Worker{
		Finalizer: f,
		JobChan:   jobChan,
	}
}

// Start processes jobs until JobChan closes
func (w *Worker) Start(ctx context.Context) {
	for id := range w.JobChan {
		state, err := w.Finalizer.FinalizeCampaign(ctx, id)
		switch {
		case err == nil:
		case appErrors.IsKind(err, appErrors.CampaignAlreadyResolved), appErrors.IsKind(err, appErrors.CampaignStillActive):
			log.Printf("Skipping campaign %d: %v", id, err)
		default:
			log.Printf("Failed to finalize campaign %d: %v", id, err)
		}
		if w.OnDone != nil {
			w.OnDone(id, state, err)
		}
	}
}

// Sweep feeds expired Active campaigns to jobs every interval until ctx ends,
// then closes jobs.
func Sweep(ctx context.Context, f Finalizer, jobs chan<- uint64, interval time.Duration, batch int) {
	defer close(jobs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ids, err := f.ExpiredCampaigns(ctx, batch)
		if err != nil {
			log.Println("⚠️ sweep failed:", err)
		}
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
		if len(ids) > 0 {
			log.Printf("Sweep queued %d expired campaigns", len(ids))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
