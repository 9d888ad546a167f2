package service

import (
	"context"
	"log"
	"time"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

// resolve moves an Active campaign into a terminal state. It is the only
// place State is written after creation.
func resolve(c *model.Campaign, to model.CampaignState, now time.Time) {
	if c.State != model.StateActive || !to.Terminal() {
		panic("invalid campaign transition " + string(c.State) + " -> " + string(to))
	}
	c.State = to
	resolvedAt := now
	c.ResolvedAt = &resolvedAt
}

// resolveOnPledge marks the campaign Successful once the goal is met.
func resolveOnPledge(c *model.Campaign, now time.Time) bool {
	if c.State == model.StateActive && c.Pledged >= c.Goal {
		resolve(c, model.StateSuccessful, now)
		return true
	}
	return false
}

// FinalizeCampaign resolves a campaign whose deadline has passed. Anyone may call it.
func (s *CampaignService) FinalizeCampaign(ctx context.Context, id uint64) (model.CampaignState, error) {
	now := s.Clock.Now()

	var (
		state  model.CampaignState
		events []model.CampaignEvent
	)
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		events = nil
		c, err := tx.GetCampaign(ctx, id)
		if err != nil {
			return err
		}
		if c.State != model.StateActive {
			return appErrors.Newf(appErrors.CampaignAlreadyResolved, id, "state is %s", c.State)
		}
		if now.Before(c.Deadline) {
			return appErrors.New(appErrors.CampaignStillActive, id)
		}

		if c.Pledged >= c.Goal {
			resolve(c, model.StateSuccessful, now)
		} else {
			resolve(c, model.StateFailed, now)
		}
		if err := tx.SaveCampaign(ctx, c); err != nil {
			return err
		}
		state = c.State
		events = append(events, s.newEvent(model.EventCampaignResolved, c, "", "", c.Pledged, now))
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("Campaign %d finalized as %s", id, state)
	s.publish(events)
	return state, nil
}

// FinalizeExpired resolves up to limit Active campaigns past their deadline and
// returns the identifiers it resolved.
func (s *CampaignService) FinalizeExpired(ctx context.Context, limit int) ([]uint64, error) {
	ids, err := s.ExpiredCampaigns(ctx, limit)
	if err != nil {
		return nil, err
	}

	done := []uint64{}
	for _, id := range ids {
		if _, err := s.FinalizeCampaign(ctx, id); err != nil {
			// another caller resolved it first
			if appErrors.IsKind(err, appErrors.CampaignAlreadyResolved) {
				continue
			}
			return done, err
		}
		done = append(done, id)
	}
	return done, nil
}

// ExpiredCampaigns lists Active campaigns whose deadline has passed.
func (s *CampaignService) ExpiredCampaigns(ctx context.Context, limit int) ([]uint64, error) {
	if limit < 1 {
		limit = 100
	}
	now := s.Clock.Now()
	var ids []uint64
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.ListExpiredActive(ctx, now, limit)
		return err
	})
	return ids, err
}
