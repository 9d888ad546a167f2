package service

import (
	"context"
	"log"
	"math"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

// Pledge escrows amount of asset from backer into the campaign. The escrow
// transfer, perk reward, accounting and any resulting transition commit together.
func (s *CampaignService) Pledge(ctx context.Context, backer string, campaignID, amount uint64, asset string) error {
	if err := s.Auth.RequireAuth(ctx, backer); err != nil {
		return err
	}
	if backer == s.escrowAccount() {
		return appErrors.Newf(appErrors.Unauthorized, campaignID, "custody account %s cannot pledge", backer)
	}
	if amount == 0 {
		return appErrors.New(appErrors.PledgeAmountZero, campaignID)
	}
	now := s.Clock.Now()

	var events []model.CampaignEvent
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		events = nil
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !now.Before(c.Deadline) || c.State != model.StateActive {
			return appErrors.New(appErrors.CampaignEnded, campaignID)
		}
		if c.PledgeAsset != "" && c.PledgeAsset != asset {
			return appErrors.Newf(appErrors.AssetMismatch, campaignID, "campaign escrows %s, got %s", c.PledgeAsset, asset)
		}
		// backer totals never exceed Pledged, so this also bounds them
		if c.Pledged > math.MaxUint64-amount {
			return appErrors.New(appErrors.AmountOverflow, campaignID)
		}

		if err := tx.Transfer(ctx, asset, backer, s.escrowAccount(), amount); err != nil {
			return err
		}

		c.PledgeAsset = asset
		c.Pledged += amount
		c.Backers[backer] += amount
		events = append(events, s.newEvent(model.EventPledgeReceived, c, backer, asset, amount, now))

		granted, err := s.distributePerk(ctx, tx, c, backer)
		if err != nil {
			return err
		}
		if granted {
			events = append(events, s.newEvent(model.EventPerkGranted, c, backer, c.Perk.RewardAsset, uint64(c.Perk.RewardAmount), now))
		}

		if resolveOnPledge(c, now) {
			events = append(events, s.newEvent(model.EventCampaignResolved, c, "", "", c.Pledged, now))
		}

		return tx.SaveCampaign(ctx, c)
	})
	if err != nil {
		return err
	}

	log.Printf("Backer %s pledged %d to campaign %d", backer, amount, campaignID)
	for _, ev := range events {
		switch ev.Type {
		case model.EventPerkGranted:
			log.Printf("🎁 Perk granted on campaign %d: %d %s to %s", campaignID, ev.Amount, ev.Asset, backer)
		case model.EventCampaignResolved:
			log.Printf("🎯 Campaign %d reached its goal", campaignID)
		}
	}
	s.publish(events)
	return nil
}
