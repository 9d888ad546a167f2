package service

import (
	"context"
	"log"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

// ClaimFunds releases the whole escrowed total of a Successful campaign to its creator, once.
func (s *CampaignService) ClaimFunds(ctx context.Context, creator string, campaignID uint64, asset string) error {
	if err := s.Auth.RequireAuth(ctx, creator); err != nil {
		return err
	}
	now := s.Clock.Now()

	var (
		amount uint64
		events []model.CampaignEvent
	)
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		events = nil
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if c.Creator != creator {
			return appErrors.New(appErrors.NotTheCreator, campaignID)
		}
		if c.State != model.StateSuccessful {
			return appErrors.Newf(appErrors.CampaignNotSuccessful, campaignID, "state is %s", c.State)
		}
		if c.FundsClaimed {
			return appErrors.New(appErrors.FundsAlreadyClaimed, campaignID)
		}
		if asset != c.PledgeAsset {
			return appErrors.Newf(appErrors.AssetMismatch, campaignID, "campaign escrows %s, got %s", c.PledgeAsset, asset)
		}

		if err := tx.Transfer(ctx, asset, s.escrowAccount(), creator, c.Pledged); err != nil {
			return err
		}
		c.FundsClaimed = true
		if err := tx.SaveCampaign(ctx, c); err != nil {
			return err
		}
		amount = c.Pledged
		events = append(events, s.newEvent(model.EventFundsClaimed, c, creator, asset, amount, now))
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Creator %s claimed %d %s from campaign %d", creator, amount, asset, campaignID)
	s.publish(events)
	return nil
}

// WithdrawRefund returns backer's whole pledge from a Failed campaign and drops their entry.
func (s *CampaignService) WithdrawRefund(ctx context.Context, backer string, campaignID uint64, asset string) error {
	if err := s.Auth.RequireAuth(ctx, backer); err != nil {
		return err
	}
	now := s.Clock.Now()

	var (
		amount uint64
		events []model.CampaignEvent
	)
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		events = nil
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if c.State != model.StateFailed {
			return appErrors.Newf(appErrors.CampaignNotFailed, campaignID, "state is %s", c.State)
		}
		pledged, ok := c.Backers[backer]
		if !ok {
			return appErrors.Newf(appErrors.NoPledgeToRefund, campaignID, "%s has no pledge", backer)
		}
		if asset != c.PledgeAsset {
			return appErrors.Newf(appErrors.AssetMismatch, campaignID, "campaign escrows %s, got %s", c.PledgeAsset, asset)
		}

		if err := tx.Transfer(ctx, asset, s.escrowAccount(), backer, pledged); err != nil {
			return err
		}
		delete(c.Backers, backer)
		c.Pledged -= pledged
		if err := tx.SaveCampaign(ctx, c); err != nil {
			return err
		}
		amount = pledged
		events = append(events, s.newEvent(model.EventRefundWithdrawn, c, backer, asset, amount, now))
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Backer %s withdrew refund of %d %s from campaign %d", backer, amount, asset, campaignID)
	s.publish(events)
	return nil
}
