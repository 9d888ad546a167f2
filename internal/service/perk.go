package service

import (
	"context"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

// distributePerk pays the campaign's reward from the creator to backer the first
// time backer's cumulative pledge reaches the threshold. A backer is rewarded at
// most once per campaign. A failed reward transfer fails the whole pledge.
func (s *CampaignService) distributePerk(ctx context.Context, ledger repository.AssetLedger, c *model.Campaign, backer string) (bool, error) {
	if c.Perk == nil || c.PerksGranted[backer] {
		return false, nil
	}
	if c.BackerTotal(backer) < c.Perk.Threshold {
		return false, nil
	}

	if err := ledger.Transfer(ctx, c.Perk.RewardAsset, c.Creator, backer, uint64(c.Perk.RewardAmount)); err != nil {
		return false, appErrors.Wrap(appErrors.PerkTransferFailed, c.ID, err)
	}
	if c.PerksGranted == nil {
		c.PerksGranted = map[string]bool{}
	}
	c.PerksGranted[backer] = true
	return true, nil
}
