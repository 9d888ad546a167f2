// internal/model/campaign.go
package model

import "time"

type CampaignState string

const (
	StateActive     CampaignState = "active"
	StateSuccessful CampaignState = "successful"
	StateFailed     CampaignState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s CampaignState) Terminal() bool {
	return s == StateSuccessful || s == StateFailed
}

// Perk is the reward a backer receives once their cumulative pledge reaches Threshold.
type Perk struct {
	Threshold    uint64 `json:"threshold"`
	RewardAsset  string `json:"reward_asset"`
	RewardAmount int64  `json:"reward_amount"`
}

type Campaign struct {
	ID           uint64            `db:"id" json:"id"`
	Creator      string            `db:"creator" json:"creator"`
	Goal         uint64            `db:"goal" json:"goal"`
	Pledged      uint64            `db:"pledged" json:"pledged"`
	Deadline     time.Time         `db:"deadline" json:"deadline"`
	State        CampaignState     `db:"state" json:"state"`
	Backers      map[string]uint64 `json:"backers"`
	Perk         *Perk             `json:"perk,omitempty"`
	PerksGranted map[string]bool   `json:"perks_granted,omitempty"`
	PledgeAsset  string            `db:"pledge_asset" json:"pledge_asset,omitempty"`
	FundsClaimed bool              `db:"funds_claimed" json:"funds_claimed"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
}

// BackerTotal returns the backer's cumulative pledge, zero if absent.
func (c *Campaign) BackerTotal(backer string) uint64 {
	return c.Backers[backer]
}

// SumBackers recomputes the pledged total from the backer entries.
func (c *Campaign) SumBackers() uint64 {
	var sum uint64
	for _, v := range c.Backers {
		sum += v
	}
	return sum
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Backers = make(map[string]uint64, len(c.Backers))
	for k, v := range c.Backers {
		out.Backers[k] = v
	}
	out.PerksGranted = make(map[string]bool, len(c.PerksGranted))
	for k, v := range c.PerksGranted {
		out.PerksGranted[k] = v
	}
	if c.Perk != nil {
		p := *c.Perk
		out.Perk = &p
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
