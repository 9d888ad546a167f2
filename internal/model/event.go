package model

import "time"

const (
	EventCampaignCreated  = "campaign.created"
	EventPledgeReceived   = "pledge.received"
	EventPerkGranted      = "perk.granted"
	EventCampaignResolved = "campaign.resolved"
	EventFundsClaimed     = "funds.claimed"
	EventRefundWithdrawn  = "refund.withdrawn"
)

// CampaignEvent is published after every committed fund movement or transition.
type CampaignEvent struct {
	ID         string        `db:"id" json:"id"`
	Type       string        `db:"type" json:"type"`
	CampaignID uint64        `db:"campaign_id" json:"campaign_id"`
	Actor      string        `db:"actor" json:"actor,omitempty"`
	Asset      string        `db:"asset" json:"asset,omitempty"`
	Amount     uint64        `db:"amount" json:"amount,omitempty"`
	State      CampaignState `db:"state" json:"state,omitempty"`
	OccurredAt time.Time     `db:"occurred_at" json:"occurred_at"`
}
