package repository

import (
	"context"
	"time"

	"github.com/unclebandit/pledge-escrow/internal/model"
)

// CampaignStore persists campaign records and the identifier counter.
type CampaignStore interface {
	// NextCampaignID returns the next unused identifier and advances the counter.
	// The advance is undone if the enclosing transaction rolls back.
	NextCampaignID(ctx context.Context) (uint64, error)
	// GetCampaign loads a campaign and holds it for the rest of the transaction.
	GetCampaign(ctx context.Context, id uint64) (*model.Campaign, error)
	SaveCampaign(ctx context.Context, c *model.Campaign) error
	ListCampaigns(ctx context.Context, offset, limit int, state, creator string) ([]*model.Campaign, int, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// AssetLedger moves fungible balances between identities.
type AssetLedger interface {
	// Transfer fails with InsufficientBalance, moving nothing, when from holds less than amount.
	Transfer(ctx context.Context, asset, from, to string, amount uint64) error
	Credit(ctx context.Context, asset, holder string, amount uint64) error
	Balance(ctx context.Context, asset, holder string) (uint64, error)
}

// Tx is one all-or-nothing unit of work.
type Tx interface {
	CampaignStore
	AssetLedger
}

// UnitOfWork runs fn in isolation; every write fn made is discarded if it returns an error.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// AuditRepository keeps the append-only campaign event trail.
type AuditRepository interface {
	Append(ctx context.Context, ev model.CampaignEvent) error
	ListByCampaign(ctx context.Context, campaignID uint64) ([]model.CampaignEvent, error)
}
