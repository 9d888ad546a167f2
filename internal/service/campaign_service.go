// internal/service/campaign_service.go
package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/pledge-escrow/internal/auth"
	"github.com/unclebandit/pledge-escrow/internal/clock"
	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/queue"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

// DefaultEscrowAccount is the custody identity used when none is configured.
const DefaultEscrowAccount = "escrow"

// CampaignService runs every escrow operation as one unit of work against Repo.
// Events are published to Queue only after the unit of work commits.
type CampaignService struct {
	Repo          repository.UnitOfWork
	Auth          auth.Authenticator
	Clock         clock.Clock
	Queue         queue.Queue
	EscrowAccount string
	EventsTopic   string
}

// PerkConfig is the optional reward supplied at creation.
type PerkConfig struct {
	Threshold    uint64 `json:"threshold"`
	RewardAsset  string `json:"reward_asset"`
	RewardAmount int64  `json:"reward_amount"`
}

// normalizePerk drops incomplete perk input instead of rejecting the campaign.
func normalizePerk(cfg *PerkConfig) *model.Perk {
	if cfg == nil || cfg.Threshold == 0 || cfg.RewardAsset == "" || cfg.RewardAmount <= 0 {
		return nil
	}
	return &model.Perk{
		Threshold:    cfg.Threshold,
		RewardAsset:  cfg.RewardAsset,
		RewardAmount: cfg.RewardAmount,
	}
}

func (s *CampaignService) escrowAccount() string {
	if s.EscrowAccount == "" {
		return DefaultEscrowAccount
	}
	return s.EscrowAccount
}

func (s *CampaignService) eventsTopic() string {
	if s.EventsTopic == "" {
		return queue.CampaignEventsTopic
	}
	return s.EventsTopic
}

func (s *CampaignService) newEvent(typ string, c *model.Campaign, actor, asset string, amount uint64, now time.Time) model.CampaignEvent {
	return model.CampaignEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		CampaignID: c.ID,
		Actor:      actor,
		Asset:      asset,
		Amount:     amount,
		State:      c.State,
		OccurredAt: now,
	}
}

func (s *CampaignService) publish(events []model.CampaignEvent) {
	if s.Queue == nil {
		return
	}
	for _, ev := range events {
		if err := s.Queue.Publish(s.eventsTopic(), ev); err != nil {
			log.Printf("⚠️ failed to publish %s for campaign %d: %v", ev.Type, ev.CampaignID, err)
		}
	}
}

// CreateCampaign registers a new Active campaign and returns its identifier.
func (s *CampaignService) CreateCampaign(ctx context.Context, creator string, goal uint64, deadline time.Time, perk *PerkConfig) (uint64, error) {
	if err := s.Auth.RequireAuth(ctx, creator); err != nil {
		return 0, err
	}
	if creator == s.escrowAccount() {
		return 0, appErrors.Newf(appErrors.Unauthorized, 0, "custody account %s cannot create campaigns", creator)
	}
	if goal == 0 {
		return 0, appErrors.New(appErrors.InvalidGoalAmount, 0)
	}
	now := s.Clock.Now()
	if !deadline.After(now) {
		return 0, appErrors.Newf(appErrors.DeadlineInThePast, 0, "deadline %s is not after %s",
			deadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	var (
		id     uint64
		events []model.CampaignEvent
	)
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		events = nil
		next, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		c := &model.Campaign{
			ID:           next,
			Creator:      creator,
			Goal:         goal,
			Deadline:     deadline.UTC(),
			State:        model.StateActive,
			Backers:      map[string]uint64{},
			Perk:         normalizePerk(perk),
			PerksGranted: map[string]bool{},
			CreatedAt:    now,
		}
		if err := tx.SaveCampaign(ctx, c); err != nil {
			return err
		}
		id = next
		events = append(events, s.newEvent(model.EventCampaignCreated, c, creator, "", goal, now))
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("Campaign %d created by %s with goal %d", id, creator, goal)
	s.publish(events)
	return id, nil
}

// GetCampaign is a read-only lookup.
func (s *CampaignService) GetCampaign(ctx context.Context, id uint64) (*model.Campaign, error) {
	var c *model.Campaign
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		c, err = tx.GetCampaign(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination. Empty state or creator
// leaves that filter off.
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, state, creator string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	var (
		ptrs  []*model.Campaign
		total int
	)
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		ptrs, total, err = tx.ListCampaigns(ctx, offset, pageSize, state, creator)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetBalance reports holder's balance of asset.
func (s *CampaignService) GetBalance(ctx context.Context, asset, holder string) (uint64, error) {
	var balance uint64
	err := s.Repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		balance, err = tx.Balance(ctx, asset, holder)
		return err
	})
	return balance, err
}
