package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
	"github.com/unclebandit/pledge-escrow/internal/repository"
)

func TestMemoryRollbackDiscardsEveryWrite(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx repository.Tx) error {
		return tx.Credit(ctx, "XLM", "bob", 100)
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = repo.InTx(ctx, func(tx repository.Tx) error {
		id, err := tx.NextCampaignID(ctx)
		if err != nil {
			return err
		}
		if err := tx.SaveCampaign(ctx, &model.Campaign{ID: id, Goal: 1, State: model.StateActive}); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, "XLM", "bob", "escrow", 60); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = repo.InTx(ctx, func(tx repository.Tx) error {
		if b, _ := tx.Balance(ctx, "XLM", "bob"); b != 100 {
			t.Errorf("expected bob 100 after rollback, got %d", b)
		}
		if b, _ := tx.Balance(ctx, "XLM", "escrow"); b != 0 {
			t.Errorf("expected escrow 0 after rollback, got %d", b)
		}
		if _, err := tx.GetCampaign(ctx, 0); !appErrors.IsKind(err, appErrors.CampaignNotFound) {
			t.Errorf("expected campaign 0 absent, got %v", err)
		}
		if id, _ := tx.NextCampaignID(ctx); id != 0 {
			t.Errorf("expected counter untouched, got %d", id)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemoryTransferInsufficientBalance(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Credit(ctx, "XLM", "bob", 10); err != nil {
			return err
		}
		return tx.Transfer(ctx, "XLM", "bob", "escrow", 11)
	})
	if !appErrors.IsKind(err, appErrors.InsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
}

func TestMemoryCampaignsAreCopies(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	c := &model.Campaign{ID: 0, Goal: 10, State: model.StateActive, Backers: map[string]uint64{"bob": 1}, Pledged: 1}
	if err := repo.InTx(ctx, func(tx repository.Tx) error { return tx.SaveCampaign(ctx, c) }); err != nil {
		t.Fatal(err)
	}
	c.Backers["bob"] = 99

	repo.InTx(ctx, func(tx repository.Tx) error {
		got, err := tx.GetCampaign(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got.Backers["bob"] != 1 {
			t.Errorf("stored campaign aliased caller map: %d", got.Backers["bob"])
		}
		return nil
	})
}

func TestMemoryListExpiredActive(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.InTx(ctx, func(tx repository.Tx) error {
		tx.SaveCampaign(ctx, &model.Campaign{ID: 0, State: model.StateActive, Deadline: now})
		tx.SaveCampaign(ctx, &model.Campaign{ID: 1, State: model.StateActive, Deadline: now.Add(time.Minute)})
		tx.SaveCampaign(ctx, &model.Campaign{ID: 2, State: model.StateFailed, Deadline: now.Add(-time.Hour)})
		tx.SaveCampaign(ctx, &model.Campaign{ID: 3, State: model.StateActive, Deadline: now.Add(-time.Hour)})
		return nil
	})

	var ids []uint64
	repo.InTx(ctx, func(tx repository.Tx) error {
		var err error
		ids, err = tx.ListExpiredActive(ctx, now, 10)
		return err
	})
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 3 {
		t.Fatalf("expected [0 3], got %v", ids)
	}
}

func TestMemoryListCampaignsFilters(t *testing.T) {
	repo := repository.NewMemoryRepository()
	ctx := context.Background()

	repo.InTx(ctx, func(tx repository.Tx) error {
		tx.SaveCampaign(ctx, &model.Campaign{ID: 0, Creator: "alice", State: model.StateActive})
		tx.SaveCampaign(ctx, &model.Campaign{ID: 1, Creator: "bob", State: model.StateActive})
		tx.SaveCampaign(ctx, &model.Campaign{ID: 2, Creator: "alice", State: model.StateFailed})
		return nil
	})

	cases := []struct {
		state, creator string
		want           []uint64
	}{
		{"", "", []uint64{2, 1, 0}},
		{"", "alice", []uint64{2, 0}},
		{"active", "alice", []uint64{0}},
		{"failed", "bob", []uint64{}},
	}
	for _, tc := range cases {
		repo.InTx(ctx, func(tx repository.Tx) error {
			campaigns, total, err := tx.ListCampaigns(ctx, 0, 10, tc.state, tc.creator)
			if err != nil {
				t.Fatal(err)
			}
			if total != len(tc.want) || len(campaigns) != len(tc.want) {
				t.Fatalf("state=%q creator=%q: got %d of %d, want %v", tc.state, tc.creator, len(campaigns), total, tc.want)
			}
			for i, c := range campaigns {
				if c.ID != tc.want[i] {
					t.Errorf("state=%q creator=%q: position %d is %d, want %d", tc.state, tc.creator, i, c.ID, tc.want[i])
				}
			}
			return nil
		})
	}
}

func TestMemoryAuditAppendIsIdempotent(t *testing.T) {
	audit := repository.NewMemoryAuditRepository()
	ctx := context.Background()
	ev := model.CampaignEvent{ID: "e1", Type: model.EventPledgeReceived, CampaignID: 4}

	audit.Append(ctx, ev)
	audit.Append(ctx, ev)

	events, _ := audit.ListByCampaign(ctx, 4)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}
