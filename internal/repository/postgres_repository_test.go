package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
)

var campaignColumnNames = []string{"id", "creator", "goal", "pledged", "deadline", "state",
	"perk_threshold", "perk_reward_asset", "perk_reward_amount",
	"pledge_asset", "funds_claimed", "created_at", "resolved_at"}

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresRepository{DB: db}, mock
}

func TestPostgresGetCampaignScansNumericColumns(t *testing.T) {
	repo, mock := newMockRepository(t)
	deadline := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	created := deadline.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM campaigns WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(campaignColumnNames).AddRow(
			int64(3), "alice", []byte("18446744073709551615"), []byte("150"), deadline, "active",
			[]byte("100"), []byte("CHRONOS"), int64(5),
			"XLM", false, created, nil))
	mock.ExpectQuery(`SELECT backer, amount FROM campaign_backers`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"backer", "amount"}).
			AddRow("bob", []byte("100")).
			AddRow("charlie", []byte("50")))
	mock.ExpectQuery(`SELECT backer FROM campaign_perk_grants`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"backer"}).AddRow("bob"))
	mock.ExpectCommit()

	var c *model.Campaign
	err := repo.InTx(context.Background(), func(tx Tx) error {
		var err error
		c, err = tx.GetCampaign(context.Background(), 3)
		return err
	})
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}

	if c.Goal != math.MaxUint64 || c.Pledged != 150 {
		t.Errorf("goal/pledged = %d/%d", c.Goal, c.Pledged)
	}
	if c.Perk == nil || c.Perk.Threshold != 100 || c.Perk.RewardAsset != "CHRONOS" || c.Perk.RewardAmount != 5 {
		t.Errorf("unexpected perk %+v", c.Perk)
	}
	if c.Backers["bob"] != 100 || c.Backers["charlie"] != 50 || c.SumBackers() != c.Pledged {
		t.Errorf("unexpected backers %v", c.Backers)
	}
	if !c.PerksGranted["bob"] || c.PerksGranted["charlie"] {
		t.Errorf("unexpected perk grants %v", c.PerksGranted)
	}
	if c.ResolvedAt != nil {
		t.Errorf("expected unresolved campaign")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresGetCampaignWithoutPerk(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM campaigns WHERE id=\$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(campaignColumnNames).AddRow(
			int64(0), "alice", []byte("10"), []byte("0"), now, "failed",
			nil, nil, nil,
			"", false, now, now))
	mock.ExpectQuery(`FROM campaign_backers`).WillReturnRows(sqlmock.NewRows([]string{"backer", "amount"}))
	mock.ExpectQuery(`FROM campaign_perk_grants`).WillReturnRows(sqlmock.NewRows([]string{"backer"}))
	mock.ExpectCommit()

	var c *model.Campaign
	err := repo.InTx(context.Background(), func(tx Tx) error {
		var err error
		c, err = tx.GetCampaign(context.Background(), 0)
		return err
	})
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if c.Perk != nil {
		t.Errorf("expected no perk, got %+v", c.Perk)
	}
	if c.State != model.StateFailed || c.ResolvedAt == nil {
		t.Errorf("unexpected resolution %s %v", c.State, c.ResolvedAt)
	}
}

func TestPostgresTransferShortBalance(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE asset_balances SET balance = balance - \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT balance FROM asset_balances`).
		WithArgs("XLM", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow([]byte("200")))
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx Tx) error {
		return tx.Transfer(context.Background(), "XLM", "bob", "escrow", 500)
	})
	if !appErrors.IsKind(err, appErrors.InsufficientBalance) {
		t.Fatalf("expected InsufficientBalance, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresTransferReportsBalanceLookupFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	lookupErr := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE asset_balances SET balance = balance - \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT balance FROM asset_balances`).WillReturnError(lookupErr)
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(tx Tx) error {
		return tx.Transfer(context.Background(), "XLM", "bob", "escrow", 500)
	})
	if !errors.Is(err, lookupErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
	if appErrors.IsKind(err, appErrors.InsufficientBalance) {
		t.Errorf("lookup failure reported as InsufficientBalance")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgresListCampaignsFiltersByCreator(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns WHERE TRUE AND state=\$1 AND creator=\$2`).
		WithArgs("active", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(`FROM campaigns WHERE TRUE AND state=\$1 AND creator=\$2 ORDER BY id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("active", "alice", 20, 0).
		WillReturnRows(sqlmock.NewRows(campaignColumnNames).AddRow(
			int64(4), "alice", []byte("10"), []byte("0"), now, "active",
			nil, nil, nil,
			"", false, now, nil))
	mock.ExpectQuery(`FROM campaign_backers`).WillReturnRows(sqlmock.NewRows([]string{"backer", "amount"}))
	mock.ExpectQuery(`FROM campaign_perk_grants`).WillReturnRows(sqlmock.NewRows([]string{"backer"}))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx Tx) error {
		campaigns, total, err := tx.ListCampaigns(context.Background(), 0, 20, "active", "alice")
		if err != nil {
			return err
		}
		if total != 1 || len(campaigns) != 1 || campaigns[0].ID != 4 {
			t.Errorf("unexpected listing %d %+v", total, campaigns)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ListCampaigns: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
