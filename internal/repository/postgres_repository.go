package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
)

// PostgresRepository runs each unit of work in a database transaction.
// Campaign rows are read FOR UPDATE so invocations on one campaign serialize.
type PostgresRepository struct {
	DB *sql.DB
}

func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

// ====================== Campaigns ======================

func (t *postgresTx) NextCampaignID(ctx context.Context) (uint64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		`UPDATE campaign_counter SET next_id = next_id + 1 WHERE singleton RETURNING next_id - 1`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("advance campaign counter: %w", err)
	}
	return uint64(id), nil
}

const campaignColumns = `id, creator, goal, pledged, deadline, state,
        perk_threshold, perk_reward_asset, perk_reward_amount,
        pledge_asset, funds_claimed, created_at, resolved_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c             model.Campaign
		id            int64
		state         string
		perkThreshold sql.NullString
		perkAsset     sql.NullString
		perkAmount    sql.NullInt64
		resolvedAt    sql.NullTime
		goal, pledged numeric
	)
	err := row.Scan(&id, &c.Creator, &goal, &pledged, &c.Deadline, &state,
		&perkThreshold, &perkAsset, &perkAmount,
		&c.PledgeAsset, &c.FundsClaimed, &c.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	c.ID = uint64(id)
	c.Goal = uint64(goal)
	c.Pledged = uint64(pledged)
	c.State = model.CampaignState(state)
	if perkThreshold.Valid && perkAsset.Valid && perkAmount.Valid {
		var threshold numeric
		if err := threshold.parse(perkThreshold.String); err != nil {
			return nil, err
		}
		c.Perk = &model.Perk{Threshold: uint64(threshold), RewardAsset: perkAsset.String, RewardAmount: perkAmount.Int64}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	c.Backers = map[string]uint64{}
	c.PerksGranted = map[string]bool{}
	return &c, nil
}

func (t *postgresTx) loadBackers(ctx context.Context, c *model.Campaign) error {
	rows, err := t.tx.QueryContext(ctx, `SELECT backer, amount FROM campaign_backers WHERE campaign_id=$1`, int64(c.ID))
	if err != nil {
		return err
	}
	for rows.Next() {
		var backer string
		var amount numeric
		if err := rows.Scan(&backer, &amount); err != nil {
			rows.Close()
			return err
		}
		c.Backers[backer] = uint64(amount)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	grants, err := t.tx.QueryContext(ctx, `SELECT backer FROM campaign_perk_grants WHERE campaign_id=$1`, int64(c.ID))
	if err != nil {
		return err
	}
	defer grants.Close()
	for grants.Next() {
		var backer string
		if err := grants.Scan(&backer); err != nil {
			return err
		}
		c.PerksGranted[backer] = true
	}
	return grants.Err()
}

func (t *postgresTx) GetCampaign(ctx context.Context, id uint64) (*model.Campaign, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1 FOR UPDATE`, int64(id))
	c, err := scanCampaign(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	if err := t.loadBackers(ctx, c); err != nil {
		return nil, fmt.Errorf("load backers of campaign %d: %w", id, err)
	}
	return c, nil
}

func (t *postgresTx) SaveCampaign(ctx context.Context, c *model.Campaign) error {
	var (
		perkThreshold any
		perkAsset     any
		perkAmount    any
	)
	if c.Perk != nil {
		perkThreshold = numeric(c.Perk.Threshold)
		perkAsset = c.Perk.RewardAsset
		perkAmount = c.Perk.RewardAmount
	}
	query := `
        INSERT INTO campaigns (` + campaignColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (id) DO UPDATE
        SET pledged=EXCLUDED.pledged, state=EXCLUDED.state, pledge_asset=EXCLUDED.pledge_asset,
            funds_claimed=EXCLUDED.funds_claimed, resolved_at=EXCLUDED.resolved_at
    `
	_, err := t.tx.ExecContext(ctx, query,
		int64(c.ID), c.Creator, numeric(c.Goal), numeric(c.Pledged), c.Deadline, string(c.State),
		perkThreshold, perkAsset, perkAmount,
		c.PledgeAsset, c.FundsClaimed, c.CreatedAt, c.ResolvedAt)
	if err != nil {
		return fmt.Errorf("save campaign %d: %w", c.ID, err)
	}

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM campaign_backers WHERE campaign_id=$1`, int64(c.ID)); err != nil {
		return err
	}
	for backer, amount := range c.Backers {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO campaign_backers (campaign_id, backer, amount) VALUES ($1, $2, $3)`,
			int64(c.ID), backer, numeric(amount))
		if err != nil {
			return fmt.Errorf("save backer %s of campaign %d: %w", backer, c.ID, err)
		}
	}
	for backer := range c.PerksGranted {
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO campaign_perk_grants (campaign_id, backer) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			int64(c.ID), backer)
		if err != nil {
			return fmt.Errorf("save perk grant %s of campaign %d: %w", backer, c.ID, err)
		}
	}
	return nil
}

func (t *postgresTx) ListCampaigns(ctx context.Context, offset, limit int, state, creator string) ([]*model.Campaign, int, error) {
	where := ""
	args := []any{}
	if state != "" {
		args = append(args, state)
		where += fmt.Sprintf(" AND state=$%d", len(args))
	}
	if creator != "" {
		args = append(args, creator)
		where += fmt.Sprintf(" AND creator=$%d", len(args))
	}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE TRUE` + where
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE TRUE` + where

	var total int
	if err := t.tx.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, c := range campaigns {
		if err := t.loadBackers(ctx, c); err != nil {
			return nil, 0, err
		}
	}
	return campaigns, total, nil
}

func (t *postgresTx) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id FROM campaigns WHERE state=$1 AND deadline <= $2 ORDER BY id LIMIT $3`,
		string(model.StateActive), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

// ====================== Asset balances ======================

func (t *postgresTx) Transfer(ctx context.Context, asset, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE asset_balances SET balance = balance - $1 WHERE asset=$2 AND holder=$3 AND balance >= $1`,
		numeric(amount), asset, from)
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		have, err := t.Balance(ctx, asset, from)
		if err != nil {
			return fmt.Errorf("read balance of %s: %w", from, err)
		}
		return appErrors.Newf(appErrors.InsufficientBalance, 0, "%s holds %d of %s, needs %d", from, have, asset, amount)
	}
	return t.Credit(ctx, asset, to, amount)
}

func (t *postgresTx) Credit(ctx context.Context, asset, holder string, amount uint64) error {
	_, err := t.tx.ExecContext(ctx, `
        INSERT INTO asset_balances (asset, holder, balance) VALUES ($1, $2, $3)
        ON CONFLICT (asset, holder) DO UPDATE SET balance = asset_balances.balance + EXCLUDED.balance
    `, asset, holder, numeric(amount))
	if err != nil {
		return fmt.Errorf("credit %s: %w", holder, err)
	}
	return nil
}

func (t *postgresTx) Balance(ctx context.Context, asset, holder string) (uint64, error) {
	var balance numeric
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM asset_balances WHERE asset=$1 AND holder=$2`, asset, holder).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

// ====================== Audit trail ======================

type PostgresAuditRepository struct {
	DB *sql.DB
}

// Append is idempotent on event ID so redelivered messages are harmless.
func (r *PostgresAuditRepository) Append(ctx context.Context, ev model.CampaignEvent) error {
	query := `
        INSERT INTO campaign_events (id, type, campaign_id, actor, asset, amount, state, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING
    `
	_, err := r.DB.ExecContext(ctx, query, ev.ID, ev.Type, int64(ev.CampaignID), ev.Actor, ev.Asset,
		numeric(ev.Amount), string(ev.State), ev.OccurredAt)
	return err
}

func (r *PostgresAuditRepository) ListByCampaign(ctx context.Context, campaignID uint64) ([]model.CampaignEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, type, campaign_id, actor, asset, amount, state, occurred_at
        FROM campaign_events WHERE campaign_id=$1 ORDER BY occurred_at
    `, int64(campaignID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CampaignEvent{}
	for rows.Next() {
		var (
			ev     model.CampaignEvent
			id     int64
			amount numeric
			state  string
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &id, &ev.Actor, &ev.Asset, &amount, &state, &ev.OccurredAt); err != nil {
			return nil, err
		}
		ev.CampaignID = uint64(id)
		ev.Amount = uint64(amount)
		ev.State = model.CampaignState(state)
		out = append(out, ev)
	}
	return out, rows.Err()
}

var (
	_ UnitOfWork      = (*PostgresRepository)(nil)
	_ AuditRepository = (*PostgresAuditRepository)(nil)
)
