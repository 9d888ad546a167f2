package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/pledge-escrow/internal/errors"
	"github.com/unclebandit/pledge-escrow/internal/model"
)

type balanceKey struct {
	asset  string
	holder string
}

// MemoryRepository keeps everything in process memory. Transactions are
// serialized by a single lock and buffered until commit.
type MemoryRepository struct {
	mu        sync.Mutex
	counter   uint64
	campaigns map[uint64]*model.Campaign
	balances  map[balanceKey]uint64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		campaigns: map[uint64]*model.Campaign{},
		balances:  map[balanceKey]uint64{},
	}
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{
		base:      r,
		counter:   r.counter,
		campaigns: map[uint64]*model.Campaign{},
		balances:  map[balanceKey]uint64{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.counter = tx.counter
	for id, c := range tx.campaigns {
		r.campaigns[id] = c.Clone()
	}
	for k, v := range tx.balances {
		r.balances[k] = v
	}
	return nil
}

type memoryTx struct {
	base      *MemoryRepository
	counter   uint64
	campaigns map[uint64]*model.Campaign
	balances  map[balanceKey]uint64
}

func (t *memoryTx) NextCampaignID(_ context.Context) (uint64, error) {
	id := t.counter
	t.counter++
	return id, nil
}

func (t *memoryTx) lookup(id uint64) (*model.Campaign, bool) {
	if c, ok := t.campaigns[id]; ok {
		return c, true
	}
	c, ok := t.base.campaigns[id]
	return c, ok
}

func (t *memoryTx) GetCampaign(_ context.Context, id uint64) (*model.Campaign, error) {
	c, ok := t.lookup(id)
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c.Clone(), nil
}

func (t *memoryTx) SaveCampaign(_ context.Context, c *model.Campaign) error {
	t.campaigns[c.ID] = c.Clone()
	return nil
}

func (t *memoryTx) all() []*model.Campaign {
	seen := map[uint64]bool{}
	out := []*model.Campaign{}
	for id, c := range t.campaigns {
		seen[id] = true
		out = append(out, c)
	}
	for id, c := range t.base.campaigns {
		if !seen[id] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (t *memoryTx) ListCampaigns(_ context.Context, offset, limit int, state, creator string) ([]*model.Campaign, int, error) {
	filtered := []*model.Campaign{}
	for _, c := range t.all() {
		if state != "" && string(c.State) != state {
			continue
		}
		if creator != "" && c.Creator != creator {
			continue
		}
		filtered = append(filtered, c)
	}
	total := len(filtered)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]*model.Campaign, 0, end-offset)
	for _, c := range filtered[offset:end] {
		page = append(page, c.Clone())
	}
	return page, total, nil
}

func (t *memoryTx) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	ids := []uint64{}
	for _, c := range t.all() {
		if c.State == model.StateActive && !now.Before(c.Deadline) {
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (t *memoryTx) balance(k balanceKey) uint64 {
	if v, ok := t.balances[k]; ok {
		return v
	}
	return t.base.balances[k]
}

func (t *memoryTx) Transfer(_ context.Context, asset, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	src := balanceKey{asset, from}
	dst := balanceKey{asset, to}
	have := t.balance(src)
	if have < amount {
		return appErrors.Newf(appErrors.InsufficientBalance, 0, "%s holds %d of %s, needs %d", from, have, asset, amount)
	}
	if from == to {
		return nil
	}
	if t.balance(dst) > math.MaxUint64-amount {
		return appErrors.Newf(appErrors.AmountOverflow, 0, "balance of %s in %s", to, asset)
	}
	t.balances[src] = have - amount
	t.balances[dst] = t.balance(dst) + amount
	return nil
}

func (t *memoryTx) Credit(_ context.Context, asset, holder string, amount uint64) error {
	k := balanceKey{asset, holder}
	if t.balance(k) > math.MaxUint64-amount {
		return appErrors.Newf(appErrors.AmountOverflow, 0, "balance of %s in %s", holder, asset)
	}
	t.balances[k] = t.balance(k) + amount
	return nil
}

func (t *memoryTx) Balance(_ context.Context, asset, holder string) (uint64, error) {
	return t.balance(balanceKey{asset, holder}), nil
}

// MemoryAuditRepository is the in-process audit trail.
type MemoryAuditRepository struct {
	mu   sync.Mutex
	rows []model.CampaignEvent
	seen map[string]bool
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{seen: map[string]bool{}}
}

// Append ignores events it has already stored.
func (r *MemoryAuditRepository) Append(_ context.Context, ev model.CampaignEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[ev.ID] {
		return nil
	}
	r.seen[ev.ID] = true
	r.rows = append(r.rows, ev)
	return nil
}

func (r *MemoryAuditRepository) ListByCampaign(_ context.Context, campaignID uint64) ([]model.CampaignEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.CampaignEvent{}
	for _, ev := range r.rows {
		if ev.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

var (
	_ UnitOfWork      = (*MemoryRepository)(nil)
	_ AuditRepository = (*MemoryAuditRepository)(nil)
)
