package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/stores/cache"

	cacheutil "sigex/internal/cache"
	"sigex/internal/model"
)

// AccountingRepo persists margin-account snapshots taken by the monitor loop.
type AccountingRepo interface {
	// SaveSnapshot writes one snapshot row, assigning ID and CreatedAt when unset.
	SaveSnapshot(ctx context.Context, snap *model.BalanceSnapshot) error
	// LatestSnapshot returns the freshest snapshot for a provider, cache-aside.
	LatestSnapshot(ctx context.Context, provider string) (*model.BalanceSnapshot, error)
}

type accountingRepo struct {
	snapshots model.BalanceSnapshotsModel
	cache     cache.Cache
	ttl       cacheutil.TTLSet
}

func newAccountingRepo(deps Dependencies) AccountingRepo {
	return &accountingRepo{
		snapshots: deps.BalanceSnapshotsModel,
		cache:     deps.Cache,
		ttl:       deps.TTL,
	}
}

func (r *accountingRepo) SaveSnapshot(ctx context.Context, snap *model.BalanceSnapshot) error {
	if snap == nil {
		return errors.New("accountingRepo.SaveSnapshot: nil snapshot")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if err := r.snapshots.Insert(ctx, snap); err != nil {
		return err
	}
	delCache(ctx, r.cache, cacheutil.BalanceLatestKey(snap.Provider))
	return nil
}

func (r *accountingRepo) LatestSnapshot(ctx context.Context, provider string) (*model.BalanceSnapshot, error) {
	key := cacheutil.BalanceLatestKey(provider)
	var cached model.BalanceSnapshot
	if ok, _ := getCache(ctx, r.cache, key, &cached); ok {
		return &cached, nil
	}

	row, err := r.snapshots.FindLatest(ctx, provider)
	if err != nil {
		return nil, err
	}
	setCache(ctx, r.cache, key, cacheutil.BalanceLatestTTL(r.ttl), row)
	return row, nil
}
