package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/stores/cache"

	cacheutil "sigex/internal/cache"
	"sigex/internal/model"
)

// DefaultRecentLimit bounds the cached recent-orders listing.
const DefaultRecentLimit = 50

// OrdersRepo persists and serves order audit rows.
type OrdersRepo interface {
	// Save writes one audit row, assigning ID and CreatedAt when unset.
	Save(ctx context.Context, audit *model.OrderAudit) error
	// Recent returns the newest rows. The DefaultRecentLimit listing is
	// cached with a short TTL; other limits query Postgres directly.
	Recent(ctx context.Context, limit int) ([]*model.OrderAudit, error)
	// RecentBySymbols narrows Recent to a symbol set, uncached.
	RecentBySymbols(ctx context.Context, symbols []string, limit int) ([]*model.OrderAudit, error)
	// FindByClientOrderID resolves one audit row by its idempotency key.
	FindByClientOrderID(ctx context.Context, clientOrderID string) (*model.OrderAudit, error)
}

type ordersRepo struct {
	orders model.OrderAuditModel
	cache  cache.Cache
	ttl    cacheutil.TTLSet
}

func newOrdersRepo(deps Dependencies) OrdersRepo {
	return &ordersRepo{
		orders: deps.OrderAuditModel,
		cache:  deps.Cache,
		ttl:    deps.TTL,
	}
}

func (r *ordersRepo) Save(ctx context.Context, audit *model.OrderAudit) error {
	if audit == nil {
		return errors.New("ordersRepo.Save: nil audit row")
	}
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	if err := r.orders.Insert(ctx, audit); err != nil {
		return err
	}

	keys := []string{cacheutil.OrdersRecentKey()}
	if audit.ClientOrderID != "" {
		keys = append(keys, cacheutil.OrderByCloidKey(audit.ClientOrderID))
	}
	delCache(ctx, r.cache, keys...)
	return nil
}

func (r *ordersRepo) Recent(ctx context.Context, limit int) ([]*model.OrderAudit, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit != DefaultRecentLimit {
		return r.orders.FindRecent(ctx, limit)
	}

	key := cacheutil.OrdersRecentKey()
	var cached []*model.OrderAudit
	if ok, _ := getCache(ctx, r.cache, key, &cached); ok {
		return cached, nil
	}

	rows, err := r.orders.FindRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	setCache(ctx, r.cache, key, cacheutil.OrdersRecentTTL(r.ttl), rows)
	return rows, nil
}

func (r *ordersRepo) RecentBySymbols(ctx context.Context, symbols []string, limit int) ([]*model.OrderAudit, error) {
	if len(symbols) == 0 {
		return r.Recent(ctx, limit)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return r.orders.FindRecentBySymbols(ctx, symbols, limit)
}

func (r *ordersRepo) FindByClientOrderID(ctx context.Context, clientOrderID string) (*model.OrderAudit, error) {
	if clientOrderID == "" {
		return nil, fmt.Errorf("ordersRepo.FindByClientOrderID: %w", model.ErrNotFound)
	}

	key := cacheutil.OrderByCloidKey(clientOrderID)
	var cached model.OrderAudit
	if ok, _ := getCache(ctx, r.cache, key, &cached); ok {
		return &cached, nil
	}

	row, err := r.orders.FindOneByClientOrderID(ctx, clientOrderID)
	if err != nil {
		return nil, err
	}
	setCache(ctx, r.cache, key, cacheutil.OrderByCloidTTL(r.ttl), row)
	return row, nil
}
