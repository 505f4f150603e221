package repo

import (
	"errors"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cacheutil "sigex/internal/cache"
	"sigex/internal/model"
)

// Dependencies bundles the table models and shared infrastructure required
// by repository implementations.
type Dependencies struct {
	DBConn sqlx.SqlConn
	Cache  cache.Cache
	TTL    cacheutil.TTLSet

	OrderAuditModel       model.OrderAuditModel
	BalanceSnapshotsModel model.BalanceSnapshotsModel
}

// Set exposes strongly typed repositories to application logic.
type Set struct {
	Orders     OrdersRepo
	Accounting AccountingRepo
}

// New constructs the repository set, validating required dependencies.
// Models left nil are built on the shared connection.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: missing DBConn dependency")
	}
	if deps.OrderAuditModel == nil {
		deps.OrderAuditModel = model.NewOrderAuditModel(deps.DBConn)
	}
	if deps.BalanceSnapshotsModel == nil {
		deps.BalanceSnapshotsModel = model.NewBalanceSnapshotsModel(deps.DBConn)
	}

	return &Set{
		Orders:     newOrdersRepo(deps),
		Accounting: newAccountingRepo(deps),
	}, nil
}
