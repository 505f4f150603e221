package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheutil "sigex/internal/cache"
	"sigex/internal/model"
)

type fakeBalanceModel struct {
	mu          sync.Mutex
	rows        []*model.BalanceSnapshot
	latestCalls int
}

func (f *fakeBalanceModel) Insert(_ context.Context, data *model.BalanceSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *data
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeBalanceModel) FindLatest(_ context.Context, provider string) (*model.BalanceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].Provider == provider {
			clone := *f.rows[i]
			return &clone, nil
		}
	}
	return nil, model.ErrNotFound
}

func TestAccountingRepoLatestSnapshot(t *testing.T) {
	balances := &fakeBalanceModel{}
	repo := newAccountingRepo(Dependencies{
		Cache:                 newMemoryCache(),
		TTL:                   cacheutil.TTLSet{Short: 10 * time.Second, Medium: time.Minute, Long: 5 * time.Minute},
		BalanceSnapshotsModel: balances,
	})

	snap := &model.BalanceSnapshot{
		Provider:      "bingx",
		Asset:         "USDT",
		WalletBalance: "1000.5",
		Equity:        "1012.25",
	}
	require.NoError(t, repo.SaveSnapshot(context.Background(), snap))
	assert.NotEmpty(t, snap.ID)
	assert.False(t, snap.CreatedAt.IsZero())

	got, err := repo.LatestSnapshot(context.Background(), "bingx")
	require.NoError(t, err)
	assert.Equal(t, "1012.25", got.Equity)
	assert.Equal(t, 1, balances.latestCalls)

	// Cached on the second read.
	_, err = repo.LatestSnapshot(context.Background(), "bingx")
	require.NoError(t, err)
	assert.Equal(t, 1, balances.latestCalls)

	// A new snapshot invalidates the cached row.
	require.NoError(t, repo.SaveSnapshot(context.Background(), &model.BalanceSnapshot{
		Provider: "bingx",
		Asset:    "USDT",
		Equity:   "1020",
	}))
	got, err = repo.LatestSnapshot(context.Background(), "bingx")
	require.NoError(t, err)
	assert.Equal(t, "1020", got.Equity)
	assert.Equal(t, 2, balances.latestCalls)

	_, err = repo.LatestSnapshot(context.Background(), "unknown")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Error(t, repo.SaveSnapshot(context.Background(), nil))
}
