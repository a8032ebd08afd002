package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
	"github.com/patrickmn/go-cache"
)

// CachedTransferSource memoizes successful transfer queries per account and range. Failures are
// never cached.
type CachedTransferSource struct {
	next  TransferSource
	cache *cache.Cache
}

// NewCachedTransferSource wraps next with a cache of the given TTL.
func NewCachedTransferSource(next TransferSource, ttl time.Duration) *CachedTransferSource {
	return &CachedTransferSource{next: next, cache: cache.New(ttl, 2*ttl)}
}

func cacheKey(account string, r *models.DateRange) string {
	key := "transfers:" + processors.NormalizeAccount(account)
	if r != nil {
		key += fmt.Sprintf(":%d:%d", unixOrZero(r.From), unixOrZero(r.To))
	}
	return key
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// Transfers implements processors.TransferSource.
func (c *CachedTransferSource) Transfers(ctx context.Context, account string, r *models.DateRange) ([]models.Transfer, error) {
	key := cacheKey(account, r)
	if cached, found := c.cache.Get(key); found {
		logger.FromContext(ctx).Debug("Transfer cache hit", "key", key)
		return cloneTransfers(cached.([]models.Transfer)), nil
	}

	transfers, err := c.next.Transfers(ctx, account, r)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, cloneTransfers(transfers), cache.DefaultExpiration)
	return transfers, nil
}

// Invalidate drops every cached query.
func (c *CachedTransferSource) Invalidate() {
	c.cache.Flush()
}

func cloneTransfers(in []models.Transfer) []models.Transfer {
	out := make([]models.Transfer, len(in))
	copy(out, in)
	return out
}
