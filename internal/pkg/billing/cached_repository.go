package billing

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/fit9to5/billing-api/app/models"
	"github.com/fit9to5/billing-api/internal/pkg/cache"
)

const statusCacheTTL = 10 * time.Minute

// cachedRepository keeps a read-through copy of subscription statuses in
// Redis. MySQL stays authoritative: cache errors are logged and the call
// falls through to the wrapped repository.
//
// Writes never put a value into the cache. SetStatus bumps the subject's
// generation key and drops the cached status; a fill after a miss runs under
// WATCH on the generation key, so a fill that read MySQL before a concurrent
// write is discarded instead of resurrecting the old status.
type cachedRepository struct {
	Repository
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedRepository wraps repo with a Redis status cache. A nil client
// returns repo unchanged.
func NewCachedRepository(repo Repository, rdb *redis.Client) Repository {
	if rdb == nil {
		return repo
	}
	return &cachedRepository{Repository: repo, rdb: rdb, ttl: statusCacheTTL}
}

func (r *cachedRepository) GetStatus(ctx context.Context, subject string) (models.SubscriptionStatus, error) {
	key := cache.StatusKey(subject)
	raw, err := r.rdb.Get(ctx, key).Result()
	if err == nil {
		return models.ParseSubscriptionStatus(raw), nil
	}
	if !errors.Is(err, redis.Nil) {
		log.Warnf("[Billing] status cache read failed for subject %s: %v", subject, err)
		return r.Repository.GetStatus(ctx, subject)
	}

	var status models.SubscriptionStatus
	var storeErr error
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		status, storeErr = r.Repository.GetStatus(ctx, subject)
		if storeErr != nil {
			return storeErr
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(status), r.ttl)
			return nil
		})
		return err
	}, cache.StatusGenerationKey(subject))

	switch {
	case storeErr != nil:
		return "", storeErr
	case status == "":
		// WATCH itself failed before the store was read.
		log.Warnf("[Billing] status cache fill failed for subject %s: %v", subject, err)
		return r.Repository.GetStatus(ctx, subject)
	case errors.Is(err, redis.TxFailedErr):
		log.Debugf("[Billing] status cache fill for subject %s skipped, concurrent write", subject)
	case err != nil:
		log.Warnf("[Billing] status cache fill failed for subject %s: %v", subject, err)
	}
	return status, nil
}

func (r *cachedRepository) SetStatus(ctx context.Context, subject string, status models.SubscriptionStatus) error {
	if err := r.Repository.SetStatus(ctx, subject, status); err != nil {
		return err
	}
	genKey := cache.StatusGenerationKey(subject)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, r.ttl)
		pipe.Del(ctx, cache.StatusKey(subject))
		return nil
	})
	if err != nil {
		log.Errorf("[Billing] status cache invalidation failed for subject %s: %v", subject, err)
	}
	return nil
}
