// internal/service/ranking/infrastructure/redis_live.go
package infrastructure

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pkg/errors"

	"tally/internal/pkg/redis"
	"tally/internal/service/ranking/domain"
)

// RedisLiveStore 用每周期一个 ZSET 承载近实时榜单。
// 分数写入是 ZADD 绝对值覆盖, 与指标真相表收敛到同一个值。
type RedisLiveStore struct {
	client *redis.Client
}

func NewRedisLiveStore(client *redis.Client) *RedisLiveStore {
	return &RedisLiveStore{client: client}
}

func zsetKey(period domain.Period, periodKey string) string {
	return fmt.Sprintf("ranking:%s:%s", period, periodKey)
}

func (s *RedisLiveStore) UpdateScore(ctx context.Context, period domain.Period, periodKey string, productID int64, score float64) error {
	err := s.client.GetClient().ZAdd(ctx, zsetKey(period, periodKey), goredis.Z{
		Score:  score,
		Member: strconv.FormatInt(productID, 10),
	}).Err()
	return errors.Wrapf(err, "zadd %s", zsetKey(period, periodKey))
}

func (s *RedisLiveStore) Page(ctx context.Context, period domain.Period, periodKey string, page, size int) ([]domain.RankingEntry, error) {
	start := int64((page - 1) * size)
	stop := start + int64(size) - 1
	return s.revRange(ctx, zsetKey(period, periodKey), start, stop)
}

func (s *RedisLiveStore) TopN(ctx context.Context, period domain.Period, periodKey string, n int) ([]domain.RankingEntry, error) {
	if n < 1 {
		return nil, nil
	}
	return s.revRange(ctx, zsetKey(period, periodKey), 0, int64(n)-1)
}

func (s *RedisLiveStore) revRange(ctx context.Context, key string, start, stop int64) ([]domain.RankingEntry, error) {
	zs, err := s.client.GetClient().ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "zrevrange %s", key)
	}
	entries := make([]domain.RankingEntry, 0, len(zs))
	for i, z := range zs {
		id, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed member in %s", key)
		}
		entries = append(entries, domain.RankingEntry{
			ProductID: id,
			Rank:      int(start) + i + 1,
			Score:     z.Score,
		})
	}
	return entries, nil
}

func (s *RedisLiveStore) TiedAt(ctx context.Context, period domain.Period, periodKey string, score float64) ([]domain.RankingEntry, error) {
	key := zsetKey(period, periodKey)
	exact := strconv.FormatFloat(score, 'f', -1, 64)
	zs, err := s.client.GetClient().ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{Min: exact, Max: exact}).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "zrangebyscore %s", key)
	}
	entries := make([]domain.RankingEntry, 0, len(zs))
	for _, z := range zs {
		id, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed member in %s", key)
		}
		entries = append(entries, domain.RankingEntry{ProductID: id, Score: z.Score})
	}
	return entries, nil
}

func (s *RedisLiveStore) CountAbove(ctx context.Context, period domain.Period, periodKey string, score float64) (int, error) {
	key := zsetKey(period, periodKey)
	min := "(" + strconv.FormatFloat(score, 'f', -1, 64)
	n, err := s.client.GetClient().ZCount(ctx, key, min, "+inf").Result()
	if err != nil {
		return 0, errors.Wrapf(err, "zcount %s", key)
	}
	return int(n), nil
}

func (s *RedisLiveStore) Rank(ctx context.Context, period domain.Period, periodKey string, productID int64) (int, error) {
	rank, err := s.client.GetClient().ZRevRank(ctx, zsetKey(period, periodKey), strconv.FormatInt(productID, 10)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, domain.ErrNotRanked
	}
	if err != nil {
		return 0, errors.Wrapf(err, "zrevrank %s", zsetKey(period, periodKey))
	}
	return int(rank) + 1, nil
}

func (s *RedisLiveStore) Score(ctx context.Context, period domain.Period, periodKey string, productID int64) (float64, error) {
	score, err := s.client.GetClient().ZScore(ctx, zsetKey(period, periodKey), strconv.FormatInt(productID, 10)).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, domain.ErrNotRanked
	}
	if err != nil {
		return 0, errors.Wrapf(err, "zscore %s", zsetKey(period, periodKey))
	}
	return score, nil
}
