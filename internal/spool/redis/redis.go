// Package redis implements the offline spool on Redis, for hosts that prefer
// a shared spool over local disk. A sorted set scored by creation time keeps
// enumeration in FIFO order.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/metrics"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Store is a Redis-backed spool.
type Store struct {
	rdb    *redis.Client
	limit  int
	prefix string
}

// New connects to Redis and verifies the connection. limit <= 0 disables the
// bound. The prefix namespaces keys when several applications share one Redis.
func New(cfg Config, prefix string, limit int) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("spool: parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("spool: connect to redis: %w", err)
	}

	if prefix == "" {
		prefix = "crashkit"
	}
	return &Store{rdb: rdb, limit: limit, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) queueKey() string {
	return fmt.Sprintf("%s:reports", s.prefix)
}

func (s *Store) reportKey(id string) string {
	return fmt.Sprintf("%s:report:%s", s.prefix, id)
}

// Persist stores the serialized report and indexes it in the sorted set with
// creation time as the score. The oldest entry is evicted when the set is at
// the limit.
func (s *Store) Persist(ctx context.Context, rep *domain.Report) error {
	if s.limit > 0 {
		count, err := s.rdb.ZCard(ctx, s.queueKey()).Result()
		if err != nil {
			return fmt.Errorf("spool: zcard: %w", err)
		}
		for count >= int64(s.limit) {
			oldest, err := s.rdb.ZRange(ctx, s.queueKey(), 0, 0).Result()
			if err != nil {
				return fmt.Errorf("spool: zrange oldest: %w", err)
			}
			if len(oldest) == 0 {
				break
			}
			if err := s.remove(ctx, oldest[0]); err != nil {
				return err
			}
			metrics.ReportsEvicted.Inc()
			count--
		}
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("spool: marshal report %s: %w", rep.ID, err)
	}

	if err := s.rdb.Set(ctx, s.reportKey(rep.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("spool: set report %s: %w", rep.ID, err)
	}
	if err := s.rdb.ZAdd(ctx, s.queueKey(), redis.Z{
		Score:  float64(rep.Timestamp.UnixNano()),
		Member: rep.ID,
	}).Err(); err != nil {
		return fmt.Errorf("spool: index report %s: %w", rep.ID, err)
	}
	return nil
}

// Pending returns entries oldest first. Members whose value key has gone
// missing are dropped from the index and skipped.
func (s *Store) Pending(ctx context.Context) ([]domain.OfflineEntry, error) {
	ids, err := s.rdb.ZRange(ctx, s.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("spool: zrange: %w", err)
	}

	entries := make([]domain.OfflineEntry, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, s.reportKey(id)).Bytes()
		if err == redis.Nil {
			s.rdb.ZRem(ctx, s.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("spool: get report %s: %w", id, err)
		}

		var rep domain.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			continue
		}
		entries = append(entries, domain.OfflineEntry{
			ID:        rep.ID,
			CreatedAt: rep.Timestamp,
			Report:    &rep,
		})
	}
	return entries, nil
}

// Delete removes an entry; absent IDs are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.remove(ctx, id)
}

// Count returns the number of indexed entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	count, err := s.rdb.ZCard(ctx, s.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("spool: zcard: %w", err)
	}
	return int(count), nil
}

func (s *Store) remove(ctx context.Context, id string) error {
	if err := s.rdb.ZRem(ctx, s.queueKey(), id).Err(); err != nil {
		return fmt.Errorf("spool: zrem %s: %w", id, err)
	}
	if err := s.rdb.Del(ctx, s.reportKey(id)).Err(); err != nil {
		return fmt.Errorf("spool: del %s: %w", id, err)
	}
	return nil
}
