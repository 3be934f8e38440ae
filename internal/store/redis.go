package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	redisScanCount    = 200
	redisRequestLimit = 500
)

// RedisStore keeps records in a Redis keyspace scoped by namespace.
type RedisStore struct {
	client    *redis.Client
	namespace string
	logger    *log.Logger
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, namespace string, logger *log.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisStore{client: client, namespace: namespace, logger: logger}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, _ time.Time) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return b, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete keys: %w", err)
	}
	return n, nil
}

// Keys lists the keys starting with prefix in sorted order. SCAN may return a
// key more than once while the keyspace is rehashing, so results are deduped.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{}, 16)
	keys := make([]string, 0, 16)
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", redisScanCount).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if k == s.requestLogKey() {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	keys, err := s.Keys(ctx, s.namespace+"_")
	if err != nil {
		return st, err
	}
	for _, k := range keys {
		n, err := s.client.StrLen(ctx, k).Result()
		if err != nil {
			return st, fmt.Errorf("strlen %s: %w", k, err)
		}
		st.Keys++
		st.Bytes += n
	}
	return st, nil
}

// InsertMCPRequestLog pushes one request event onto a capped list.
func (s *RedisStore) InsertMCPRequestLog(ctx context.Context, rec MCPRequestLog) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal mcp request log: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.requestLogKey(), b)
	pipe.LTrim(ctx, s.requestLogKey(), 0, redisRequestLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert mcp request log: %w", err)
	}
	return nil
}

// RecentMCPRequestLogs returns most recent request events in newest-first order.
func (s *RedisStore) RecentMCPRequestLogs(ctx context.Context, limit int) ([]MCPRequestLog, error) {
	if limit <= 0 {
		limit = 20
	}
	raw, err := s.client.LRange(ctx, s.requestLogKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list mcp request logs: %w", err)
	}
	items := make([]MCPRequestLog, 0, len(raw))
	for _, r := range raw {
		var row MCPRequestLog
		if err := json.Unmarshal([]byte(r), &row); err != nil {
			s.logger.Warn("skipping malformed request log row", "error", err)
			continue
		}
		items = append(items, row)
	}
	return items, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) requestLogKey() string {
	return s.namespace + "__mcp_requests"
}

func escapeGlob(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
