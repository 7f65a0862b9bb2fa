package redis

// Package redis provides the Redis-backed session store.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattcg/oauth-sessions/internal/domain/oauth"
	errorsx "github.com/mattcg/oauth-sessions/internal/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix is prepended to every session id.
const DefaultKeyPrefix = "$"

// Hash fields of a session record.
const (
	fieldProvider = "p"
	fieldToken    = "t"
)

// initScript creates the record only when the key is absent so a colliding id never clobbers a live session.
var initScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'p', ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// beginScript attaches the token only when the record still exists; an expired key is not recreated.
var beginScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 't', ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// SessionStore stores each session as a hash with a native key expiry.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

// NewSessionStore creates a Redis session store using DefaultKeyPrefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, DefaultKeyPrefix)
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

func (s *SessionStore) key(id string) string { return s.prefix + id }

// ttlSeconds converts a TTL reply to whole seconds. go-redis reports the -2 (missing key)
// and -1 (no expiry) sentinels as raw negative durations.
func ttlSeconds(d time.Duration) int64 {
	if d < 0 {
		return oauth.TTLNotFound
	}
	return int64(d / time.Second)
}

func (s *SessionStore) CheckSession(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return oauth.TTLNotFound, nil
	}
	d, err := s.client.TTL(ctx, s.key(id)).Result()
	if err != nil {
		return 0, errorsx.StoreFailure(fmt.Errorf("redis ttl: %w", err), "check")
	}
	return ttlSeconds(d), nil
}

func (s *SessionStore) InitSession(ctx context.Context, provider, id string, ttl int64) error {
	if id == "" {
		return errorsx.ValidationField("id", "session id cannot be empty")
	}
	if !oauth.ValidTTL(ttl) {
		return errorsx.ValidationField("ttl", "ttl out of range")
	}

	created, err := initScript.Run(ctx, s.client, []string{s.key(id)}, provider, ttl).Int64()
	if err != nil {
		return errorsx.StoreFailure(fmt.Errorf("redis init session: %w", err), "init")
	}
	if created == 0 {
		return errorsx.Conflictf("session %q already exists", id)
	}
	return nil
}

func (s *SessionStore) BeginSession(ctx context.Context, id, token string, ttl int64) error {
	if !oauth.ValidTTL(ttl) {
		return errorsx.ValidationField("ttl", "ttl out of range")
	}

	updated, err := beginScript.Run(ctx, s.client, []string{s.key(id)}, token, ttl).Int64()
	if err != nil {
		return errorsx.StoreFailure(fmt.Errorf("redis begin session: %w", err), "begin")
	}
	if updated == 0 {
		return errorsx.SessionNotFound(id)
	}
	return nil
}

func (s *SessionStore) EndSession(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errorsx.StoreFailure(fmt.Errorf("redis del: %w", err), "end")
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (oauth.Record, bool, error) {
	if id == "" {
		return oauth.Record{}, false, nil
	}

	key := s.key(id)
	pipe := s.client.TxPipeline()
	fields := pipe.HGetAll(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return oauth.Record{}, false, errorsx.StoreFailure(fmt.Errorf("redis get session: %w", err), "get")
	}

	values := fields.Val()
	remaining := ttlSeconds(ttl.Val())
	if len(values) == 0 || remaining == oauth.TTLNotFound {
		return oauth.Record{}, false, nil
	}
	return oauth.Record{
		Provider: values[fieldProvider],
		Token:    values[fieldToken],
		TTL:      remaining,
	}, true, nil
}

// Scan lists session ids currently held under the store prefix, up to limit entries.
// Cluster clients are scanned on every master.
func (s *SessionStore) Scan(ctx context.Context, limit int) ([]string, error) {
	res := &scanResult{limit: limit}
	match := escapeGlob(s.prefix) + "*"

	var err error
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return s.scanNode(ctx, node, match, res)
		})
	} else {
		err = s.scanNode(ctx, s.client, match, res)
	}
	if err != nil && !errors.Is(err, errScanLimit) {
		return nil, errorsx.StoreFailure(fmt.Errorf("redis scan: %w", err), "scan")
	}
	return res.ids, nil
}

var errScanLimit = errors.New("scan limit reached")

// scanResult collects ids from concurrently scanned nodes.
type scanResult struct {
	mu    sync.Mutex
	ids   []string
	limit int
}

// add records id and reports whether more ids are wanted.
func (r *scanResult) add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.ids) >= r.limit {
		return false
	}
	r.ids = append(r.ids, id)
	return r.limit <= 0 || len(r.ids) < r.limit
}

func (s *SessionStore) scanNode(ctx context.Context, c redis.Cmdable, match string, res *scanResult) error {
	var cursor uint64
	for {
		keys, next, err := c.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return err
		}
		for _, k := range keys {
			if !res.add(strings.TrimPrefix(k, s.prefix)) {
				return errScanLimit
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
