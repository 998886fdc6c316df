package state

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// contactScript performs the read-modify-write of RecordContact as one
// atomic Redis operation. Returns {delta|-1, request_count, failed_logins}.
const contactScript = `
local key = KEYS[1]
local deltas = KEYS[2]
local now = tonumber(ARGV[1])
local maxdeltas = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local delta = -1
local last = redis.call('HGET', key, 'last_request_ms')
if last then
	delta = now - tonumber(last)
	redis.call('RPUSH', deltas, delta)
	redis.call('LTRIM', deltas, -maxdeltas, -1)
end

redis.call('HSET', key, 'last_request_ms', now)
local count = redis.call('HINCRBY', key, 'request_count', 1)

local failed = redis.call('HGET', key, 'failed_logins')
if not failed then
	failed = 0
end

if ttl > 0 then
	redis.call('EXPIRE', key, ttl)
	redis.call('EXPIRE', deltas, ttl)
end

return {delta, count, tonumber(failed)}
`

// RedisRepository keeps attacker state in Redis. All mutations use atomic
// Redis primitives (HINCRBY, Lua), so state stays correct even with
// multiple honeypot processes sharing one store.
type RedisRepository struct {
	client    *redis.Client
	retention time.Duration
	contact   *redis.Script
}

// NewRedisRepository connects to redisURL. retention > 0 expires idle
// attacker records after that duration; 0 keeps them forever.
func NewRedisRepository(redisURL string, retention time.Duration) (*RedisRepository, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newRedisRepository(client, retention), nil
}

func newRedisRepository(client *redis.Client, retention time.Duration) *RedisRepository {
	return &RedisRepository{
		client:    client,
		retention: retention,
		contact:   redis.NewScript(contactScript),
	}
}

func stateKey(ip string) string  { return "attacker:" + ip }
func deltasKey(ip string) string { return "attacker:deltas:" + ip }

// GetOrCreate returns the state for ip, materializing a zeroed record.
func (r *RedisRepository) GetOrCreate(ctx context.Context, ip string) (*models.AttackerState, error) {
	if err := r.client.HSetNX(ctx, stateKey(ip), "failed_logins", 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to create attacker state: %w", err)
	}

	fields, err := r.client.HGetAll(ctx, stateKey(ip)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read attacker state: %w", err)
	}

	st := &models.AttackerState{IP: ip}
	for field, value := range fields {
		switch field {
		case "failed_logins":
			fmt.Sscan(value, &st.FailedLogins)
		case "request_count":
			fmt.Sscan(value, &st.RequestCount)
		case "last_request_ms":
			var ms int64
			fmt.Sscan(value, &ms)
			at := time.UnixMilli(ms).UTC()
			st.LastRequestAt = &at
		}
	}

	deltas, err := r.client.LRange(ctx, deltasKey(ip), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read delta history: %w", err)
	}
	for _, raw := range deltas {
		var d int64
		fmt.Sscan(raw, &d)
		st.RecentDeltas = append(st.RecentDeltas, d)
	}

	return st, nil
}

// RecordContact folds one request into the state atomically via Lua.
func (r *RedisRepository) RecordContact(ctx context.Context, ip string, now time.Time) (*models.ContactSnapshot, error) {
	result, err := r.contact.Run(ctx, r.client,
		[]string{stateKey(ip), deltasKey(ip)},
		now.UnixMilli(), models.MaxRecentDeltas, int64(r.retention.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to record contact: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected contact script result: %v", result)
	}

	snap := &models.ContactSnapshot{
		RequestCount: result[1],
		FailedLogins: result[2],
	}
	if result[0] >= 0 {
		d := result[0]
		snap.DeltaMS = &d
	}
	return snap, nil
}

// RecordFailure atomically increments failed logins for ip.
func (r *RedisRepository) RecordFailure(ctx context.Context, ip string) (int64, error) {
	count, err := r.client.HIncrBy(ctx, stateKey(ip), "failed_logins", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record failure: %w", err)
	}
	return count, nil
}

// Close releases the Redis connection.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
