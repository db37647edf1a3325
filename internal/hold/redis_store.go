package hold

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the holds of each service in a sorted set scored by expiry
// (ms since epoch). Members encode "holdID|sessionID|startMs|endMs". A side
// key per hold maps its id back to the service and carries a matching TTL.
//
// The place and release scripts touch the service set and a hold record in
// one call. Records are looked up by hold id alone, so the two keys cannot
// share a cluster hash slot and the store takes a single-node client.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "bookease"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// placeScript drops expired members, rejects an overlapping hold of another
// session, removes the caller's earlier holds and adds the new one.
//
// KEYS[1] service set, KEYS[2] hold record
// ARGV now, member, session, start, end, expires, ttl, serviceID
var placeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. now)
local start = tonumber(ARGV[4])
local finish = tonumber(ARGV[5])
local members = redis.call("ZRANGE", KEYS[1], 0, -1)
for _, m in ipairs(members) do
  local _, sess, s, e = string.match(m, "^([^|]+)|([^|]*)|(%-?%d+)|(%-?%d+)$")
  if sess ~= ARGV[3] and tonumber(s) < finish and tonumber(e) > start then
    return 0
  end
end
for _, m in ipairs(members) do
  local _, sess = string.match(m, "^([^|]+)|([^|]*)|")
  if sess == ARGV[3] then
    redis.call("ZREM", KEYS[1], m)
  end
end
redis.call("ZADD", KEYS[1], ARGV[6], ARGV[2])
redis.call("SET", KEYS[2], ARGV[8] .. "|" .. ARGV[2], "PX", ARGV[7])
if redis.call("PTTL", KEYS[1]) < tonumber(ARGV[7]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[7])
end
return 1
`)

// releaseScript removes one hold if the record still names the member.
//
// KEYS[1] service set, KEYS[2] hold record
// ARGV expected record value, member
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[2]) ~= ARGV[1] then
  return 0
end
redis.call("ZREM", KEYS[1], ARGV[2])
redis.call("DEL", KEYS[2])
return 1
`)

// releaseSessionScript removes every member of the session.
//
// KEYS[1] service set
// ARGV session
var releaseSessionScript = redis.NewScript(`
local removed = 0
for _, m in ipairs(redis.call("ZRANGE", KEYS[1], 0, -1)) do
  local _, sess = string.match(m, "^([^|]+)|([^|]*)|")
  if sess == ARGV[1] then
    redis.call("ZREM", KEYS[1], m)
    removed = removed + 1
  end
end
return removed
`)

func (s *RedisStore) serviceKey(serviceID string) string {
	return s.prefix + ":holds:svc:" + serviceID
}

func (s *RedisStore) recordKey(holdID string) string {
	return s.prefix + ":hold:" + holdID
}

func encodeMember(h *Hold) string {
	return fmt.Sprintf("%s|%s|%d|%d", h.ID, h.SessionID, h.Start.UnixMilli(), h.End.UnixMilli())
}

func decodeMember(serviceID, member string, score float64) (Hold, error) {
	parts := strings.Split(member, "|")
	if len(parts) != 4 {
		return Hold{}, fmt.Errorf("malformed hold member %q", member)
	}
	start, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Hold{}, fmt.Errorf("malformed hold start %q: %w", member, err)
	}
	end, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Hold{}, fmt.Errorf("malformed hold end %q: %w", member, err)
	}
	return Hold{
		ID:        parts[0],
		ServiceID: serviceID,
		SessionID: parts[1],
		Start:     time.UnixMilli(start).UTC(),
		End:       time.UnixMilli(end).UTC(),
		ExpiresAt: time.UnixMilli(int64(score)).UTC(),
	}, nil
}

func (s *RedisStore) Place(ctx context.Context, h *Hold, now time.Time) error {
	ttl := h.ExpiresAt.Sub(now).Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	res, err := placeScript.Run(ctx, s.rdb,
		[]string{s.serviceKey(h.ServiceID), s.recordKey(h.ID)},
		now.UnixMilli(), encodeMember(h), h.SessionID,
		h.Start.UnixMilli(), h.End.UnixMilli(), h.ExpiresAt.UnixMilli(), ttl, h.ServiceID,
	).Int()
	if err != nil {
		return fmt.Errorf("place hold failed: %w", err)
	}
	if res == 0 {
		return ErrSlotHeld
	}
	return nil
}

// lookup resolves the record key to the service and member it points at.
func (s *RedisStore) lookup(ctx context.Context, id string) (serviceID, member, raw string, err error) {
	raw, err = s.rdb.Get(ctx, s.recordKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", "", ErrNotFound
	}
	if err != nil {
		return "", "", "", fmt.Errorf("get hold record failed: %w", err)
	}
	serviceID, member, ok := strings.Cut(raw, "|")
	if !ok {
		return "", "", "", fmt.Errorf("malformed hold record %q", raw)
	}
	return serviceID, member, raw, nil
}

func (s *RedisStore) Get(ctx context.Context, id string, now time.Time) (*Hold, error) {
	serviceID, member, _, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	score, err := s.rdb.ZScore(ctx, s.serviceKey(serviceID), member).Result()
	if errors.Is(err, redis.Nil) {
		// replaced by a later hold of the same session
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hold score failed: %w", err)
	}

	h, err := decodeMember(serviceID, member, score)
	if err != nil {
		return nil, err
	}
	if !h.Active(now) {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (s *RedisStore) Release(ctx context.Context, id, sessionID string) error {
	serviceID, member, raw, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	h, err := decodeMember(serviceID, member, 0)
	if err != nil {
		return err
	}
	if h.SessionID != sessionID {
		return ErrNotOwner
	}

	res, err := releaseScript.Run(ctx, s.rdb,
		[]string{s.serviceKey(serviceID), s.recordKey(id)},
		raw, member,
	).Int()
	if err != nil {
		return fmt.Errorf("release hold failed: %w", err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ReleaseSession(ctx context.Context, serviceID, sessionID string) error {
	if err := releaseSessionScript.Run(ctx, s.rdb, []string{s.serviceKey(serviceID)}, sessionID).Err(); err != nil {
		return fmt.Errorf("release session holds failed: %w", err)
	}
	return nil
}

func (s *RedisStore) ActiveForService(ctx context.Context, serviceID string, from, to, now time.Time) ([]Hold, error) {
	entries, err := s.rdb.ZRangeByScoreWithScores(ctx, s.serviceKey(serviceID), &redis.ZRangeBy{
		Min: strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list holds failed: %w", err)
	}

	var out []Hold
	for _, z := range entries {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		h, err := decodeMember(serviceID, member, z.Score)
		if err != nil {
			return nil, err
		}
		if h.Overlaps(from, to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	cutoff := "(" + strconv.FormatInt(now.UnixMilli(), 10)

	iter := s.rdb.Scan(ctx, 0, s.prefix+":holds:svc:*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.rdb.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return removed, fmt.Errorf("sweep holds failed: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan hold sets failed: %w", err)
	}
	return removed, nil
}
