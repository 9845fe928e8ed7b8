package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
)

// Redis key layout. Entries are hashes keyed by user id; the side
// aggregates are integer counters in cents; the member set indexes the
// active entries for snapshot/reset.
const (
	keyUserPrefix = "bet:user:"
	keyTotalRed   = "bet:total:red"
	keyTotalBlue  = "bet:total:blue"
	keyUsers      = "bet:users"
)

// placeScript reads the existing entry, accumulates the amount, records
// the side, and adjusts the aggregates — one atomic unit. A side flip
// carries the previously accumulated amount over to the new side's
// aggregate so both counters stay consistent with the entries.
var placeScript = redis.NewScript(`
	local userKey = KEYS[1]
	local redKey = KEYS[2]
	local blueKey = KEYS[3]
	local usersKey = KEYS[4]
	local amount = tonumber(ARGV[1])
	local side = ARGV[2]

	local cur = tonumber(redis.call("HGET", userKey, "amount")) or 0
	local prev = redis.call("HGET", userKey, "side")

	local target = redKey
	if side == "blue" then target = blueKey end

	if prev and prev ~= side and cur > 0 then
		local old = redKey
		if prev == "blue" then old = blueKey end
		redis.call("DECRBY", old, cur)
		redis.call("INCRBY", target, cur)
	end

	redis.call("HSET", userKey, "amount", cur + amount, "side", side)
	redis.call("SADD", usersKey, ARGV[3])
	redis.call("INCRBY", target, amount)

	return cur + amount
`)

// cancelScript fails with NO_BET / INSUFFICIENT_BET error replies,
// deletes the entry when it reaches exactly zero, and decrements the
// aggregate of the entry's recorded side.
var cancelScript = redis.NewScript(`
	local userKey = KEYS[1]
	local redKey = KEYS[2]
	local blueKey = KEYS[3]
	local usersKey = KEYS[4]

	local cur = redis.call("HGET", userKey, "amount")
	if not cur then
		return redis.error_reply("NO_BET")
	end
	cur = tonumber(cur)

	local amount = tonumber(ARGV[1])
	if amount > cur then
		return redis.error_reply("INSUFFICIENT_BET")
	end

	local side = redis.call("HGET", userKey, "side")
	local target = redKey
	if side == "blue" then target = blueKey end

	local left = cur - amount
	if left == 0 then
		redis.call("DEL", userKey)
		redis.call("SREM", usersKey, ARGV[2])
	else
		redis.call("HSET", userKey, "amount", left)
	end
	redis.call("DECRBY", target, amount)

	return left
`)

// snapshotScript returns every active entry as a flat
// [id, amount, side, ...] array, read in one atomic step.
var snapshotScript = redis.NewScript(`
	local ids = redis.call("SMEMBERS", KEYS[1])
	local out = {}
	for _, id in ipairs(ids) do
		local key = ARGV[1] .. id
		local amount = redis.call("HGET", key, "amount")
		local side = redis.call("HGET", key, "side")
		if amount then
			out[#out+1] = id
			out[#out+1] = amount
			out[#out+1] = side
		end
	end
	return out
`)

// resetScript deletes all entries and zeroes both aggregates.
var resetScript = redis.NewScript(`
	local ids = redis.call("SMEMBERS", KEYS[1])
	for _, id in ipairs(ids) do
		redis.call("DEL", ARGV[1] .. id)
	end
	redis.call("DEL", KEYS[1])
	redis.call("SET", KEYS[2], 0)
	redis.call("SET", KEYS[3], 0)
	return #ids
`)

// RedisLedger implements Ledger on a Redis instance. Each mutation runs
// as a single server-side script, so only the named keys are touched
// and no partial state is ever visible to other callers.
type RedisLedger struct {
	rdb *redis.Client
}

// NewRedisLedger creates a Redis-backed ledger and verifies
// connectivity.
func NewRedisLedger(ctx context.Context, rdb *redis.Client) (*RedisLedger, error) {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ledger: redis unreachable: %w", err)
	}
	return &RedisLedger{rdb: rdb}, nil
}

func userKey(userID string) string {
	return keyUserPrefix + userID
}

func (l *RedisLedger) Place(ctx context.Context, userID string, amount decimal.Decimal, side model.Side) error {
	keys := []string{userKey(userID), keyTotalRed, keyTotalBlue, keyUsers}
	err := placeScript.Run(ctx, l.rdb, keys, toCents(amount), string(side), userID).Err()
	if err != nil {
		return fmt.Errorf("ledger: place: %w", err)
	}
	return nil
}

func (l *RedisLedger) Cancel(ctx context.Context, userID string, amount decimal.Decimal) error {
	keys := []string{userKey(userID), keyTotalRed, keyTotalBlue, keyUsers}
	err := cancelScript.Run(ctx, l.rdb, keys, toCents(amount), userID).Err()
	if err != nil {
		// Script error replies carry the business tokens; anything else
		// is an infrastructure failure and must stay distinguishable.
		switch {
		case strings.Contains(err.Error(), "INSUFFICIENT_BET"):
			return ErrInsufficientBet
		case strings.Contains(err.Error(), "NO_BET"):
			return ErrNoBet
		}
		return fmt.Errorf("ledger: cancel: %w", err)
	}
	return nil
}

func (l *RedisLedger) SideTotals(ctx context.Context) (model.TotalsSnapshot, error) {
	vals, err := l.rdb.MGet(ctx, keyTotalRed, keyTotalBlue).Result()
	if err != nil {
		return model.TotalsSnapshot{}, fmt.Errorf("ledger: side totals: %w", err)
	}

	parse := func(v interface{}) (int64, error) {
		if v == nil {
			return 0, nil
		}
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("ledger: unexpected total type %T", v)
		}
		return strconv.ParseInt(s, 10, 64)
	}

	red, err := parse(vals[0])
	if err != nil {
		return model.TotalsSnapshot{}, err
	}
	blue, err := parse(vals[1])
	if err != nil {
		return model.TotalsSnapshot{}, err
	}

	return model.TotalsSnapshot{Red: fromCents(red), Blue: fromCents(blue)}, nil
}

func (l *RedisLedger) EntryOf(ctx context.Context, userID string) (*Entry, error) {
	fields, err := l.rdb.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger: entry of %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	cents, err := strconv.ParseInt(fields["amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ledger: corrupt amount for %s: %w", userID, err)
	}

	return &Entry{
		UserID: userID,
		Amount: fromCents(cents),
		Side:   model.Side(fields["side"]),
	}, nil
}

func (l *RedisLedger) Snapshot(ctx context.Context) ([]Entry, error) {
	res, err := snapshotScript.Run(ctx, l.rdb, []string{keyUsers}, keyUserPrefix).Slice()
	if err != nil {
		return nil, fmt.Errorf("ledger: snapshot: %w", err)
	}
	if len(res)%3 != 0 {
		return nil, fmt.Errorf("ledger: snapshot returned %d fields, want multiple of 3", len(res))
	}

	entries := make([]Entry, 0, len(res)/3)
	for i := 0; i < len(res); i += 3 {
		id, _ := res[i].(string)
		amountStr, _ := res[i+1].(string)
		sideStr, _ := res[i+2].(string)

		cents, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger: corrupt snapshot amount for %s: %w", id, err)
		}
		entries = append(entries, Entry{
			UserID: id,
			Amount: fromCents(cents),
			Side:   model.Side(sideStr),
		})
	}
	return entries, nil
}

func (l *RedisLedger) Reset(ctx context.Context) error {
	err := resetScript.Run(ctx, l.rdb, []string{keyUsers, keyTotalRed, keyTotalBlue}, keyUserPrefix).Err()
	if err != nil {
		return fmt.Errorf("ledger: reset: %w", err)
	}
	return nil
}
