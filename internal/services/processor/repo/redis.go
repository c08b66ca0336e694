package repo

import (
	"context"
	"time"

	perr "poshub/internal/platform/errors"
	str "poshub/internal/platform/strings"
	"poshub/internal/services/processor/domain"

	"github.com/redis/go-redis/v9"
)

// Redis is the ledger over SET NX claims. Done markers live for DoneTTL, which must
// outlast the queue's redelivery window
type Redis struct {
	rdb     *redis.Client
	prefix  string
	ttl     time.Duration
	doneTTL time.Duration
}

// NewRedis builds the ledger; keys are "<prefix>claim:<id>" and "<prefix>done:<id>"
func NewRedis(rdb *redis.Client, prefix string, ttl, doneTTL time.Duration) *Redis {
	if rdb == nil {
		panic("processor: Redis ledger requires a client")
	}
	prefix = str.KeyPrefix(prefix, ":", "poshub:orders:")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if doneTTL <= 0 {
		doneTTL = 7 * 24 * time.Hour
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, doneTTL: doneTTL}
}

func (l *Redis) claimKey(id string) string { return l.prefix + "claim:" + id }
func (l *Redis) doneKey(id string) string  { return l.prefix + "done:" + id }

// begin returns a domain.Claim: 0 fresh, 1 done, 2 in flight
var beginScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 1
end
local holder = redis.call("GET", KEYS[1])
if holder and holder ~= ARGV[1] then
	return 2
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 0
`)

// complete sets the done marker and drops the claim, only for the owner
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
redis.call("DEL", KEYS[1])
return 1
`)

// abandon drops the claim only for the owner
var abandonScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Begin claims orderID for owner
func (l *Redis) Begin(ctx context.Context, orderID, owner string) (domain.Claim, error) {
	n, err := beginScript.Run(ctx, l.rdb,
		[]string{l.claimKey(orderID), l.doneKey(orderID)},
		owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return domain.ClaimInFlight, unavailable(err, "ledger begin")
	}
	return domain.Claim(n), nil
}

// Complete marks orderID done when owner still holds the claim
func (l *Redis) Complete(ctx context.Context, orderID, owner string) error {
	n, err := completeScript.Run(ctx, l.rdb,
		[]string{l.claimKey(orderID), l.doneKey(orderID)},
		owner, l.doneTTL.Milliseconds()).Int()
	if err != nil {
		return unavailable(err, "ledger complete")
	}
	if n == 0 {
		return domain.ErrClaimLost
	}
	return nil
}

// Abandon drops owner's claim
func (l *Redis) Abandon(ctx context.Context, orderID, owner string) error {
	if err := abandonScript.Run(ctx, l.rdb, []string{l.claimKey(orderID)}, owner).Err(); err != nil {
		return unavailable(err, "ledger abandon")
	}
	return nil
}

func unavailable(err error, msg string) error {
	return perr.FromContext(err, perr.ErrorCodeUnavailable, msg)
}
