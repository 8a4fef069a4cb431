package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// luaScript keeps the source next to the go-redis handle so EVAL can resend it.
type luaScript struct {
	src    string
	handle *redis.Script
}

func newScript(src string) luaScript {
	return luaScript{src: src, handle: redis.NewScript(src)}
}

// windowScript counts a hit and starts the window on the first one, so a
// crash between the two commands cannot leave a counter without a TTL.
var windowScript = newScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// releaseScript deletes the lock only while it still carries the caller's
// owner token.
var releaseScript = newScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// run prefers the cached script and falls back to a full EVAL the first time
// a server sees it.
func (c *Client) run(ctx context.Context, script luaScript, keys []string, args ...any) *redis.Cmd {
	cmd := c.store.EvalSha(ctx, script.handle.Hash(), keys, args...)
	if err := cmd.Err(); err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		return c.store.Eval(ctx, script.src, keys, args...)
	}
	return cmd
}

// FixedWindowAllow counts one request against scope and reports whether the
// count is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.store == nil {
		return false, 0, errNotConnected
	}
	if window <= 0 {
		return false, 0, errors.New("rate limit window must be positive")
	}
	count, err := c.run(ctx, windowScript, []string{c.RateLimitKey(scope)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// AcquireLock claims name for owner until ttl elapses. It reports false when
// another owner holds it.
func (c *Client) AcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	if owner == "" {
		return false, errors.New("lock owner is required")
	}
	return c.SetNX(ctx, c.LockKey(name), owner, ttl)
}

// ReleaseLock drops name if owner still holds it. Releasing a lock that
// expired or passed to someone else is a no-op.
func (c *Client) ReleaseLock(ctx context.Context, name, owner string) error {
	if c.store == nil {
		return errNotConnected
	}
	err := c.run(ctx, releaseScript, []string{c.LockKey(name)}, owner).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
