package jobxredis

import "github.com/redis/go-redis/v9"

// claimScript pops the oldest id from the first non-empty queue, parks it in
// that queue's processing list, records its lease deadline and stores the
// claim token of the new owner.
// KEYS are (queue, processing, leases, claims) quads in priority order.
// ARGV[1] is the lease deadline in unix milliseconds, ARGV[2] the token.
var claimScript = redis.NewScript(`
for i = 1, #KEYS, 4 do
    local id = redis.call('RPOP', KEYS[i])
    if id then
        redis.call('LPUSH', KEYS[i + 1], id)
        redis.call('ZADD', KEYS[i + 2], ARGV[1], id)
        redis.call('HSET', KEYS[i + 3], id, ARGV[2])
        return id
    end
end
return false
`)

// finishScript stores the job record and releases its lease, but only while
// ARGV[2] is still the current claim token. It returns 0 when another worker
// owns the job or the lease was reaped.
// KEYS: job, processing, leases, claims, scheduled.
// ARGV: id, token, job data, retry time in unix milliseconds or "".
var finishScript = redis.NewScript(`
local id = ARGV[1]
if redis.call('HGET', KEYS[4], id) ~= ARGV[2] then
    return 0
end
redis.call('SET', KEYS[1], ARGV[3])
redis.call('LREM', KEYS[2], 1, id)
redis.call('ZREM', KEYS[3], id)
redis.call('HDEL', KEYS[4], id)
if ARGV[4] ~= '' then
    redis.call('ZADD', KEYS[5], ARGV[4], id)
end
return 1
`)

// reapScript moves ids with an expired lease back to the consuming end of the
// ready queue and revokes their claim tokens.
var reapScript = redis.NewScript(`
local leases_key = KEYS[1]
local processing_key = KEYS[2]
local queue_key = KEYS[3]
local claims_key = KEYS[4]
local ids = redis.call('ZRANGEBYSCORE', leases_key, '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('LREM', processing_key, 1, id)
    redis.call('RPUSH', queue_key, id)
    redis.call('ZREM', leases_key, id)
    redis.call('HDEL', claims_key, id)
end
return #ids
`)

// promoteScript moves due ids from the scheduled set to the ready queue.
var promoteScript = redis.NewScript(`
local scheduled_key = KEYS[1]
local queue_key = KEYS[2]
local ids = redis.call('ZRANGEBYSCORE', scheduled_key, '-inf', ARGV[1])
for _, id in ipairs(ids) do
    redis.call('LPUSH', queue_key, id)
    redis.call('ZREM', scheduled_key, id)
end
return #ids
`)
