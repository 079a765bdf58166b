package redis

const (
	// startSessionScript creates a session hash and indexes it, refusing to
	// overwrite an existing session
	startSessionScript = `
local session_key = KEYS[1]     -- idlewatch:session:{sessionID}
local index_key = KEYS[2]       -- idlewatch:sessions
local open_set = KEYS[3]        -- idlewatch:sessions:open

local session_id = ARGV[1]
local started_ms = ARGV[7]

if redis.call('EXISTS', session_key) == 1 then
  return 0
end

redis.call('HSET', session_key,
  'id', session_id,
  'host', ARGV[2],
  'started_at', ARGV[3],
  'ended_at', '',
  'state', ARGV[4],
  'idle_threshold_ns', ARGV[5],
  'check_interval_ns', ARGV[6],
  'active_ns', 0,
  'idle_ns', 0,
  'display_sleep_ns', 0,
  'system_sleep_ns', 0,
  'open', '1'
)

redis.call('ZADD', index_key, started_ms, session_id)
redis.call('SADD', open_set, session_id)

return 1
`

	// appendTransitionScript atomically records a transition, updates the
	// session's current state and credits the duration to the state left
	appendTransitionScript = `
local session_key = KEYS[1]     -- idlewatch:session:{sessionID}
local transitions_key = KEYS[2] -- idlewatch:session:{sessionID}:transitions

local to_state = ARGV[1]
local field = ARGV[2]
local duration_ns = ARGV[3]
local record = ARGV[4]

if redis.call('EXISTS', session_key) == 0 then
  return 0
end

if field ~= '' then
  redis.call('HINCRBY', session_key, field, duration_ns)
end
redis.call('HSET', session_key, 'state', to_state)
redis.call('RPUSH', transitions_key, record)

return 1
`

	// finishSessionScript writes the final totals, closes the session and
	// applies the retention TTL to the session and its transitions
	finishSessionScript = `
local session_key = KEYS[1]     -- idlewatch:session:{sessionID}
local transitions_key = KEYS[2] -- idlewatch:session:{sessionID}:transitions
local open_set = KEYS[3]        -- idlewatch:sessions:open

local session_id = ARGV[1]
local ttl_seconds = ARGV[8]

if redis.call('EXISTS', session_key) == 0 then
  return 0
end

redis.call('HSET', session_key,
  'ended_at', ARGV[2],
  'state', ARGV[3],
  'active_ns', ARGV[4],
  'idle_ns', ARGV[5],
  'display_sleep_ns', ARGV[6],
  'system_sleep_ns', ARGV[7],
  'open', '0'
)
redis.call('SREM', open_set, session_id)

if tonumber(ttl_seconds) > 0 then
  redis.call('EXPIRE', session_key, ttl_seconds)
  redis.call('EXPIRE', transitions_key, ttl_seconds)
end

return 1
`
)
