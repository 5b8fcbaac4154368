package redis

const (
	// commitIntervalScript atomically applies one attribution interval:
	// the per-URL day record and the hourly bucket are updated in the
	// same script so they can never diverge under concurrent commits.
	commitIntervalScript = `
local record_key = KEYS[1]    -- tabtime:record:{date}:{url}
local index_key = KEYS[2]     -- tabtime:records:index:{date}
local hourly_key = KEYS[3]    -- tabtime:hourly:{date}

local url = ARGV[1]
local title = ARGV[2]
local domain = ARGV[3]
local date = ARGV[4]
local elapsed_ms = tonumber(ARGV[5])
local now_ms = ARGV[6]
local hour = ARGV[7]
local ttl_seconds = tonumber(ARGV[8])

-- Check if record exists so we only set the TTL on creation
local exists = redis.call('EXISTS', record_key)

redis.call('HSET', record_key,
  'url', url,
  'domain', domain,
  'date', date,
  'last_active_ms', now_ms
)

-- Refresh the title only when the event carried one
if title ~= '' then
  redis.call('HSET', record_key, 'title', title)
end

redis.call('HINCRBY', record_key, 'time_spent_ms', elapsed_ms)

if exists == 0 then
  redis.call('EXPIRE', record_key, ttl_seconds)
end

-- Maintain the day index of URLs
redis.call('SADD', index_key, url)
redis.call('EXPIRE', index_key, ttl_seconds)

-- Bump the hourly bucket for the commit hour
redis.call('HINCRBY', hourly_key, hour, elapsed_ms)
redis.call('EXPIRE', hourly_key, ttl_seconds)

return 'OK'
`
)
