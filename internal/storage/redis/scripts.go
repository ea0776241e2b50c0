package redis

import "github.com/redis/go-redis/v9"

// Return codes of closeSessionScript.
const (
	closeOK            = 1
	closeNotFound      = -1
	closeAlreadyClosed = -2
)

var (
	openSession  = redis.NewScript(openSessionScript)
	closeSession = redis.NewScript(closeSessionScript)
)

const (
	// openSessionScript atomically allocates an id, writes the session hash
	// and indexes it as open
	openSessionScript = `
local seq_key = KEYS[1]         -- focustrack:session:seq
local by_start = KEYS[2]        -- focustrack:sessions:by_start
local open_set = KEYS[3]        -- focustrack:sessions:open

local session_prefix = ARGV[1]  -- focustrack:session:
local process_name = ARGV[2]
local window_title = ARGV[3]
local start_time = ARGV[4]

local id = redis.call('INCR', seq_key)
local session_key = session_prefix .. id

redis.call('HSET', session_key,
  'id', id,
  'process_name', process_name,
  'window_title', window_title,
  'start_time', start_time
)

redis.call('ZADD', by_start, start_time, id)
redis.call('ZADD', open_set, start_time, id)

return id
`

	// closeSessionScript sets the end time once; the end time never
	// precedes the start time
	closeSessionScript = `
local session_key = KEYS[1]     -- focustrack:session:{id}
local open_set = KEYS[2]        -- focustrack:sessions:open
local by_end = KEYS[3]          -- focustrack:sessions:by_end

local id = ARGV[1]
local end_time = ARGV[2]

local start_time = redis.call('HGET', session_key, 'start_time')
if not start_time then
  return -1
end

if redis.call('HEXISTS', session_key, 'end_time') == 1 then
  return -2
end

if tonumber(end_time) < tonumber(start_time) then
  end_time = start_time
end

redis.call('HSET', session_key, 'end_time', end_time)
redis.call('ZREM', open_set, id)
redis.call('ZADD', by_end, end_time, id)

return 1
`
)
