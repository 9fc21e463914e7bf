package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
)

const errRecordNotFound = "request record not found"

// writeResponseScript stamps responseTimestamp (ms) from the server clock.
var writeResponseScript = rueidis.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return redis.error_reply('ERR ` + errRecordNotFound + `')
end
local t = redis.call('TIME')
local ms = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
redis.call('HSET', KEYS[1], 'response', ARGV[1], 'responseTimestamp', string.format('%.0f', ms))
return ms
`)

// WriteResponse sets response and responseTimestamp on the request record.
func (s *Store) WriteResponse(ctx context.Context, location, requestID string, resp result.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.keys.child(location, requestID)
	err = writeResponseScript.Exec(ctx, s.client, []string{key}, []string{string(payload)}).Error()
	if isRedisErr(err, errRecordNotFound) {
		return &db.Error{Op: db.OpEval, Err: fmt.Errorf("%w: %s/%s", db.ErrKeyNotFound, location, requestID)}
	}
	if err != nil {
		return &db.Error{Op: db.OpEval, Err: err}
	}
	return nil
}
