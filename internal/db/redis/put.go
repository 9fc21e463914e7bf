package redis

import (
	"context"
	"errors"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tocha/internal/db"
)

// putChildScript replaces a child, indexes its key and announces it.
var putChildScript = rueidis.NewLuaScript(`
redis.call('DEL', KEYS[2])
redis.call('HSET', KEYS[2], unpack(ARGV, 2))
redis.call('ZADD', KEYS[1], 0, ARGV[1])
return redis.call('XADD', KEYS[3], '*', 'id', ARGV[1])
`)

// PutChild writes fields as child key of node, replacing any previous value,
// and appends the key to the node's event stream. Returns the stream entry id.
func (s *Store) PutChild(ctx context.Context, node, key string, fields map[string]any) (string, error) {
	if key == "" {
		return "", errors.New("child key is required")
	}
	if len(fields) == 0 {
		return "", errors.New("child must have at least one field")
	}
	pairs, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	keys := []string{s.keys.index(node), s.keys.child(node, key), s.keys.events(node)}
	id, err := putChildScript.Exec(ctx, s.client, keys, append([]string{key}, pairs...)).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpEval, Err: err}
	}
	return id, nil
}
