package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
)

// responseTimestamp comes from the server clock at update time.
const updateResponseSQL = `UPDATE documents
SET data = data || jsonb_build_object('response', $3::jsonb, 'responseTimestamp', to_jsonb(now()))
WHERE collection = $1 AND id = $2`

// WriteResponse merges response and responseTimestamp into the request record.
func (s *Store) WriteResponse(ctx context.Context, location, requestID string, resp result.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, updateResponseSQL, location, requestID, string(payload))
	if err != nil {
		return &db.Error{Op: db.OpUpdate, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &db.Error{Op: db.OpUpdate, Err: err}
	}
	if n == 0 {
		return &db.Error{Op: db.OpUpdate, Err: fmt.Errorf("%w: %s/%s", db.ErrKeyNotFound, location, requestID)}
	}
	return nil
}
