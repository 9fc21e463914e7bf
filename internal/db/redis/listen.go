package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/logger"
)

const readRetryDelay = time.Second

// Subscribe consumes the node's event stream through a consumer group. Entries
// left pending by a previous run of this consumer are delivered first. An
// entry is acknowledged by the event's Ack, or right away when its record is
// gone or already answered.
func (s *Store) Subscribe(ctx context.Context, location string, deliver func(context.Context, db.Event) error) error {
	log := logger.FromContext(ctx)
	stream := s.keys.events(location)

	if err := s.ensureGroup(ctx, stream); err != nil {
		return err
	}

	// An explicit id replays this consumer's pending entries after it, ">" reads new ones.
	cursor, replaying := "0", true
	for {
		if ctx.Err() != nil {
			return nil
		}

		entries, err := s.readGroup(ctx, stream, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("stream read failed", zap.String("stream", stream), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if replaying {
			if len(entries) == 0 {
				cursor, replaying = ">", false
				continue
			}
			cursor = entries[len(entries)-1].ID
		}

		for _, entry := range entries {
			s.handleEntry(ctx, location, stream, entry, deliver)
		}
	}
}

func (s *Store) handleEntry(
	ctx context.Context,
	location, stream string,
	entry rueidis.XRangeEntry,
	deliver func(context.Context, db.Event) error,
) {
	log := logger.FromContext(ctx)
	entryID := entry.ID
	ack := func(ctx context.Context) error { return s.ack(ctx, stream, entryID) }

	id := entry.FieldValues["id"]
	raw, pending, err := s.loadRequest(ctx, location, id)
	if err != nil {
		log.Warn("load request record failed", zap.String("request_id", id), zap.Error(err))
		return
	}
	if !pending {
		if err := ack(ctx); err != nil {
			log.Warn("ack failed", zap.String("entry_id", entryID), zap.Error(err))
		}
		return
	}

	if err := deliver(ctx, db.Event{ID: id, Record: raw, Ack: ack}); err != nil {
		log.Warn("deliver request record", zap.String("request_id", id), zap.Error(err))
	}
}

// ensureGroup creates the consumer group at the start of the stream so records
// written before the first run are answered too.
func (s *Store) ensureGroup(ctx context.Context, stream string) error {
	cmd := s.b().Arbitrary("XGROUP", "CREATE").Keys(stream).Args(s.group, "0", "MKSTREAM").Build()
	err := s.do(ctx, cmd).Error()
	if err != nil && !isRedisErr(err, "BUSYGROUP") {
		return &db.Error{Op: db.OpXGroup, Err: err}
	}
	return nil
}

func (s *Store) readGroup(ctx context.Context, stream, cursor string) ([]rueidis.XRangeEntry, error) {
	cmd := s.b().Xreadgroup().Group(s.group, s.consumer).
		Count(s.batch).
		Block(s.block.Milliseconds()).
		Streams().Key(stream).Id(cursor).
		Build()
	res, err := s.do(ctx, cmd).AsXRead()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpXReadGroup, Err: err}
	}
	return res[stream], nil
}

func (s *Store) ack(ctx context.Context, stream, entryID string) error {
	cmd := s.b().Xack().Key(stream).Group(s.group).Id(entryID).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXAck, Err: err}
	}
	return nil
}

// loadRequest returns the request record as a JSON object. pending is false
// when the record no longer exists or already carries a response.
func (s *Store) loadRequest(ctx context.Context, location, id string) (raw []byte, pending bool, err error) {
	if id == "" {
		return nil, false, nil
	}
	cmd := s.b().Hgetall().Key(s.keys.child(location, id)).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, false, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if _, answered := m["response"]; len(m) == 0 || answered {
		return nil, false, nil
	}
	raw, err = json.Marshal(decodeFields(m))
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}
