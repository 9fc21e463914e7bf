package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/logger"
)

// NotifyChannel is the channel the insert trigger publishes on.
const NotifyChannel = "tocha_documents"

const (
	pendingSQL = `SELECT id, data FROM documents
WHERE collection = $1 AND NOT (data ? 'response')
ORDER BY created_at, id`
	recordSQL = `SELECT data FROM documents
WHERE collection = $1 AND id = $2 AND NOT (data ? 'response')`

	listenerPingInterval = 90 * time.Second
)

// listener is the subset of *pq.Listener used by Subscribe.
type listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

type notification struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (s *Store) pqListener(ctx context.Context) listener {
	log := logger.FromContext(ctx)
	return pq.NewListener(s.url, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
}

// Subscribe delivers records of the requests collection that have no response
// yet: first the backlog, then every insert announced on NotifyChannel. After
// a listener reconnect the backlog is scanned again.
func (s *Store) Subscribe(ctx context.Context, location string, deliver func(context.Context, db.Event) error) error {
	log := logger.FromContext(ctx)

	l := s.newListener(ctx)
	defer func() { _ = l.Close() }()
	if err := l.Listen(NotifyChannel); err != nil {
		return &db.Error{Op: db.OpListen, Err: err}
	}

	d := &dispatcher{inflight: make(map[string]struct{}), deliver: deliver}
	if err := s.drainPending(ctx, location, d); err != nil {
		return err
	}

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Ping(); err != nil {
				log.Warn("postgres listener ping failed", zap.Error(err))
			}
		case n, ok := <-l.NotificationChannel():
			if !ok {
				return &db.Error{Op: db.OpListen, Err: errors.New("listener closed")}
			}
			if n == nil {
				// Reconnected: notifications may have been missed.
				if err := s.drainPending(ctx, location, d); err != nil {
					log.Warn("backlog scan failed", zap.Error(err))
				}
				continue
			}
			var msg notification
			if err := json.Unmarshal([]byte(n.Extra), &msg); err != nil {
				log.Warn("malformed notification", zap.String("payload", n.Extra), zap.Error(err))
				continue
			}
			if msg.Collection != location || d.busy(msg.ID) {
				continue
			}
			raw, err := s.record(ctx, location, msg.ID)
			if errors.Is(err, db.ErrKeyNotFound) {
				// Already answered, or deleted since the insert.
				log.Debug("skip answered request", zap.String("request_id", msg.ID))
				continue
			}
			if err != nil {
				log.Warn("load request record failed", zap.String("request_id", msg.ID), zap.Error(err))
				continue
			}
			d.dispatch(ctx, db.Event{ID: msg.ID, Record: raw})
		}
	}
}

func (s *Store) drainPending(ctx context.Context, location string, d *dispatcher) error {
	rows, err := s.db.QueryContext(ctx, pendingSQL, location)
	if err != nil {
		return &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	var events []db.Event
	for rows.Next() {
		var ev db.Event
		if err := rows.Scan(&ev.ID, &ev.Record); err != nil {
			return &db.Error{Op: db.OpSelect, Err: err}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return &db.Error{Op: db.OpSelect, Err: err}
	}

	for _, ev := range events {
		d.dispatch(ctx, ev)
	}
	return nil
}

func (s *Store) record(ctx context.Context, location, id string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, recordSQL, location, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &db.Error{Op: db.OpSelect, Err: db.ErrKeyNotFound}
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return raw, nil
}

// dispatcher suppresses duplicate deliveries of a record that is still being processed.
type dispatcher struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	deliver  func(context.Context, db.Event) error
}

func (d *dispatcher) dispatch(ctx context.Context, ev db.Event) {
	d.mu.Lock()
	if _, busy := d.inflight[ev.ID]; busy {
		d.mu.Unlock()
		return
	}
	d.inflight[ev.ID] = struct{}{}
	d.mu.Unlock()

	id := ev.ID
	ev.Ack = func(context.Context) error {
		d.release(id)
		return nil
	}
	if err := d.deliver(ctx, ev); err != nil {
		d.release(id)
		logger.FromContext(ctx).Warn("deliver request record", zap.String("request_id", id), zap.Error(err))
	}
}

func (d *dispatcher) busy(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[id]
	return ok
}

func (d *dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.inflight, id)
	d.mu.Unlock()
}
