package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewStoreForTest(conn), mock
}

func TestInitSchema(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(schema).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInitSchema_Error(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(schema).WillReturnError(errors.New("permission denied"))

	err := s.InitSchema(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSchema {
		t.Fatalf("expected *db.Error{SCHEMA}, got %v", err)
	}
}

func TestFetch_KeysByReference(t *testing.T) {
	s, mock := newMockStore(t)
	req := parseRequest(t, `{"collectionName":"products","fields":["text"],"query":"apple","queryRef":"sku"}`)
	q, _ := BuildQuery(req)

	mock.ExpectQuery(q.SQL).
		WithArgs("products").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).
			AddRow("a", []byte(`{"text":"red apple"}`)).
			AddRow("b", []byte(`{"text":"green apple","sku":"S-2"}`)))

	corpus, err := s.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	refs := corpus.Refs()
	if len(refs) != 2 || refs[0] != "a" || refs[1] != "S-2" {
		t.Errorf("refs = %v, want [a S-2]", refs)
	}
	doc, _ := corpus.Get("S-2")
	if doc.ID() != "b" || doc.Fields()["text"] != "green apple" {
		t.Errorf("doc = %s %v", doc.ID(), doc.Fields())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFetch_QueryError(t *testing.T) {
	s, mock := newMockStore(t)
	req := parseRequest(t, `{"collectionName":"products","fields":["text"],"query":"apple"}`)
	q, _ := BuildQuery(req)
	mock.ExpectQuery(q.SQL).WithArgs("products").WillReturnError(errors.New("connection reset"))

	_, err := s.Fetch(context.Background(), req)
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSelect {
		t.Fatalf("expected *db.Error{SELECT}, got %v", err)
	}
}

func TestFetch_RejectedQueryNeverHitsDatabase(t *testing.T) {
	s, mock := newMockStore(t)
	req := parseRequest(t, `{"collectionName":"c","fields":["t"],"query":"q","limitToLast":3}`)

	if _, err := s.Fetch(context.Background(), req); !errors.Is(err, db.ErrUnsupportedQuery) {
		t.Fatalf("expected ErrUnsupportedQuery, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFetch_MalformedRow(t *testing.T) {
	s, mock := newMockStore(t)
	req := parseRequest(t, `{"collectionName":"c","fields":["t"],"query":"q"}`)
	q, _ := BuildQuery(req)
	mock.ExpectQuery(q.SQL).WithArgs("c").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).AddRow("x", []byte(`[1,2]`)))

	if _, err := s.Fetch(context.Background(), req); err == nil {
		t.Fatal("expected decode error")
	}
}

// responseArg matches the encoded response payload.
type responseArg struct {
	successful bool
}

func (a responseArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var w struct {
		Result       []json.RawMessage `json:"result"`
		IsSuccessful bool              `json:"isSuccessful"`
	}
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return false
	}
	return w.Result != nil && w.IsSuccessful == a.successful
}

func TestWriteResponse(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(updateResponseSQL).
		WithArgs("tocha_searches", "r1", responseArg{successful: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.WriteResponse(context.Background(), "tocha_searches", "r1", result.Success(nil))
	if err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWriteResponse_Failure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(updateResponseSQL).
		WithArgs("tocha_searches", "r1", responseArg{successful: false}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.WriteResponse(context.Background(), "tocha_searches", "r1", result.Failure(errors.New("boom")))
	if err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
}

func TestWriteResponse_MissingRecord(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(updateResponseSQL).
		WithArgs("tocha_searches", "gone", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.WriteResponse(context.Background(), "tocha_searches", "gone", result.Success(nil))
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

type fakeListener struct {
	ch       chan *pq.Notification
	channels []string
	closed   bool
}

func (f *fakeListener) Listen(channel string) error {
	f.channels = append(f.channels, channel)
	return nil
}
func (f *fakeListener) NotificationChannel() <-chan *pq.Notification { return f.ch }
func (f *fakeListener) Ping() error                                  { return nil }
func (f *fakeListener) Close() error {
	f.closed = true
	return nil
}

func TestSubscribe_BacklogThenNotifications(t *testing.T) {
	s, mock := newMockStore(t)
	l := &fakeListener{ch: make(chan *pq.Notification, 4)}
	s.newListener = func(context.Context) listener { return l }

	mock.ExpectQuery(pendingSQL).WithArgs("tocha_searches").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).AddRow("r1", []byte(`{"query":"a"}`)))
	mock.ExpectQuery(recordSQL).WithArgs("tocha_searches", "r2").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"query":"b"}`)))

	l.ch <- &pq.Notification{Channel: NotifyChannel, Extra: `{"collection":"products","id":"p1"}`}
	l.ch <- &pq.Notification{Channel: NotifyChannel, Extra: `{"collection":"tocha_searches","id":"r1"}`}
	l.ch <- &pq.Notification{Channel: NotifyChannel, Extra: `{"collection":"tocha_searches","id":"r2"}`}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan db.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Subscribe(ctx, "tocha_searches", func(_ context.Context, ev db.Event) error {
			events <- ev
			return nil
		})
	}()

	var got []db.Event
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %d events", len(got))
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not stop")
	}

	if got[0].ID != "r1" || string(got[0].Record) != `{"query":"a"}` {
		t.Errorf("first event = %s %s", got[0].ID, got[0].Record)
	}
	if got[1].ID != "r2" || got[1].Ack == nil {
		t.Errorf("second event = %+v", got[1])
	}
	if len(l.channels) != 1 || l.channels[0] != NotifyChannel || !l.closed {
		t.Errorf("listener = %+v", l)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSubscribe_SkipsAnsweredRecordOnNotification(t *testing.T) {
	s, mock := newMockStore(t)
	l := &fakeListener{ch: make(chan *pq.Notification, 4)}
	s.newListener = func(context.Context) listener { return l }

	mock.ExpectQuery(pendingSQL).WithArgs("tocha_searches").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data"}).AddRow("r1", []byte(`{"query":"a"}`)))
	// r1 was answered by the backlog pass, so the guarded lookup finds nothing.
	mock.ExpectQuery(recordSQL).WithArgs("tocha_searches", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	mock.ExpectQuery(recordSQL).WithArgs("tocha_searches", "r2").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"query":"b"}`)))

	l.ch <- &pq.Notification{Channel: NotifyChannel, Extra: `{"collection":"tocha_searches","id":"r1"}`}
	l.ch <- &pq.Notification{Channel: NotifyChannel, Extra: `{"collection":"tocha_searches","id":"r2"}`}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan db.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Subscribe(ctx, "tocha_searches", func(ctx context.Context, ev db.Event) error {
			events <- ev
			return ev.Ack(ctx)
		})
	}()

	var got []string
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev.ID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not stop")
	}

	if len(got) != 2 || got[0] != "r1" || got[1] != "r2" {
		t.Errorf("delivered = %v, want [r1 r2]", got)
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected extra delivery of %s", ev.ID)
	default:
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDispatcher_SuppressesInflight(t *testing.T) {
	var (
		delivered []string
		first     db.Event
	)
	d := &dispatcher{
		inflight: make(map[string]struct{}),
		deliver: func(_ context.Context, ev db.Event) error {
			delivered = append(delivered, ev.ID)
			first = ev
			return nil
		},
	}
	ctx := context.Background()

	d.dispatch(ctx, db.Event{ID: "r1"})
	d.dispatch(ctx, db.Event{ID: "r1"})
	if len(delivered) != 1 {
		t.Fatalf("delivered = %v, want one", delivered)
	}

	if err := first.Ack(ctx); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	d.dispatch(ctx, db.Event{ID: "r1"})
	if len(delivered) != 2 {
		t.Errorf("delivered = %v, want redelivery after ack", delivered)
	}
}

func TestDispatcher_ReleasesOnDeliverError(t *testing.T) {
	calls := 0
	d := &dispatcher{
		inflight: make(map[string]struct{}),
		deliver: func(context.Context, db.Event) error {
			calls++
			return context.Canceled
		},
	}
	d.dispatch(context.Background(), db.Event{ID: "r1"})
	d.dispatch(context.Background(), db.Event{ID: "r1"})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
