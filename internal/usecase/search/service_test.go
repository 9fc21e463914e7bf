package search

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/tocha/internal/domain"
	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
)

// --- Mocks ---

type mockFetcher struct {
	corpus  *document.Corpus
	err     error
	panics  bool
	calls   int
	lastReq *request.Request
}

func (m *mockFetcher) Fetch(_ context.Context, req *request.Request) (*document.Corpus, error) {
	m.calls++
	m.lastReq = req
	if m.panics {
		panic("driver exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.corpus == nil {
		return document.NewCorpus(), nil
	}
	return m.corpus, nil
}

type written struct {
	location  string
	requestID string
	resp      result.Response
}

type mockWriter struct {
	writes []written
	err    error
}

func (m *mockWriter) WriteResponse(_ context.Context, location, requestID string, resp result.Response) error {
	m.writes = append(m.writes, written{location: location, requestID: requestID, resp: resp})
	return m.err
}

type mockObserver struct {
	mu       sync.Mutex
	stages   []Stage
	outcomes []Outcome
}

func (m *mockObserver) ObserveStage(stage Stage, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func (m *mockObserver) ObserveRequest(outcome Outcome, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func fruitCorpus() *document.Corpus {
	c := document.NewCorpus()
	for _, d := range []struct{ id, text string }{
		{"a", "red apple"},
		{"b", "green apple"},
		{"c", "blue car"},
	} {
		c.Add(d.id, document.New(d.id, map[string]any{"text": d.text}))
	}
	return c
}

const appleRequest = `{"collectionName":"products","fields":["text"],"query":"apple"}`

func handleOnce(t *testing.T, svc *Service, w *mockWriter, raw string) result.Response {
	t.Helper()
	if err := svc.Handle(context.Background(), "tocha_searches", "req-1", []byte(raw)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(w.writes) != 1 {
		t.Fatalf("expected exactly one write, got %d", len(w.writes))
	}
	wr := w.writes[0]
	if wr.location != "tocha_searches" || wr.requestID != "req-1" {
		t.Errorf("written to %s/%s", wr.location, wr.requestID)
	}
	return wr.resp
}

func refs(resp result.Response) []string {
	out := make([]string, 0, len(resp.Results()))
	for _, r := range resp.Results() {
		out = append(out, r.Ref())
	}
	return out
}

func assertFailure(t *testing.T, resp result.Response, contains string) {
	t.Helper()
	if resp.IsSuccessful() {
		t.Fatal("expected failure response")
	}
	if resp.ErrorMessage() == "" || !strings.Contains(resp.ErrorMessage(), contains) {
		t.Errorf("ErrorMessage() = %q, want it to contain %q", resp.ErrorMessage(), contains)
	}
	if resp.Results() == nil || len(resp.Results()) != 0 {
		t.Errorf("Results() = %v, want empty", resp.Results())
	}
}

// --- Tests ---

func TestHandle_RanksMatches(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{corpus: fruitCorpus()}, w, nil, Config{})

	resp := handleOnce(t, svc, w, appleRequest)
	if !resp.IsSuccessful() || resp.ErrorMessage() != "" {
		t.Fatalf("expected success, got %q", resp.ErrorMessage())
	}
	got := refs(resp)
	if len(got) != 2 || !strings.Contains(strings.Join(got, ","), "a") || !strings.Contains(strings.Join(got, ","), "b") {
		t.Fatalf("refs = %v, want a and b", got)
	}
	results := resp.Results()
	for i, r := range results {
		if r.Score() <= 0 {
			t.Errorf("result %s has score %v", r.Ref(), r.Score())
		}
		if i > 0 && r.Score() > results[i-1].Score() {
			t.Errorf("scores not non-increasing: %v then %v", results[i-1].Score(), r.Score())
		}
		if r.Data()["text"] == nil {
			t.Errorf("result %s lost its document", r.Ref())
		}
	}
}

func TestHandle_EmptyQuery(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{corpus: fruitCorpus()}, w, nil, Config{})

	resp := handleOnce(t, svc, w, `{"collectionName":"products","fields":["text"],"query":""}`)
	if !resp.IsSuccessful() {
		t.Fatalf("expected success, got %q", resp.ErrorMessage())
	}
	raw, _ := json.Marshal(resp)
	if string(raw) != `{"result":[],"isSuccessful":true}` {
		t.Errorf("encoded = %s", raw)
	}
}

func TestHandle_FetchFailureWritesOnce(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{err: errors.New("network unreachable")}, w, nil, Config{})

	resp := handleOnce(t, svc, w, appleRequest)
	assertFailure(t, resp, "network unreachable")
	if !strings.Contains(resp.ErrorMessage(), domain.ErrBackendQuery.Error()) {
		t.Errorf("ErrorMessage() = %q, want backend query kind", resp.ErrorMessage())
	}
}

func TestHandle_ValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"collectionName":`},
		{"missing collection", `{"fields":["text"],"query":"apple"}`},
		{"missing query", `{"collectionName":"p","fields":["text"]}`},
		{"no fields", `{"collectionName":"p","fields":[],"query":"apple"}`},
		{"negative limit", `{"collectionName":"p","fields":["text"],"query":"apple","limit":-1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &mockFetcher{corpus: fruitCorpus()}
			w := &mockWriter{}
			resp := handleOnce(t, New(f, w, nil, Config{}), w, tc.raw)
			assertFailure(t, resp, domain.ErrRequestValidation.Error())
			if f.calls != 0 {
				t.Errorf("fetch called %d times for an invalid request", f.calls)
			}
		})
	}
}

func TestHandle_IndexingFailure(t *testing.T) {
	c := document.NewCorpus()
	c.Add("a", document.New("a", map[string]any{"text": map[string]any{"nested": "apple"}}))
	w := &mockWriter{}

	resp := handleOnce(t, New(&mockFetcher{corpus: c}, w, nil, Config{}), w, appleRequest)
	assertFailure(t, resp, domain.ErrIndexing.Error())
}

func TestHandle_QueryParseFailure(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{corpus: fruitCorpus()}, w, nil, Config{})

	resp := handleOnce(t, svc, w, `{"collectionName":"products","fields":["text"],"query":"color:red"}`)
	assertFailure(t, resp, "color")
}

func TestHandle_PanicBecomesFailure(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{panics: true}, w, nil, Config{})

	resp := handleOnce(t, svc, w, appleRequest)
	assertFailure(t, resp, "driver exploded")
	if !strings.Contains(resp.ErrorMessage(), string(Fetching)) {
		t.Errorf("ErrorMessage() = %q, want the faulting stage", resp.ErrorMessage())
	}
}

func TestHandle_WriteBackErrorEscapes(t *testing.T) {
	w := &mockWriter{err: errors.New("record deleted")}
	obs := &mockObserver{}
	svc := New(&mockFetcher{corpus: fruitCorpus()}, w, obs, Config{})

	err := svc.Handle(context.Background(), "tocha_searches", "req-1", []byte(appleRequest))
	if !errors.Is(err, domain.ErrWriteBack) {
		t.Fatalf("expected ErrWriteBack, got %v", err)
	}
	if len(w.writes) != 1 {
		t.Errorf("expected one write attempt, got %d", len(w.writes))
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeWriteFailed {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestHandle_PartialFilterIgnored(t *testing.T) {
	f := &mockFetcher{corpus: fruitCorpus()}
	w := &mockWriter{}
	raw := `{"collectionName":"products","fields":["text"],"query":"apple","where":[
		{"field":"color","val":"red"},
		{"field":"kind","operator":"==","value":"fruit"}
	]}`

	resp := handleOnce(t, New(f, w, nil, Config{}), w, raw)
	if !resp.IsSuccessful() {
		t.Fatalf("expected success, got %q", resp.ErrorMessage())
	}
	filters := f.lastReq.Filters()
	if len(filters) != 1 || filters[0].Field() != "kind" || filters[0].Value() != "fruit" {
		t.Errorf("filters = %+v, want only kind == fruit", filters)
	}
}

func TestHandle_MaxResults(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{corpus: fruitCorpus()}, w, nil, Config{MaxResults: 1})

	resp := handleOnce(t, svc, w, appleRequest)
	if len(resp.Results()) != 1 {
		t.Errorf("results = %d, want 1", len(resp.Results()))
	}
}

func TestHandle_ReplayIsIdempotent(t *testing.T) {
	w1, w2 := &mockWriter{}, &mockWriter{}
	raw := `{"collectionName":"products","fields":["text"],"query":"apple car blue"}`

	first := handleOnce(t, New(&mockFetcher{corpus: fruitCorpus()}, w1, nil, Config{}), w1, raw)
	second := handleOnce(t, New(&mockFetcher{corpus: fruitCorpus()}, w2, nil, Config{}), w2, raw)
	if !reflect.DeepEqual(refs(first), refs(second)) {
		t.Errorf("replay changed order: %v vs %v", refs(first), refs(second))
	}
}

func TestHandle_ObservesStages(t *testing.T) {
	obs := &mockObserver{}
	w := &mockWriter{}
	handleOnce(t, New(&mockFetcher{corpus: fruitCorpus()}, w, obs, Config{}), w, appleRequest)

	want := []Stage{Parsing, Fetching, Indexing, Ranking, Assembling, Writing}
	if !reflect.DeepEqual(obs.stages, want) {
		t.Errorf("stages = %v, want %v", obs.stages, want)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeSuccess {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestHandle_ObservesFailure(t *testing.T) {
	obs := &mockObserver{}
	w := &mockWriter{}
	handleOnce(t, New(&mockFetcher{err: errors.New("down")}, w, obs, Config{}), w, appleRequest)

	want := []Stage{Parsing, Fetching, Writing}
	if !reflect.DeepEqual(obs.stages, want) {
		t.Errorf("stages = %v, want %v", obs.stages, want)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != OutcomeFailed {
		t.Errorf("outcomes = %v", obs.outcomes)
	}
}

func TestSearch_ReturnsResultsWithoutWriting(t *testing.T) {
	w := &mockWriter{}
	svc := New(&mockFetcher{corpus: fruitCorpus()}, w, nil, Config{})

	results, err := svc.Search(context.Background(), []byte(appleRequest))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Ref() != "a" && r.Ref() != "b" {
			t.Errorf("unexpected ref %q", r.Ref())
		}
	}
	if len(w.writes) != 0 {
		t.Errorf("expected no writes, got %d", len(w.writes))
	}
}

func TestSearch_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *mockFetcher
		raw     string
		want    error
	}{
		{"validation", &mockFetcher{}, `{"collectionName":"c","fields":[]}`, domain.ErrRequestValidation},
		{"backend", &mockFetcher{err: errors.New("timeout")}, appleRequest, domain.ErrBackendQuery},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			obs := &mockObserver{}
			svc := New(tc.fetcher, &mockWriter{}, obs, Config{})

			_, err := svc.Search(context.Background(), []byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(obs.outcomes) != 0 {
				t.Errorf("Search must not report request outcomes, got %v", obs.outcomes)
			}
		})
	}
}
