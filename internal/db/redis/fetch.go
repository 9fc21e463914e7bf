package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
)

// Fetch reads the node's children selected by the request, keyed by reference.
// Each returned document carries its child key in the "key" field.
func (s *Store) Fetch(ctx context.Context, req *request.Request) (*document.Corpus, error) {
	plan, err := BuildPlan(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	children, skipped, err := s.readChildren(ctx, plan)
	if err != nil {
		return nil, err
	}
	if skipped && plan.Native() && plan.Page.IsSet() {
		// Stale index entries used up part of the LIMIT: read the whole
		// range and page in process so the page holds live children only.
		full := plan.unpaged()
		if children, _, err = s.readChildren(ctx, full); err != nil {
			return nil, err
		}
		children = plan.trim(children)
	} else if children, err = plan.apply(children); err != nil {
		return nil, err
	}

	corpus := document.NewCorpus()
	for _, c := range children {
		doc := c.doc.WithKey()
		corpus.Add(doc.Ref(req.RefField()), doc)
	}
	return corpus, nil
}

// readChildren runs the plan's ZRANGE and loads the children it names.
// skipped reports whether any index entry pointed at a missing hash.
func (s *Store) readChildren(ctx context.Context, p Plan) ([]child, bool, error) {
	keys, err := s.childKeys(ctx, p)
	if err != nil {
		return nil, false, err
	}
	children, err := s.loadChildren(ctx, p.Node, keys)
	if err != nil {
		return nil, false, err
	}
	return children, len(children) < len(keys), nil
}

func (s *Store) childKeys(ctx context.Context, p Plan) ([]string, error) {
	cmd := s.b().Arbitrary("ZRANGE").Keys(s.keys.index(p.Node)).Args(p.RangeArgs()...).Build()
	keys, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	return keys, nil
}

// loadChildren fetches all child hashes in a single DoMulti round-trip.
// Index entries whose hash is gone are skipped.
func (s *Store) loadChildren(ctx context.Context, node string, keys []string) ([]child, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Hgetall().Key(s.keys.child(node, key)).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	children := make([]child, 0, len(results))
	for i, res := range results {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		if len(m) == 0 {
			continue
		}
		children = append(children, child{key: keys[i], doc: document.New(keys[i], decodeFields(m))})
	}
	return children, nil
}

// decodeFields decodes JSON-encoded hash values. Values written by other
// clients that are not valid JSON are kept as plain strings.
func decodeFields(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, raw := range m {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[k] = v
	}
	return out
}

func encodeFields(fields map[string]any) ([]string, error) {
	args := make([]string, 0, 2*len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", k, err)
		}
		args = append(args, k, string(raw))
	}
	return args, nil
}
