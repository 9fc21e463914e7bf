package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/tocha/internal/db"
	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/request"
)

// Fetch runs the constructed query and returns the rows keyed by reference.
func (s *Store) Fetch(ctx context.Context, req *request.Request) (*document.Corpus, error) {
	q, err := BuildQuery(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	defer rows.Close()

	corpus := document.NewCorpus()
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, &db.Error{Op: db.OpSelect, Err: err}
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return nil, err
		}
		corpus.Add(doc.Ref(req.RefField()), doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSelect, Err: err}
	}
	return corpus, nil
}

func decodeDocument(id string, raw []byte) (document.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return document.Document{}, fmt.Errorf("decode document %q: %w", id, err)
	}
	return document.New(id, fields), nil
}
