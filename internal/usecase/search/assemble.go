package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tocha/internal/domain"
	"github.com/kailas-cloud/tocha/internal/domain/document"
	"github.com/kailas-cloud/tocha/internal/domain/search/result"
	"github.com/kailas-cloud/tocha/internal/fts"
	"github.com/kailas-cloud/tocha/internal/logger"
)

// Assemble joins ranked references back to their full documents, keeping rank
// order. A reference with no corpus entry yields a missing-document result
// and is logged; it never aborts assembly.
func Assemble(ctx context.Context, ranked []fts.Match, corpus *document.Corpus) []result.Result {
	results := make([]result.Result, 0, len(ranked))
	for _, m := range ranked {
		doc, ok := corpus.Get(m.Ref)
		if !ok {
			logger.FromContext(ctx).Warn("dangling search reference",
				zap.Error(fmt.Errorf("%w: reference %q not in corpus", domain.ErrAssembly, m.Ref)))
			results = append(results, result.Missing(m.Ref, m.Score))
			continue
		}
		results = append(results, result.New(m.Ref, m.Score, doc.Fields()))
	}
	return results
}
