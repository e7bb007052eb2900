package rerank

import (
	"context"
	"sort"

	"paperchat-be/pkg/store"
)

// Reranker scores (query, passage) pairs with a cross-encoder relevance
// function. Implementations must respect context deadlines; callers treat
// any error as a soft failure and keep the similarity order (fail-open).
type Reranker interface {
	// Rerank returns candidates sorted by cross-encoder score descending,
	// truncated to topN, each with RerankScore set.
	Rerank(ctx context.Context, query string, candidates []store.Candidate, topN int) ([]store.Candidate, error)

	// ModelName identifies the scoring model for logging.
	ModelName() string
}

// SortByScore orders candidates by rerank score descending. The sort is
// stable so original similarity rank breaks ties.
func SortByScore(candidates []store.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := 0.0, 0.0
		if candidates[i].RerankScore != nil {
			si = *candidates[i].RerankScore
		}
		if candidates[j].RerankScore != nil {
			sj = *candidates[j].RerankScore
		}
		return si > sj
	})
}

// Truncate caps a candidate list to topN, preserving order.
func Truncate(candidates []store.Candidate, topN int) []store.Candidate {
	if topN > 0 && len(candidates) > topN {
		return candidates[:topN]
	}
	return candidates
}
