package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperchat-be/internal/constant"
	"paperchat-be/internal/pkg/logger"
	"paperchat-be/internal/repository/unitofwork"
	"paperchat-be/pkg/embedding"
	"paperchat-be/pkg/rag/ragerr"
	"paperchat-be/pkg/rerank"
	"paperchat-be/pkg/store"

	"github.com/google/uuid"
)

// Options bounds one retrieval pass.
type Options struct {
	Limit         int     // max fresh vector hits
	Threshold     float64 // min cosine similarity for fresh hits
	RerankTopN    int     // candidates surviving the rerank cut
	RerankTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Limit:         12,
		Threshold:     0.35,
		RerankTopN:    6,
		RerankTimeout: 3 * time.Second,
	}
}

// Retriever runs hybrid retrieval: fresh vector search over the chunk
// store, unioned with passages cited in the recent turns of the same
// conversation, then cross-encoder reranking with fail-open.
type Retriever struct {
	embedder embedding.EmbeddingProvider
	reranker rerank.Reranker
	logger   logger.ILogger
	opts     Options
}

func NewRetriever(embedder embedding.EmbeddingProvider, reranker rerank.Reranker, log logger.ILogger, opts Options) *Retriever {
	return &Retriever{
		embedder: embedder,
		reranker: reranker,
		logger:   log,
		opts:     opts,
	}
}

// Retrieve assembles the grounded candidate set for one turn. An empty
// result is a valid outcome; an unreachable chunk store is not. With
// skipRerank the cross-encoder is bypassed and the similarity-ordered
// set is truncated to the same budget.
func (r *Retriever) Retrieve(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID, query string, turnIndex int, skipRerank bool) ([]store.Candidate, error) {
	resp, err := r.embedder.Generate(query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: query embedding: %v", ragerr.ErrRetrievalUnavailable, err)
	}

	scored, err := uow.PassageRepository().SearchSimilarWithScore(ctx, resp.Embedding.Values, r.opts.Limit, r.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ragerr.ErrRetrievalUnavailable, err)
	}

	candidates := make([]store.Candidate, 0, len(scored))
	seen := make(map[string]bool, len(scored))
	for _, s := range scored {
		c := store.Candidate{
			PassageID:  s.Passage.Id.String(),
			DocumentID: s.Passage.DocumentId.String(),
			Text:       s.Passage.Text,
			Similarity: s.Similarity,
		}
		if s.Document != nil {
			c.SourceID = s.Document.SourceId
			c.Title = s.Document.Title
			c.Journal = s.Document.Journal
		}
		candidates = append(candidates, c)
		seen[c.PassageID] = true
	}

	carried, err := r.carryForward(ctx, uow, conversationId, turnIndex, seen)
	if err != nil {
		// Carry-forward is an enrichment. Losing it degrades recall for
		// follow-ups but does not invalidate the fresh results.
		r.logger.Warn("Retriever", "carry-forward lookup failed", map[string]interface{}{
			"conversation_id": conversationId.String(),
			"error":           err.Error(),
		})
	} else {
		candidates = append(candidates, carried...)
	}

	if skipRerank {
		return rerank.Truncate(candidates, r.opts.RerankTopN), nil
	}
	return r.rerankCandidates(ctx, query, candidates), nil
}

// carryForward pulls the passages cited by recent assistant turns so a
// follow-up question keeps its grounding even when phrased too obliquely
// for vector search to find the same chunks again.
func (r *Retriever) carryForward(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID, turnIndex int, seen map[string]bool) ([]store.Candidate, error) {
	sinceTurn := turnIndex - constant.CarryForwardTurns
	if sinceTurn < 0 {
		sinceTurn = 0
	}

	sources, err := uow.MessageSourceRepository().FindCitedSince(ctx, conversationId, sinceTurn)
	if err != nil {
		return nil, err
	}

	carried := make([]store.Candidate, 0, len(sources))
	for _, src := range sources {
		if src.Passage == nil {
			continue
		}
		id := src.Passage.Id.String()
		if seen[id] {
			continue
		}
		seen[id] = true

		c := store.Candidate{
			PassageID:      id,
			DocumentID:     src.Passage.DocumentId.String(),
			Text:           src.Passage.Text,
			CarriedForward: true,
		}
		if src.Document != nil {
			c.SourceID = src.Document.SourceId
			c.Title = src.Document.Title
			c.Journal = src.Document.Journal
		}
		carried = append(carried, c)
	}
	return carried, nil
}

// rerankCandidates applies the cross-encoder cut. Any reranker failure
// fails open: the similarity-ordered set is kept, truncated to the same
// budget, and the turn proceeds.
func (r *Retriever) rerankCandidates(ctx context.Context, query string, candidates []store.Candidate) []store.Candidate {
	if len(candidates) == 0 || r.reranker == nil {
		return candidates
	}

	rerankCtx, cancel := context.WithTimeout(ctx, r.opts.RerankTimeout)
	defer cancel()

	reranked, err := r.reranker.Rerank(rerankCtx, query, candidates, r.opts.RerankTopN)
	if err != nil {
		reason := ragerr.ErrRerankUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ragerr.ErrRerankTimeout
		}
		r.logger.Warn("Retriever", "rerank failed open, keeping similarity order", map[string]interface{}{
			"model":  r.reranker.ModelName(),
			"reason": reason.Error(),
			"error":  err.Error(),
		})
		return rerank.Truncate(candidates, r.opts.RerankTopN)
	}
	return reranked
}
