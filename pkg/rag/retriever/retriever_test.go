package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"paperchat-be/internal/entity"
	"paperchat-be/internal/repository/contract"
	"paperchat-be/internal/repository/unitofwork"
	"paperchat-be/pkg/embedding"
	"paperchat-be/pkg/rag/ragerr"
	"paperchat-be/pkg/store"

	"github.com/google/uuid"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2}},
	}, nil
}

type fakeReranker struct {
	err    error
	called bool
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []store.Candidate, topN int) ([]store.Candidate, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	// reverse order to make the rerank effect observable
	out := make([]store.Candidate, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		score := float64(len(candidates) - i)
		c.RerankScore = &score
		out = append(out, c)
	}
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

func (f *fakeReranker) ModelName() string { return "fake-reranker" }

type fakePassageRepo struct {
	contract.PassageRepository
	scored []*contract.ScoredPassage
	err    error
}

func (f *fakePassageRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, limit int, threshold float64) ([]*contract.ScoredPassage, error) {
	return f.scored, f.err
}

type fakeSourceRepo struct {
	contract.MessageSourceRepository
	sources []*entity.MessageSource
	err     error
}

func (f *fakeSourceRepo) FindCitedSince(ctx context.Context, conversationId uuid.UUID, sinceTurn int) ([]*entity.MessageSource, error) {
	return f.sources, f.err
}

type fakeUow struct {
	unitofwork.UnitOfWork
	passages *fakePassageRepo
	sources  *fakeSourceRepo
}

func (f *fakeUow) PassageRepository() contract.PassageRepository {
	return f.passages
}

func (f *fakeUow) MessageSourceRepository() contract.MessageSourceRepository {
	return f.sources
}

func scoredPassage(docSource string, text string, similarity float64) *contract.ScoredPassage {
	docId := uuid.New()
	return &contract.ScoredPassage{
		Passage: &entity.Passage{
			Id:         uuid.New(),
			DocumentId: docId,
			Text:       text,
		},
		Document: &entity.Document{
			Id:       docId,
			SourceId: docSource,
			Title:    "Title of " + docSource,
		},
		Similarity: similarity,
	}
}

func citedSource(passage *entity.Passage, doc *entity.Document) *entity.MessageSource {
	return &entity.MessageSource{
		Id:        uuid.New(),
		MessageId: uuid.New(),
		PassageId: passage.Id,
		Passage:   passage,
		Document:  doc,
	}
}

func testRetriever(embedder embedding.EmbeddingProvider, reranker *fakeReranker) *Retriever {
	opts := DefaultOptions()
	opts.RerankTimeout = 200 * time.Millisecond
	if reranker == nil {
		return NewRetriever(embedder, nil, nopLogger{}, opts)
	}
	return NewRetriever(embedder, reranker, nopLogger{}, opts)
}

func TestRetrieveFreshHits(t *testing.T) {
	uow := &fakeUow{
		passages: &fakePassageRepo{scored: []*contract.ScoredPassage{
			scoredPassage("10.1038/a", "gene drives", 0.9),
			scoredPassage("10.1126/b", "off-target edits", 0.7),
		}},
		sources: &fakeSourceRepo{},
	}

	r := testRetriever(&fakeEmbedder{}, nil)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "gene drives?", 0, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	if got[0].SourceID != "10.1038/a" || got[0].Similarity != 0.9 {
		t.Errorf("first candidate = %+v", got[0])
	}
	if got[0].CarriedForward {
		t.Error("fresh hit marked carried forward")
	}
}

func TestRetrieveEmptyIsNotAnError(t *testing.T) {
	uow := &fakeUow{passages: &fakePassageRepo{}, sources: &fakeSourceRepo{}}

	r := testRetriever(&fakeEmbedder{}, nil)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "unrelated question", 0, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates = %d, want 0", len(got))
	}
}

func TestRetrieveStoreFailureIsHard(t *testing.T) {
	uow := &fakeUow{
		passages: &fakePassageRepo{err: errors.New("connection refused")},
		sources:  &fakeSourceRepo{},
	}

	r := testRetriever(&fakeEmbedder{}, nil)
	_, err := r.Retrieve(context.Background(), uow, uuid.New(), "q", 0, false)
	if !errors.Is(err, ragerr.ErrRetrievalUnavailable) {
		t.Errorf("err = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestRetrieveEmbeddingFailureIsHard(t *testing.T) {
	uow := &fakeUow{passages: &fakePassageRepo{}, sources: &fakeSourceRepo{}}

	r := testRetriever(&fakeEmbedder{err: errors.New("model offline")}, nil)
	_, err := r.Retrieve(context.Background(), uow, uuid.New(), "q", 0, false)
	if !errors.Is(err, ragerr.ErrRetrievalUnavailable) {
		t.Errorf("err = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestRetrieveCarryForwardDedup(t *testing.T) {
	fresh := scoredPassage("10.1038/a", "gene drives", 0.9)

	carriedDoc := &entity.Document{Id: uuid.New(), SourceId: "10.1126/b", Title: "Earlier cited"}
	carriedPassage := &entity.Passage{Id: uuid.New(), DocumentId: carriedDoc.Id, Text: "previously cited chunk"}

	uow := &fakeUow{
		passages: &fakePassageRepo{scored: []*contract.ScoredPassage{fresh}},
		sources: &fakeSourceRepo{sources: []*entity.MessageSource{
			citedSource(fresh.Passage, fresh.Document), // duplicate of a fresh hit
			citedSource(carriedPassage, carriedDoc),
		}},
	}

	r := testRetriever(&fakeEmbedder{}, nil)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "follow-up", 4, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2 (duplicate collapsed)", len(got))
	}

	var carried *store.Candidate
	for i := range got {
		if got[i].CarriedForward {
			carried = &got[i]
		}
	}
	if carried == nil {
		t.Fatal("no carried-forward candidate in result")
	}
	if carried.SourceID != "10.1126/b" {
		t.Errorf("carried.SourceID = %q, want 10.1126/b", carried.SourceID)
	}
}

func TestRetrieveCarryForwardFailureDegrades(t *testing.T) {
	uow := &fakeUow{
		passages: &fakePassageRepo{scored: []*contract.ScoredPassage{
			scoredPassage("10.1038/a", "gene drives", 0.9),
		}},
		sources: &fakeSourceRepo{err: errors.New("join failed")},
	}

	r := testRetriever(&fakeEmbedder{}, nil)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "q", 5, false)
	if err != nil {
		t.Fatalf("carry-forward failure should not be terminal: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("candidates = %d, want the fresh hit alone", len(got))
	}
}

func TestRetrieveRerankFailsOpen(t *testing.T) {
	uow := &fakeUow{
		passages: &fakePassageRepo{scored: []*contract.ScoredPassage{
			scoredPassage("10.1038/a", "first by similarity", 0.9),
			scoredPassage("10.1126/b", "second by similarity", 0.7),
		}},
		sources: &fakeSourceRepo{},
	}

	rr := &fakeReranker{err: errors.New("503")}
	r := testRetriever(&fakeEmbedder{}, rr)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "q", 0, false)
	if err != nil {
		t.Fatalf("rerank failure should fail open: %v", err)
	}
	if !rr.called {
		t.Fatal("reranker was not invoked")
	}
	if got[0].SourceID != "10.1038/a" {
		t.Errorf("similarity order not preserved on fail-open: first = %q", got[0].SourceID)
	}
	if got[0].RerankScore != nil {
		t.Error("fail-open result should carry no rerank scores")
	}
}

func TestRetrieveRerankApplied(t *testing.T) {
	uow := &fakeUow{
		passages: &fakePassageRepo{scored: []*contract.ScoredPassage{
			scoredPassage("10.1038/a", "first by similarity", 0.9),
			scoredPassage("10.1126/b", "second by similarity", 0.7),
		}},
		sources: &fakeSourceRepo{},
	}

	rr := &fakeReranker{}
	r := testRetriever(&fakeEmbedder{}, rr)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "q", 0, false)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	// fakeReranker reverses the input
	if got[0].SourceID != "10.1126/b" {
		t.Errorf("rerank order not applied: first = %q", got[0].SourceID)
	}
	if got[0].RerankScore == nil {
		t.Error("reranked candidate missing score")
	}
}

func TestRetrieveSkipRerankBypassesReranker(t *testing.T) {
	uow := &fakeUow{
		passages: &fakePassageRepo{scored: []*contract.ScoredPassage{
			scoredPassage("10.1038/a", "first by similarity", 0.9),
			scoredPassage("10.1126/b", "second by similarity", 0.7),
		}},
		sources: &fakeSourceRepo{},
	}

	rr := &fakeReranker{}
	r := testRetriever(&fakeEmbedder{}, rr)
	got, err := r.Retrieve(context.Background(), uow, uuid.New(), "q", 0, true)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if rr.called {
		t.Fatal("reranker invoked despite skip")
	}
	if got[0].SourceID != "10.1038/a" {
		t.Errorf("similarity order not preserved: first = %q", got[0].SourceID)
	}
	if got[0].RerankScore != nil {
		t.Error("skipped rerank should carry no scores")
	}
}
