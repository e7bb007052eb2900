package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paperchat-be/pkg/rerank"
	"paperchat-be/pkg/store"
)

// JinaReranker scores candidates against the Jina rerank API
// (cross-encoder, stateless, batchable).
type JinaReranker struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ rerank.Reranker = &JinaReranker{}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewJinaReranker(apiKey, baseURL string) *JinaReranker {
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1/rerank"
	}
	return &JinaReranker{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   "jina-reranker-v2-base-multilingual",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *JinaReranker) ModelName() string {
	return r.model
}

func (r *JinaReranker) Rerank(ctx context.Context, query string, candidates []store.Candidate, topN int) ([]store.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Text
	}

	reqBody := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina rerank error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(bodyBytes, &rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rerankResp.Error != nil {
		return nil, fmt.Errorf("jina rerank returned error: %s", rerankResp.Error.Message)
	}

	// Map scores back onto the original candidates by index. Rebuilding in
	// original (similarity rank) order before the stable sort makes
	// similarity rank the tie-break for equal rerank scores.
	scores := make(map[int]float64, len(rerankResp.Results))
	for _, res := range rerankResp.Results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank result index %d out of range", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
	}

	scored := make([]store.Candidate, 0, len(scores))
	for i, c := range candidates {
		score, ok := scores[i]
		if !ok {
			continue // truncated server-side by top_n
		}
		c.RerankScore = &score
		scored = append(scored, c)
	}

	rerank.SortByScore(scored)
	return rerank.Truncate(scored, topN), nil
}
