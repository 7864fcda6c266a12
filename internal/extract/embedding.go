package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/model"
)

// EmbeddingScorer scores by cosine similarity of text embeddings from an
// Ollama-compatible endpoint. Any failure falls back to the lexical
// scorer transparently, so matching never depends on the embedding
// backend being up.
type EmbeddingScorer struct {
	baseURL  string
	model    string
	client   *http.Client
	fallback LexicalScorer
}

// NewEmbeddingScorer creates an EmbeddingScorer against the given
// Ollama-compatible base URL.
func NewEmbeddingScorer(baseURL, embedModel string) *EmbeddingScorer {
	if embedModel == "" {
		embedModel = "all-minilm:l6-v2"
	}
	return &EmbeddingScorer{
		baseURL: baseURL,
		model:   embedModel,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Score implements Scorer, falling back to lexical overlap on any
// embedding failure.
func (s *EmbeddingScorer) Score(ctx context.Context, needContext string, ref model.Reference) (float64, error) {
	ctxVec, err := s.embed(ctx, needContext)
	if err != nil {
		return s.fallbackScore(ctx, needContext, ref, err)
	}
	refVec, err := s.embed(ctx, ref.Title+" "+ref.Abstract)
	if err != nil {
		return s.fallbackScore(ctx, needContext, ref, err)
	}

	sim := cosine(ctxVec, refVec)
	// Cosine lands in [-1,1]; shift into the scorer's [0,1] contract.
	return (sim + 1) / 2, nil
}

func (s *EmbeddingScorer) fallbackScore(ctx context.Context, needContext string, ref model.Reference, cause error) (float64, error) {
	zap.L().Debug("extract: embedding unavailable, using lexical scorer", zap.Error(cause))
	return s.fallback.Score(ctx, needContext, ref)
}

func (s *EmbeddingScorer) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "extract: build embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "extract: embed request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("extract: embedding endpoint returned %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "extract: decode embed response")
	}
	if len(out.Embedding) == 0 {
		return nil, eris.New("extract: empty embedding")
	}
	return out.Embedding, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
