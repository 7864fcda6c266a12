// Package doi validates DOI identifiers and enriches references with
// registry metadata.
package doi

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/cache"
	"github.com/sells-group/biblio-cli/internal/gateway"
	"github.com/sells-group/biblio-cli/internal/model"
	"github.com/sells-group/biblio-cli/pkg/crossref"
	"github.com/sells-group/biblio-cli/pkg/openalex"
)

// cacheNamespace holds validation results keyed by cleaned DOI.
const cacheNamespace = "validation"

// ValidationResult is the outcome of validating one DOI.
type ValidationResult struct {
	DOI         string         `json:"doi"`
	ValidFormat bool           `json:"valid_format"`
	Resolved    bool           `json:"resolved"`
	Error       string         `json:"error,omitempty"`
	Work        *crossref.Work `json:"work,omitempty"`
}

// Validator format-checks DOIs and resolves them through the registry,
// caching results so repeat validations issue no network calls.
type Validator struct {
	registry crossref.Client
	graph    openalex.Client // optional citation-count source
	store    cache.Store
	ttl      time.Duration
	flights  *gateway.Batcher[string, *ValidationResult]
}

// NewValidator creates a Validator. graph may be nil.
func NewValidator(registry crossref.Client, graph openalex.Client, store cache.Store, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Validator{
		registry: registry,
		graph:    graph,
		store:    store,
		ttl:      ttl,
		flights:  gateway.NewBatcher[string, *ValidationResult](crossref.MaxBatchSize, 0, nil),
	}
}

// Clean strips known URL/scheme prefixes; idempotent.
func Clean(doi string) string {
	return model.CleanDOI(doi)
}

// IsValidFormat reports whether the cleaned DOI matches the registry
// format. Pure function of its input; performs no I/O.
func IsValidFormat(doi string) bool {
	return model.IsValidDOI(doi)
}

// Validate checks one DOI: format first (local), then the cache, then a
// registry fetch when fetchMetadata is set. A cache hit short-circuits
// all network I/O.
func (v *Validator) Validate(ctx context.Context, doi string, fetchMetadata bool) (*ValidationResult, error) {
	cleaned := Clean(doi)
	if !IsValidFormat(cleaned) {
		return &ValidationResult{DOI: cleaned, ValidFormat: false, Error: "malformed DOI"}, nil
	}

	if cached := v.fromCache(ctx, cleaned); cached != nil {
		return cached, nil
	}

	if !fetchMetadata {
		return &ValidationResult{DOI: cleaned, ValidFormat: true}, nil
	}

	// Concurrent validations of the same DOI share one registry fetch.
	return v.flights.LookupOnce(ctx, cleaned, func(ctx context.Context) (*ValidationResult, error) {
		result := &ValidationResult{DOI: cleaned, ValidFormat: true}
		work, err := v.registry.GetWork(ctx, cleaned)
		if err != nil {
			// Unresolvable DOIs are per-item failures, not pipeline failures.
			result.Error = err.Error()
			return result, nil
		}
		result.Resolved = true
		result.Work = work

		v.toCache(ctx, cleaned, result)
		return result, nil
	})
}

// ValidateBatch resolves many DOIs, grouping uncached ones into registry
// calls of at most crossref.MaxBatchSize. A failed outbound batch
// synthesizes a per-DOI error instead of aborting the whole set.
func (v *Validator) ValidateBatch(ctx context.Context, dois []string) (map[string]*ValidationResult, error) {
	results := make(map[string]*ValidationResult, len(dois))

	var toFetch []string
	seen := make(map[string]bool, len(dois))
	for _, raw := range dois {
		cleaned := Clean(raw)
		if seen[cleaned] {
			continue
		}
		seen[cleaned] = true

		if !IsValidFormat(cleaned) {
			results[cleaned] = &ValidationResult{DOI: cleaned, ValidFormat: false, Error: "malformed DOI"}
			continue
		}
		if cached := v.fromCache(ctx, cleaned); cached != nil {
			results[cleaned] = cached
			continue
		}
		toFetch = append(toFetch, cleaned)
	}

	for start := 0; start < len(toFetch); start += crossref.MaxBatchSize {
		end := min(start+crossref.MaxBatchSize, len(toFetch))
		chunk := toFetch[start:end]

		works, err := v.registry.ListWorks(ctx, chunk)
		if err != nil {
			zap.L().Warn("doi: batch resolution failed",
				zap.Int("size", len(chunk)),
				zap.Error(err),
			)
			for _, d := range chunk {
				results[d] = &ValidationResult{DOI: d, ValidFormat: true, Error: "batch resolution failed: " + err.Error()}
			}
			continue
		}

		fresh := make(map[string][]byte, len(chunk))
		for _, d := range chunk {
			result := &ValidationResult{DOI: d, ValidFormat: true}
			if work, ok := works[strings.ToLower(d)]; ok {
				result.Resolved = true
				result.Work = work
			} else {
				result.Error = "not found in registry"
			}
			results[d] = result

			if result.Resolved {
				if data, err := json.Marshal(result); err == nil {
					fresh[d] = data
				}
			}
		}
		if len(fresh) > 0 && v.store != nil {
			if err := v.store.SetMany(ctx, cacheNamespace, fresh, v.ttl); err != nil {
				zap.L().Warn("doi: cache write failed", zap.Error(err))
			}
		}
	}

	return results, nil
}

func (v *Validator) fromCache(ctx context.Context, doi string) *ValidationResult {
	if v.store == nil {
		return nil
	}
	data, err := v.store.Get(ctx, cacheNamespace, doi)
	if err != nil {
		if !eris.Is(err, cache.ErrNotFound) {
			zap.L().Warn("doi: cache read failed", zap.String("doi", doi), zap.Error(err))
		}
		return nil
	}
	var result ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return &result
}

func (v *Validator) toCache(ctx context.Context, doi string, result *ValidationResult) {
	if v.store == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := v.store.Set(ctx, cacheNamespace, doi, data, v.ttl); err != nil {
		zap.L().Warn("doi: cache write failed", zap.String("doi", doi), zap.Error(err))
	}
}
