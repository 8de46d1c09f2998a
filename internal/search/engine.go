package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/config"
	"github.com/segmenta-io/segmenta/internal/embed"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/store"
)

// Engine executes hybrid retrieval against the current index set. The
// set is swapped wholesale on catalog reload; requests pin the set they
// started with.
type Engine struct {
	cfg      config.SearchConfig
	sim      config.SimilarityConfig
	provider embed.Provider // nil disables the semantic path
	logger   *slog.Logger

	indexes atomic.Pointer[IndexSet]
}

// NewEngine builds an engine. Indexes are attached later via Swap, once
// the first catalog load finishes.
func NewEngine(cfg config.SearchConfig, sim config.SimilarityConfig, provider embed.Provider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SemanticCandidates <= 0 {
		cfg.SemanticCandidates = 200
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 50
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 200
	}
	return &Engine{cfg: cfg, sim: sim, provider: provider, logger: logger}
}

// Swap installs a new index set and returns the previous one. The caller
// is responsible for closing the returned set once in-flight requests
// have drained.
func (e *Engine) Swap(set *IndexSet) *IndexSet {
	return e.indexes.Swap(set)
}

// Current returns the installed index set, or nil before the first load.
func (e *Engine) Current() *IndexSet {
	return e.indexes.Load()
}

// SemanticAvailable reports whether the semantic path can run at all.
func (e *Engine) SemanticAvailable() bool {
	set := e.indexes.Load()
	return e.provider != nil && set != nil && set.Vector != nil
}

// Search runs the hybrid pipeline for a processed query against the
// currently installed index set. Semantic failures degrade the result
// instead of failing the request; the request fails only when no index
// produced an answer.
func (e *Engine) Search(ctx context.Context, q *query.Query, opts Options) (*Result, error) {
	return e.SearchIndex(ctx, e.indexes.Load(), q, opts)
}

// SearchIndex runs the pipeline against a pinned index set. Callers that
// derive anything else from the set, such as cache keys or the spell
// lexicon, pass the same set here so a reload landing mid-request cannot
// split the two.
func (e *Engine) SearchIndex(ctx context.Context, set *IndexSet, q *query.Query, opts Options) (*Result, error) {
	if set == nil {
		return nil, segerrors.ServiceUnavailable("catalog is not loaded")
	}

	res := &Result{SnapshotVersion: set.Snapshot.Version()}
	opts, clamped := e.applyDefaults(opts)
	if clamped {
		res.Warnings = append(res.Warnings, fmt.Sprintf("top_k clamped to [1,%d]", e.cfg.MaxTopK))
	}

	start := time.Now()
	kwHits, vecHits, warnings, err := e.gather(ctx, set, q, opts)
	res.Warnings = append(res.Warnings, warnings...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, segerrors.Timeout("search canceled: " + ctxErr.Error())
	}
	if err != nil {
		return nil, err
	}

	if len(kwHits) > 0 {
		res.MethodsUsed = append(res.MethodsUsed, MethodKeyword)
	}
	if len(vecHits) > 0 {
		res.MethodsUsed = append(res.MethodsUsed, MethodSemantic)
	}

	weights := Weights{Semantic: e.cfg.SemanticWeight, Keyword: e.cfg.KeywordWeight}
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	cands := Fuse(kwHits, vecHits, weights)
	e.fillNames(cands, set.Snapshot)
	cands = e.applyFacetFilters(cands, set.Snapshot, opts)
	ApplyBoosts(cands, q, set.Snapshot)

	cands = FilterSimilar(cands, e.similarityOptions(opts))

	res.TotalFound = len(cands)
	if len(cands) > opts.TopK {
		cands = cands[:opts.TopK]
	}
	e.fillMatches(cands, q, set.Snapshot)
	res.Candidates = cands

	e.logger.Debug("search complete",
		"terms", len(q.Tokens),
		"methods", res.MethodsUsed,
		"total_found", res.TotalFound,
		"returned", len(res.Candidates),
		"snapshot", res.SnapshotVersion,
		"elapsed", time.Since(start))
	return res, nil
}

// gather runs the keyword and semantic lookups fork-join. A single side
// failing logs and degrades; the returned error is non-nil only when every
// requested method failed.
func (e *Engine) gather(ctx context.Context, set *IndexSet, q *query.Query, opts Options) ([]store.KeywordHit, []store.VectorHit, []string, error) {
	var (
		kwHits  []store.KeywordHit
		vecHits []store.VectorHit
		kwErr   error
		semErr  error

		warnings  []string
		ranKW     bool
		ranSem    bool
		semUnable bool
	)

	g, gctx := errgroup.WithContext(ctx)

	if opts.UseKeyword {
		ranKW = true
		g.Go(func() error {
			hits, err := set.Keyword.Search(gctx, q.SearchTerms(), e.cfg.SemanticCandidates)
			if err != nil {
				kwErr = err
				return nil
			}
			kwHits = hits
			return nil
		})
	}

	if opts.UseSemantic {
		if e.provider == nil || set.Vector == nil {
			semUnable = true
		} else {
			ranSem = true
			g.Go(func() error {
				vec, err := e.provider.Embed(gctx, q.Normalized)
				if err != nil {
					semErr = err
					return nil
				}
				hits, err := set.Vector.Search(gctx, vec, e.cfg.SemanticCandidates)
				if err != nil {
					semErr = err
					return nil
				}
				vecHits = hits
				return nil
			})
		}
	}
	_ = g.Wait()

	if semUnable || semErr != nil {
		warnings = append(warnings, WarningSemanticUnavailable)
	}
	if semErr != nil {
		e.logger.Warn("semantic retrieval degraded", "error", semErr)
	}
	if kwErr != nil {
		e.logger.Error("keyword retrieval failed", "error", kwErr)
		warnings = append(warnings, "keyword_unavailable")
	}

	kwFailed := ranKW && kwErr != nil
	semFailed := ranSem && semErr != nil
	kwOK := ranKW && kwErr == nil
	semOK := ranSem && semErr == nil
	if (kwFailed || semFailed) && !kwOK && !semOK {
		return nil, nil, warnings, segerrors.New(segerrors.ErrCodeSearchFailed, "all retrieval methods failed", kwErr)
	}
	return kwHits, vecHits, warnings, nil
}

// applyDefaults fills zero options and clamps top_k to [1,MaxTopK].
func (e *Engine) applyDefaults(opts Options) (Options, bool) {
	clamped := false
	if opts.TopK == 0 {
		opts.TopK = e.cfg.DefaultTopK
	}
	if opts.TopK < 1 {
		opts.TopK = 1
		clamped = true
	}
	if opts.TopK > e.cfg.MaxTopK {
		opts.TopK = e.cfg.MaxTopK
		clamped = true
	}
	return opts, clamped
}

func (e *Engine) similarityOptions(opts Options) SimilarityOptions {
	if opts.Similarity != nil {
		return *opts.Similarity
	}
	return SimilarityOptions{
		Enabled:       e.sim.Enabled,
		Threshold:     e.sim.Threshold,
		MaxPerCluster: e.sim.MaxPerCluster,
	}
}

// fillNames resolves display names for semantic-only candidates.
func (e *Engine) fillNames(cands []Candidate, snap *catalog.Snapshot) {
	for i := range cands {
		if cands[i].Name != "" {
			continue
		}
		if v := snap.Get(cands[i].Code); v != nil {
			cands[i].Name = v.Name
		}
	}
}

// fillMatches records which query terms each variable's keyword set
// covers. Keywords are stemmed, so terms are compared by stem and
// reported in their surface form.
func (e *Engine) fillMatches(cands []Candidate, q *query.Query, snap *catalog.Snapshot) {
	terms := q.SearchTerms()
	if len(terms) == 0 {
		return
	}
	stemOf := make(map[string]string, len(terms))
	for _, t := range terms {
		lower := strings.ToLower(t)
		for _, s := range catalog.StemTokens([]string{lower}) {
			if _, ok := stemOf[s]; !ok {
				stemOf[s] = lower
			}
		}
	}
	for i := range cands {
		v := snap.Get(cands[i].Code)
		if v == nil {
			continue
		}
		for _, kw := range v.Keywords {
			if term, ok := stemOf[kw]; ok {
				cands[i].MatchedKeywords = append(cands[i].MatchedKeywords, term)
			}
		}
	}
}

// applyFacetFilters drops candidates whose theme or category does not
// match the requested facet values (case-insensitive exact match).
func (e *Engine) applyFacetFilters(cands []Candidate, snap *catalog.Snapshot, opts Options) []Candidate {
	if opts.Theme == "" && opts.Category == "" {
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		v := snap.Get(c.Code)
		if v == nil {
			continue
		}
		if opts.Theme != "" && !strings.EqualFold(v.Theme, opts.Theme) {
			continue
		}
		if opts.Category != "" && !strings.EqualFold(v.Category, opts.Category) {
			continue
		}
		out = append(out, c)
	}
	return out
}
