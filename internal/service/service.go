// Package service is the retrieval façade. It ties the query processor,
// hybrid engine, result cache, rollout router, and session manager into
// the operations the HTTP layer exposes. Every operation takes a context
// and is atomic from the caller's viewpoint.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/cluster"
	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/search"
	"github.com/segmenta-io/segmenta/internal/session"
	"github.com/segmenta-io/segmenta/internal/telemetry"
)

// Processor is the query-understanding dependency of the façade.
type Processor interface {
	Process(ctx context.Context, raw string, lexicon map[string]struct{}) *query.Query
}

// Deps carries the service's collaborators, wired at boot.
type Deps struct {
	Config    *config.Config
	Processor Processor
	Engine    *search.Engine
	Cache     *search.ResultCache
	Router    *search.Router
	Sessions  *session.Manager
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// Service implements the retrieval façade operations.
type Service struct {
	cfg       *config.Config
	processor Processor
	engine    *search.Engine
	cache     *search.ResultCache
	router    *search.Router
	sessions  *session.Manager
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// New builds the façade from its dependencies.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       d.Config,
		processor: d.Processor,
		engine:    d.Engine,
		cache:     d.Cache,
		router:    d.Router,
		sessions:  d.Sessions,
		metrics:   d.Metrics,
		logger:    logger,
	}
}

// Search runs the full retrieval pipeline for one request. The router
// decides per user whether the request takes the unified hybrid path or
// the legacy keyword-only path.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	raw := strings.TrimSpace(req.Query)
	if raw == "" {
		s.metrics.ObserveSearchFailure(segerrors.ErrCodeQueryEmpty)
		return nil, segerrors.EmptyQuery()
	}

	set := s.engine.Current()
	if set == nil {
		s.metrics.ObserveSearchFailure(segerrors.ErrCodeSnapshotUnavailable)
		return nil, segerrors.ServiceUnavailable("catalog is not loaded")
	}

	q := s.processor.Process(ctx, raw, set.Snapshot.Lexicon())
	unified := s.router.Decide(req.UserID)
	opts := s.buildOptions(req, unified)

	key := search.Key(q.Normalized, opts, set.Snapshot.Version())
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.ObserveCache(true)
		resp := s.response(cached, q, unified)
		resp.Cached = true
		return resp, nil
	}
	s.metrics.ObserveCache(false)

	start := time.Now()
	res, err := s.engine.SearchIndex(ctx, set, q, opts)
	if err != nil {
		s.metrics.ObserveSearchFailure(segerrors.GetCode(err))
		return nil, err
	}
	s.metrics.ObserveSearch(methodLabel(res.MethodsUsed), time.Since(start), len(res.Candidates))

	s.cache.Add(key, res)
	return s.response(res, q, unified), nil
}

// buildOptions translates the request into engine options. A non-unified
// decision forces the legacy keyword-only path.
func (s *Service) buildOptions(req SearchRequest, unified bool) search.Options {
	useKeyword := req.UseKeyword == nil || *req.UseKeyword
	useSemantic := req.UseSemantic == nil || *req.UseSemantic
	if !useKeyword && !useSemantic {
		useKeyword, useSemantic = true, true
	}
	if !unified {
		useKeyword = true
		useSemantic = false
	}

	// Absent top_k means "use the default"; an explicit non-positive
	// value is clamped to 1 by the engine, with a warning.
	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
		if topK < 1 {
			topK = -1
		}
	}

	return search.Options{
		TopK:        topK,
		UseKeyword:  useKeyword,
		UseSemantic: useSemantic,
		Weights:     req.Weights,
		Similarity:  req.Similarity,
		Theme:       req.Theme,
		Category:    req.Category,
	}
}

func (s *Service) response(res *search.Result, q *query.Query, unified bool) *SearchResponse {
	return &SearchResponse{
		Results:      res.Candidates,
		TotalFound:   res.TotalFound,
		MethodsUsed:  res.MethodsUsed,
		Warnings:     res.Warnings,
		QueryContext: queryContext(q),
		Unified:      unified,
	}
}

// GetVariable looks up one variable by code.
func (s *Service) GetVariable(code string) (*VariableDetail, error) {
	set := s.engine.Current()
	if set == nil {
		return nil, segerrors.ServiceUnavailable("catalog is not loaded")
	}
	v := set.Snapshot.Get(code)
	if v == nil {
		return nil, segerrors.NotFound(code)
	}
	return variableDetail(v), nil
}

// ByCategory returns up to topK variables in a category, ordered by code.
func (s *Service) ByCategory(category string, topK int) ([]*VariableDetail, error) {
	if strings.TrimSpace(category) == "" {
		return nil, segerrors.InvalidQuery("category must not be empty")
	}
	set := s.engine.Current()
	if set == nil {
		return nil, segerrors.ServiceUnavailable("catalog is not loaded")
	}

	if topK <= 0 {
		topK = s.cfg.Search.DefaultTopK
	}
	if topK > s.cfg.Search.MaxTopK {
		topK = s.cfg.Search.MaxTopK
	}

	out := make([]*VariableDetail, 0, topK)
	set.Snapshot.Iterate(func(v *catalog.Variable) bool {
		if strings.EqualFold(v.Category, category) {
			out = append(out, variableDetail(v))
		}
		return len(out) < topK
	})
	return out, nil
}

// Stats summarizes the loaded catalog and effective configuration.
func (s *Service) Stats() (*StatsResponse, error) {
	set := s.engine.Current()
	if set == nil {
		return nil, segerrors.ServiceUnavailable("catalog is not loaded")
	}
	snap := set.Snapshot

	return &StatsResponse{
		TotalVariables:  snap.Len(),
		ByTheme:         snap.CountBy(catalog.FacetTheme),
		ByProduct:       snap.CountBy(catalog.FacetProduct),
		ByDomain:        snap.CountBy(catalog.FacetDomain),
		ByCategory:      snap.CountBy(catalog.FacetCategory),
		HasEmbeddings:   snap.HasEmbeddings(),
		EmbeddingModel:  snap.EmbeddingModel(),
		SnapshotVersion: snap.Version(),
		LoadedAt:        snap.LoadedAt(),
		Config: StatsConfig{
			SemanticWeight:      s.cfg.Search.SemanticWeight,
			KeywordWeight:       s.cfg.Search.KeywordWeight,
			DefaultTopK:         s.cfg.Search.DefaultTopK,
			MaxTopK:             s.cfg.Search.MaxTopK,
			SimilarityEnabled:   s.cfg.Similarity.Enabled,
			SimilarityThreshold: s.cfg.Similarity.Threshold,
			SemanticEnabled:     s.engine.SemanticAvailable(),
		},
	}, nil
}

// Ready reports whether the service can answer searches at all.
func (s *Service) Ready() bool {
	return s.engine.Current() != nil
}

// SemanticAvailable reports whether the semantic path can run.
func (s *Service) SemanticAvailable() bool {
	return s.engine.SemanticAvailable()
}

// RouterStatus exposes the rollout configuration for /migration/status.
func (s *Service) RouterStatus() search.RouterStatus {
	return s.router.Status()
}

// RouterTest echoes the routing decision for a user without searching.
func (s *Service) RouterTest(userID string) search.RouterDecision {
	return s.router.Test(userID)
}

// StartSession allocates a new conversational session.
func (s *Service) StartSession(userID string) (session.SessionView, error) {
	sess, err := s.sessions.Create(userID)
	if err != nil {
		return session.SessionView{}, err
	}
	s.metrics.SetLiveSessions(s.sessions.Len())
	return sess.Snapshot(), nil
}

// Session returns a point-in-time view of a session.
func (s *Service) Session(id string) (session.SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.SessionView{}, err
	}
	return sess.Snapshot(), nil
}

// SelectDataType scopes a session to a record source.
func (s *Service) SelectDataType(id, kind, subSource string) error {
	return s.sessions.SelectDataType(id, kind, subSource)
}

// SubmitSessionQuery runs retrieval inside a session.
func (s *Service) SubmitSessionQuery(ctx context.Context, id, rawQuery string) (*SearchResponse, error) {
	var lastQuery *query.Query
	res, err := s.sessions.SubmitQuery(ctx, id, rawQuery, s.sessionRetriever(&lastQuery))
	if err != nil {
		return nil, err
	}
	return s.response(res, lastQuery, true), nil
}

// Refine re-runs retrieval for a session, optionally merging the
// confirmed selection back into the returned page.
func (s *Service) Refine(ctx context.Context, id, rawQuery string, keepSelected bool) (*SearchResponse, error) {
	var lastQuery *query.Query
	res, err := s.sessions.RefineQuery(ctx, id, rawQuery, s.sessionRetriever(&lastQuery), keepSelected)
	if err != nil {
		return nil, err
	}
	return s.response(res, lastQuery, true), nil
}

// ConfirmVariables stores a session's variable selection.
func (s *Service) ConfirmVariables(id string, codes []string) error {
	return s.sessions.ConfirmVariables(id, codes)
}

// ComputeSegments runs the external clusterer for a session.
func (s *Service) ComputeSegments(ctx context.Context, id string, k int) (*cluster.Output, error) {
	return s.sessions.ComputeSegments(ctx, id, k)
}

// AcceptSegments freezes a session's segments for distribution.
func (s *Service) AcceptSegments(id string) error {
	return s.sessions.AcceptSegments(id)
}

// CancelSession terminates a session.
func (s *Service) CancelSession(id string) error {
	err := s.sessions.Cancel(id)
	s.metrics.SetLiveSessions(s.sessions.Len())
	return err
}

// sessionRetriever adapts the core search path for session use. Session
// retrieval always takes the unified path: the rollout gate applies to
// the stateless endpoints, not the conversational flow.
func (s *Service) sessionRetriever(captured **query.Query) session.Retriever {
	return session.RetrieverFunc(func(ctx context.Context, rawQuery string) (*search.Result, error) {
		raw := strings.TrimSpace(rawQuery)
		if raw == "" {
			return nil, segerrors.EmptyQuery()
		}
		set := s.engine.Current()
		if set == nil {
			return nil, segerrors.ServiceUnavailable("catalog is not loaded")
		}

		q := s.processor.Process(ctx, raw, set.Snapshot.Lexicon())
		*captured = q

		start := time.Now()
		res, err := s.engine.SearchIndex(ctx, set, q, search.Options{UseKeyword: true, UseSemantic: true})
		if err != nil {
			s.metrics.ObserveSearchFailure(segerrors.GetCode(err))
			return nil, err
		}
		s.metrics.ObserveSearch(methodLabel(res.MethodsUsed), time.Since(start), len(res.Candidates))
		return res, nil
	})
}

// methodLabel reduces the methods-used list to one metric label.
func methodLabel(methods []string) string {
	switch len(methods) {
	case 0:
		return "none"
	case 1:
		return methods[0]
	default:
		return "hybrid"
	}
}
