package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/segmenta-io/segmenta/internal/config"
)

// nlpExtractors are the compiled artifacts the NLP-backed stages need.
// They are built once, off the request path.
type nlpExtractors struct {
	patterns *numericPatterns
	concepts *conceptMatcher
}

// Processor runs the query understanding pipeline. Construction starts
// extractor compilation in the background; Process never waits longer
// than the configured init budget and degrades instead of blocking.
type Processor struct {
	cfg      config.QueryConfig
	logger   *slog.Logger
	synonyms SynonymMap
	dict     ConceptDictionary

	ready    chan struct{}
	ext      *nlpExtractors
	deadline time.Time
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithSynonyms replaces the built-in synonym table.
func WithSynonyms(m SynonymMap) ProcessorOption {
	return func(p *Processor) { p.synonyms = m }
}

// WithConceptDictionary replaces the built-in concept dictionary.
func WithConceptDictionary(d ConceptDictionary) ProcessorOption {
	return func(p *Processor) { p.dict = d }
}

// WithLogger sets the processor logger.
func WithLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor builds a Processor and kicks off extractor initialization.
func NewProcessor(cfg config.QueryConfig, opts ...ProcessorOption) *Processor {
	p := &Processor{
		cfg:      cfg,
		logger:   slog.Default(),
		synonyms: DefaultSynonymMap(),
		dict:     DefaultConceptDictionary(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	budget := cfg.NLPInitTimeout
	if budget <= 0 {
		budget = 5 * time.Second
	}
	p.deadline = time.Now().Add(budget)

	if cfg.DisableNLP {
		close(p.ready)
		return p
	}

	go func() {
		defer close(p.ready)
		start := time.Now()
		p.ext = &nlpExtractors{
			patterns: compileNumericPatterns(),
			concepts: compileConceptDictionary(p.dict),
		}
		p.logger.Debug("query extractors ready", "elapsed", time.Since(start))
	}()
	return p
}

// Ready reports whether the NLP extractors are available. False means
// queries are processed in degraded mode.
func (p *Processor) Ready() bool {
	select {
	case <-p.ready:
		return p.ext != nil
	default:
		return false
	}
}

// extractors waits for initialization up to the remaining init budget.
// After the budget lapses it returns nil immediately on every call.
func (p *Processor) extractors(ctx context.Context) *nlpExtractors {
	select {
	case <-p.ready:
		return p.ext
	default:
	}

	wait := time.Until(p.deadline)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-p.ready:
		return p.ext
	case <-timer.C:
		p.logger.Warn("query extractor init budget exhausted, degrading")
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Process turns raw text into a structured Query. The lexicon, drawn from
// the current catalog snapshot, drives spell correction; pass nil to skip
// it. Process always returns a usable Query, degraded at worst.
func (p *Processor) Process(ctx context.Context, raw string, lexicon map[string]struct{}) *Query {
	q := &Query{Raw: raw}

	q.Normalized = Normalize(raw)
	q.Tokens = strings.Fields(q.Normalized)

	if p.cfg.SpellCorrect && len(q.Tokens) > 0 {
		corrected, corrections := CorrectTokens(q.Tokens, lexicon)
		if len(corrections) > 0 {
			q.Tokens = corrected
			q.Corrections = corrections
			q.Normalized = strings.Join(corrected, " ")
		}
	}

	ext := p.extractors(ctx)
	if ext == nil {
		q.Degraded = true
	} else {
		q.NumericRanges = ext.patterns.extract(q.Normalized)
		q.Concepts = ext.concepts.match(q.Tokens)
	}

	q.Expansions = expandTokens(q.Tokens, p.synonyms, p.cfg.MaxSynonyms)
	q.IntentTags = classifyIntent(q.Concepts, q.NumericRanges)

	return q
}
