package service

import (
	"time"

	"github.com/segmenta-io/segmenta/internal/catalog"
	"github.com/segmenta-io/segmenta/internal/query"
	"github.com/segmenta-io/segmenta/internal/search"
)

// SearchRequest is the façade-level search input. Zero-value method flags
// mean "both": a request that disables everything would be unservable.
type SearchRequest struct {
	Query       string                    `json:"query"`
	TopK        *int                      `json:"top_k,omitempty"`
	UseSemantic *bool                     `json:"use_semantic,omitempty"`
	UseKeyword  *bool                     `json:"use_keyword,omitempty"`
	Theme       string                    `json:"theme,omitempty"`
	Category    string                    `json:"category,omitempty"`
	UserID      string                    `json:"user_id,omitempty"`
	Weights     *search.Weights           `json:"weights,omitempty"`
	Similarity  *search.SimilarityOptions `json:"similarity,omitempty"`
}

// QueryContext surfaces what the processor understood, for transparency
// in the UI and for debugging relevance.
type QueryContext struct {
	Normalized    string               `json:"normalized"`
	Concepts      []query.Concept      `json:"concepts,omitempty"`
	NumericRanges []query.NumericRange `json:"numeric_ranges,omitempty"`
	Expansions    []string             `json:"expansions,omitempty"`
	IntentTags    []string             `json:"intent_tags,omitempty"`
	Corrections   map[string]string    `json:"corrections,omitempty"`
	Degraded      bool                 `json:"degraded,omitempty"`
}

// SearchResponse is the façade-level search output.
type SearchResponse struct {
	Results      []search.Candidate `json:"results"`
	TotalFound   int                `json:"total_found"`
	MethodsUsed  []string           `json:"methods_used"`
	Warnings     []string           `json:"warnings,omitempty"`
	QueryContext QueryContext       `json:"query_context"`
	Unified      bool               `json:"unified"`
	Cached       bool               `json:"cached,omitempty"`
}

// VariableDetail is the single-variable lookup response.
type VariableDetail struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category,omitempty"`
	Theme        string   `json:"theme,omitempty"`
	Product      string   `json:"product,omitempty"`
	Domain       string   `json:"domain,omitempty"`
	DataType     string   `json:"data_type,omitempty"`
	Operators    []string `json:"operators,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	HasEmbedding bool     `json:"has_embedding"`
}

// StatsResponse summarizes the loaded catalog and the effective search
// configuration.
type StatsResponse struct {
	TotalVariables  int            `json:"total_variables"`
	ByTheme         map[string]int `json:"by_theme"`
	ByProduct       map[string]int `json:"by_product"`
	ByDomain        map[string]int `json:"by_domain"`
	ByCategory      map[string]int `json:"by_category"`
	HasEmbeddings   bool           `json:"has_embeddings"`
	EmbeddingModel  string         `json:"embedding_model,omitempty"`
	SnapshotVersion uint64         `json:"snapshot_version"`
	LoadedAt        time.Time      `json:"loaded_at"`
	Config          StatsConfig    `json:"config"`
}

// StatsConfig echoes the retrieval knobs in effect.
type StatsConfig struct {
	SemanticWeight      float64 `json:"semantic_weight"`
	KeywordWeight       float64 `json:"keyword_weight"`
	DefaultTopK         int     `json:"default_top_k"`
	MaxTopK             int     `json:"max_top_k"`
	SimilarityEnabled   bool    `json:"similarity_enabled"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	SemanticEnabled     bool    `json:"semantic_enabled"`
}

func variableDetail(v *catalog.Variable) *VariableDetail {
	return &VariableDetail{
		Code:         v.Code,
		Name:         v.Name,
		Description:  v.Description,
		Category:     v.Category,
		Theme:        v.Theme,
		Product:      v.Product,
		Domain:       v.Domain,
		DataType:     string(v.DataType),
		Operators:    v.Operators,
		Keywords:     v.Keywords,
		HasEmbedding: v.HasEmbedding(),
	}
}

func queryContext(q *query.Query) QueryContext {
	return QueryContext{
		Normalized:    q.Normalized,
		Concepts:      q.Concepts,
		NumericRanges: q.NumericRanges,
		Expansions:    q.Expansions,
		IntentTags:    q.IntentTags,
		Corrections:   q.Corrections,
		Degraded:      q.Degraded,
	}
}
