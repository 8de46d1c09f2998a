package catalog

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/segmenta-io/segmenta/internal/config"
	segerr "github.com/segmenta-io/segmenta/internal/errors"
)

// Required catalog columns. Any source missing these fails the load.
var requiredColumns = []string{"code", "description"}

// Loader reads variable records from the configured catalog source and
// builds snapshots. The SQLite binary source is preferred; delimited text
// is the fallback. Schema mapping is fixed and unknown columns are ignored.
type Loader struct {
	cfg    config.CatalogConfig
	dims   int
	logger *slog.Logger
}

// NewLoader creates a catalog loader. dims is the declared embedding
// dimension used to validate the embeddings container.
func NewLoader(cfg config.CatalogConfig, dims int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cfg: cfg, dims: dims, logger: logger}
}

// Load reads the catalog and embeddings and builds an immutable snapshot.
// The returned error is a CatalogLoadError-kind SegError on schema or
// source problems; at startup callers abort with exit code 1.
func (l *Loader) Load(ctx context.Context) (*Snapshot, *LoadStats, error) {
	start := time.Now()

	if l.cfg.Path == "" {
		return nil, nil, segerr.New(segerr.ErrCodeCatalogNotFound, "catalog path not configured", nil)
	}
	if _, err := os.Stat(l.cfg.Path); err != nil {
		return nil, nil, segerr.New(segerr.ErrCodeCatalogNotFound, "catalog file not readable: "+l.cfg.Path, err)
	}

	readCtx := ctx
	if l.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, l.cfg.ReadTimeout)
		defer cancel()
	}

	var (
		rows   []*rawRow
		source string
		err    error
	)
	if isSQLite(l.cfg.Path) {
		source = "sqlite"
		rows, err = loadSQLite(readCtx, l.cfg.Path)
	} else {
		source = "csv"
		rows, err = loadCSV(readCtx, l.cfg.Path)
	}
	if err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{Source: source}

	var embeddings map[string][]float32
	model := ""
	if l.cfg.EmbeddingsPath != "" {
		var skipped int
		embeddings, model, skipped, err = LoadEmbeddings(readCtx, l.cfg.EmbeddingsPath, l.dims)
		if err != nil {
			// Missing or corrupt embeddings degrade the semantic path
			// instead of failing the load.
			l.logger.Warn("embeddings unavailable, semantic path degraded",
				"path", l.cfg.EmbeddingsPath, "error", err)
			embeddings = nil
		} else if skipped > 0 {
			l.logger.Warn("skipped embeddings with mismatched dimension",
				"skipped", skipped, "want_dims", l.dims)
		}
	}

	vars := make([]*Variable, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		code := strings.TrimSpace(r.code)
		desc := strings.TrimSpace(r.description)
		if code == "" || desc == "" {
			stats.SkippedRows++
			continue
		}
		if _, dup := seen[code]; dup {
			stats.SkippedRows++
			l.logger.Warn("duplicate variable code skipped", "code", code)
			continue
		}
		seen[code] = struct{}{}

		v := &Variable{
			Code:        code,
			Name:        firstNonEmpty(strings.TrimSpace(r.name), code),
			Description: desc,
			Category:    strings.TrimSpace(r.category),
			Theme:       strings.TrimSpace(r.theme),
			Product:     strings.TrimSpace(r.product),
			Domain:      strings.TrimSpace(r.domain),
			DataType:    ParseDataType(strings.TrimSpace(r.dataType)),
			Operators:   splitOperators(r.operators),
		}
		v.Keywords = DeriveKeywords(v.Name, v.Description, v.Category)
		if emb, ok := embeddings[code]; ok {
			v.Embedding = emb
			stats.WithEmbedding++
		}
		vars = append(vars, v)
	}

	if len(vars) == 0 {
		return nil, nil, segerr.New(segerr.ErrCodeCatalogEmpty, "catalog contains no usable variables", nil)
	}

	snap := NewSnapshot(vars, l.dims, model)
	stats.Variables = snap.Len()
	stats.Elapsed = time.Since(start)

	l.logger.Info("catalog loaded",
		"source", source,
		"variables", stats.Variables,
		"with_embedding", stats.WithEmbedding,
		"skipped_rows", stats.SkippedRows,
		"elapsed", stats.Elapsed)

	return snap, stats, nil
}

// rawRow is the schema-mapped row before normalization.
type rawRow struct {
	code        string
	name        string
	description string
	category    string
	theme       string
	product     string
	domain      string
	dataType    string
	operators   string
}

// isSQLite sniffs the 16-byte SQLite header so the loader does not depend
// on file extensions.
func isSQLite(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := f.Read(header)
	if err != nil || n < 16 {
		return false
	}
	return string(header[:15]) == "SQLite format 3"
}

func splitOperators(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
