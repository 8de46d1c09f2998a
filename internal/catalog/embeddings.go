package catalog

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"os"
	"sort"
	"strconv"

	segerr "github.com/segmenta-io/segmenta/internal/errors"
)

// The embeddings container is a gob stream of embEntry records keyed by
// variable code. A sibling metadata file (<path>.meta.json) declares the
// model name, dimension D, and entry count.

// embEntry is one code→vector record in the embeddings container.
type embEntry struct {
	Code   string
	Vector []float32
}

// EmbeddingsMeta is the sibling metadata describing an embeddings container.
type EmbeddingsMeta struct {
	ModelName  string `json:"model_name"`
	Dimensions int    `json:"dimensions"`
	Count      int    `json:"count"`
}

// MetaPath returns the sibling metadata path for an embeddings container.
func MetaPath(path string) string {
	return path + ".meta.json"
}

// LoadEmbeddings reads an embeddings container. Entries whose vector length
// differs from wantDims are skipped (returned in skipped), not fatal.
// wantDims <= 0 accepts the container's declared dimension.
func LoadEmbeddings(ctx context.Context, path string, wantDims int) (map[string][]float32, string, int, error) {
	meta, err := loadEmbeddingsMeta(path)
	if err != nil {
		return nil, "", 0, err
	}
	if wantDims > 0 && meta.Dimensions != wantDims {
		return nil, "", 0, segerr.New(segerr.ErrCodeEmbeddingsCorrupt,
			"embeddings dimension mismatch with configured D", nil).
			WithDetail("declared", strconv.Itoa(meta.Dimensions)).
			WithDetail("configured", strconv.Itoa(wantDims))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", 0, segerr.Wrap(segerr.ErrCodeEmbeddingsCorrupt, err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	out := make(map[string][]float32, meta.Count)
	skipped := 0
	for i := 0; i < meta.Count; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, "", 0, segerr.Wrap(segerr.ErrCodeTimeout, err)
			}
		}

		var e embEntry
		if err := dec.Decode(&e); err != nil {
			return nil, "", 0, segerr.Wrap(segerr.ErrCodeEmbeddingsCorrupt, err)
		}
		if len(e.Vector) != meta.Dimensions {
			skipped++
			continue
		}
		out[e.Code] = e.Vector
	}

	return out, meta.ModelName, skipped, nil
}

// WriteEmbeddings writes an embeddings container plus its sibling metadata.
// Entries are written in code order for reproducible files.
func WriteEmbeddings(path, modelName string, dims int, vectors map[string][]float32) error {
	codes := make([]string, 0, len(vectors))
	for code := range vectors {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	for _, code := range codes {
		if err := enc.Encode(embEntry{Code: code, Vector: vectors[code]}); err != nil {
			return err
		}
	}

	meta := EmbeddingsMeta{ModelName: modelName, Dimensions: dims, Count: len(codes)}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(MetaPath(path), data, 0o644)
}

func loadEmbeddingsMeta(path string) (*EmbeddingsMeta, error) {
	data, err := os.ReadFile(MetaPath(path))
	if err != nil {
		return nil, segerr.Wrap(segerr.ErrCodeEmbeddingsCorrupt, err)
	}
	var meta EmbeddingsMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, segerr.Wrap(segerr.ErrCodeEmbeddingsCorrupt, err)
	}
	if meta.Dimensions < 1 {
		return nil, segerr.New(segerr.ErrCodeEmbeddingsCorrupt,
			"embeddings metadata declares non-positive dimension", nil)
	}
	return &meta, nil
}
