package cluster

import (
	"context"
	"fmt"
	"hash/fnv"
)

// FakeClusterer produces deterministic balanced segments without calling
// any external service. It backs tests and local development when no
// clusterer endpoint is configured.
type FakeClusterer struct {
	// Population is the synthetic record count split across segments.
	Population int
	// Err, when set, is returned from every call.
	Err error
}

// Cluster splits a synthetic population into K near-equal segments. Sizes
// differ by at most one record, so any balance tolerance is satisfied.
func (f *FakeClusterer) Cluster(ctx context.Context, in Input) (*Output, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	population := f.Population
	if population <= 0 {
		population = 10_000
	}

	base := population / in.K
	remainder := population % in.K

	out := &Output{Segments: make([]Segment, 0, in.K)}
	for i := 0; i < in.K; i++ {
		size := base
		if i < remainder {
			size++
		}
		hints := make(map[string]float64, len(in.VariableCodes))
		for _, code := range in.VariableCodes {
			hints[code] = centroidHint(code, i)
		}
		out.Segments = append(out.Segments, Segment{
			ID:            fmt.Sprintf("seg-%d", i+1),
			Name:          fmt.Sprintf("Segment %d", i+1),
			Size:          size,
			CentroidHints: hints,
		})
	}
	return out, nil
}

// centroidHint derives a stable pseudo-centroid value in [0,1] from the
// variable code and segment ordinal.
func centroidHint(code string, segment int) float64 {
	h := fnv.New32a()
	h.Write([]byte(code))
	h.Write([]byte{byte(segment)})
	return float64(h.Sum32()%1000) / 1000.0
}
