// Package cluster defines the contract with the external segment
// clusterer. The clustering algorithm itself runs elsewhere; this package
// ships the interface, an HTTP client for the remote service, and an
// in-process fake for tests and local development.
package cluster

import (
	"context"

	segerrors "github.com/segmenta-io/segmenta/internal/errors"
)

// Input describes one clustering request. Variables are referenced by
// code only; the clusterer resolves them against its own record store.
type Input struct {
	// VariableCodes are the confirmed variables the segments are built on.
	VariableCodes []string `json:"variable_codes"`
	// RecordSource names the consumer record set to segment.
	RecordSource string `json:"record_source"`
	// K is the requested segment count.
	K int `json:"k"`
	// BalanceTolerance is the permitted relative deviation in segment
	// sizes, e.g. 0.1 for +-10%.
	BalanceTolerance float64 `json:"balance_tolerance"`
}

// Segment is one balanced audience segment.
type Segment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
	// CentroidHints are the dominant variable values of the segment
	// centroid, keyed by variable code.
	CentroidHints map[string]float64 `json:"centroid_hints,omitempty"`
}

// Output is the clusterer's response.
type Output struct {
	Segments []Segment `json:"segments"`
}

// Clusterer computes balanced segments over consumer records.
type Clusterer interface {
	Cluster(ctx context.Context, in Input) (*Output, error)
}

func validateInput(in Input) error {
	if len(in.VariableCodes) == 0 {
		return segerrors.New(segerrors.ErrCodeClusteringFailed, "no variables to cluster on", nil)
	}
	if in.K < 2 {
		return segerrors.New(segerrors.ErrCodeClusteringFailed, "segment count must be at least 2", nil)
	}
	return nil
}
