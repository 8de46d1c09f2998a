package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
)

// DefaultTimeout bounds a single clustering call.
const DefaultTimeout = 30 * time.Second

// HTTPClusterer calls a remote clustering service over JSON POST.
type HTTPClusterer struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPClusterer builds a client for the configured endpoint.
func NewHTTPClusterer(cfg config.ClustererConfig, logger *slog.Logger) (*HTTPClusterer, error) {
	if cfg.Endpoint == "" {
		return nil, segerrors.New(segerrors.ErrCodeConfigInvalid, "clusterer endpoint is not configured", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClusterer{
		endpoint: cfg.Endpoint,
		timeout:  timeout,
		client:   &http.Client{},
		logger:   logger,
	}, nil
}

// Cluster posts the input and decodes balanced segments. The call honors
// the caller's context and the configured timeout, whichever is tighter.
func (c *HTTPClusterer) Cluster(ctx context.Context, in Input) (*Output, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return nil, segerrors.Wrap(segerrors.ErrCodeClusteringFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, segerrors.Wrap(segerrors.ErrCodeClusteringFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, segerrors.New(segerrors.ErrCodeUpstreamTimeout, "clusterer call timed out", err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, segerrors.New(segerrors.ErrCodeUpstreamUnavailable, "clusterer unreachable", err)
		}
		return nil, segerrors.Wrap(segerrors.ErrCodeClusteringFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			return nil, segerrors.New(segerrors.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("clusterer returned %d: %s", resp.StatusCode, detail), nil)
		}
		return nil, segerrors.New(segerrors.ErrCodeClusteringFailed,
			fmt.Sprintf("clusterer rejected request with %d: %s", resp.StatusCode, detail), nil)
	}

	var out Output
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, segerrors.New(segerrors.ErrCodeClusteringFailed, "decode clusterer response", err)
	}
	if len(out.Segments) == 0 {
		return nil, segerrors.New(segerrors.ErrCodeClusteringFailed, "clusterer returned no segments", nil)
	}

	c.logger.Debug("clustering complete",
		"segments", len(out.Segments),
		"k", in.K,
		"variables", len(in.VariableCodes),
		"elapsed", time.Since(start))
	return &out, nil
}
