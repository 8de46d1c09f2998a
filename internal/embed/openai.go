package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
)

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	client  *http.Client
	cfg     config.EmbeddingsConfig
	limiter *rate.Limiter
	breaker *segerrors.CircuitBreaker
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Provider = (*OpenAIProvider)(nil)

type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIProvider builds the provider client. The breaker is shared with
// the rest of the degradation machinery; pass nil to run unguarded (tests).
func NewOpenAIProvider(cfg config.EmbeddingsConfig, breaker *segerrors.CircuitBreaker, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, segerrors.New(segerrors.ErrCodeConfigInvalid, "embedding provider API key is not set", nil)
	}
	if cfg.Endpoint == "" {
		return nil, segerrors.New(segerrors.ErrCodeConfigInvalid, "embedding endpoint is not set", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = DefaultMaxDelay
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	// No Client.Timeout: the per-attempt context carries the deadline so
	// retries each get the full budget.
	transport := &http.Transport{
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
	}

	return &OpenAIProvider{
		client:  &http.Client{Transport: transport},
		cfg:     cfg,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}, nil
}

// Embed returns the embedding for one text. Empty text maps to the zero
// vector without a provider call.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, p.cfg.Dimensions), nil
	}
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, segerrors.New(segerrors.ErrCodeEmbeddingFailed, "provider returned no embedding", nil)
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized batches. Order is preserved.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, segerrors.New(segerrors.ErrCodeInternal, "embedding provider is closed", nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	if p.breaker != nil && !p.breaker.Allow() {
		return nil, segerrors.New(segerrors.ErrCodeUpstreamUnavailable, "embedding provider circuit is open", nil)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			if p.breaker != nil {
				p.breaker.RecordFailure()
			}
			return nil, err
		}
		out = append(out, vecs...)
	}
	if p.breaker != nil {
		p.breaker.RecordSuccess()
	}
	return out, nil
}

// embedWithRetry runs one batch with exponential backoff. The attempt
// count is 1 + MaxRetries; each attempt gets the full per-call timeout.
func (p *OpenAIProvider) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.cfg.RetryBaseDelay << (attempt - 1)
			if delay > p.cfg.RetryMaxDelay {
				delay = p.cfg.RetryMaxDelay
			}
			select {
			case <-ctx.Done():
				return nil, segerrors.Wrap(segerrors.ErrCodeUpstreamTimeout, ctx.Err())
			case <-time.After(delay):
			}
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, segerrors.Wrap(segerrors.ErrCodeUpstreamTimeout, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		vecs, retryable, err := p.doEmbed(attemptCtx, texts)
		cancel()
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		p.logger.Debug("embedding attempt failed",
			"attempt", attempt+1, "retryable", retryable, "error", err)
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, segerrors.New(segerrors.ErrCodeEmbeddingFailed,
		fmt.Sprintf("embedding failed after %d attempts: %v", p.cfg.MaxRetries+1, lastErr), lastErr)
}

// doEmbed performs a single HTTP call. The second return reports whether
// the failure is worth retrying.
func (p *OpenAIProvider) doEmbed(ctx context.Context, texts []string) ([][]float32, bool, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(embedRequest{Model: p.cfg.Model, Input: input})
	if err != nil {
		return nil, false, segerrors.Wrap(segerrors.ErrCodeInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, segerrors.Wrap(segerrors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, true, segerrors.New(segerrors.ErrCodeUpstreamTimeout,
				fmt.Sprintf("embedding call exceeded %s", p.cfg.Timeout), err)
		}
		return nil, true, segerrors.Wrap(segerrors.ErrCodeUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var pe providerError
		if json.Unmarshal(raw, &pe) == nil && pe.Error.Message != "" {
			msg = pe.Error.Message
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, false, segerrors.New(segerrors.ErrCodeEmbeddingFailed, msg, nil).WithDetail("status", fmt.Sprint(resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, true, segerrors.New(segerrors.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("provider status %d: %s", resp.StatusCode, msg), nil)
		default:
			return nil, false, segerrors.New(segerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("provider status %d: %s", resp.StatusCode, msg), nil)
		}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, true, segerrors.Wrap(segerrors.ErrCodeEmbeddingFailed, err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, false, segerrors.New(segerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("provider returned %d embeddings for %d inputs", len(parsed.Data), len(texts)), nil)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, false, segerrors.New(segerrors.ErrCodeEmbeddingFailed, "embedding index out of range", nil)
		}
		if len(d.Embedding) != p.cfg.Dimensions {
			return nil, false, segerrors.New(segerrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedding has %d dimensions, expected %d", len(d.Embedding), p.cfg.Dimensions), nil)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, true, nil
}

// Dimensions returns the configured vector dimension.
func (p *OpenAIProvider) Dimensions() int { return p.cfg.Dimensions }

// ModelName returns the configured model.
func (p *OpenAIProvider) ModelName() string { return p.cfg.Model }

// Close releases idle connections.
func (p *OpenAIProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if t, ok := p.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
