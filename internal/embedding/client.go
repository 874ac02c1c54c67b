package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/example/docindex/internal/logging"
	"github.com/example/docindex/internal/retry"
)

// HTTPClient implements Client over a JSON/HTTP embeddings endpoint. The
// wire shape (model + input → data[].embedding/index) follows the
// OpenAI-compatible embeddings API the donor's internal/embeddings/openai.go
// targeted; reimplemented here over net/http+encoding/json since the SDK it
// used to wrap that API is not part of this module's dependency set.
type HTTPClient struct {
	config *Config
	http   *http.Client
	logger logging.Logger
}

// NewHTTPClient builds a raw (uncached, non-circuit-broken) embeddings
// client. Use NewDefaultClient to get the fully wrapped stack.
func NewHTTPClient(cfg *Config, logger logging.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &HTTPClient{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithComponent("embedding"),
	}
}

func (c *HTTPClient) Dimension() int { return c.config.Dimension }
func (c *HTTPClient) Model() string  { return c.config.Model }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedDatum struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Data  []embedDatum `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed implements the C2 contract: embed(texts) → seq<vector<float32, D>>,
// preserving input order. Texts are split into batches of config.BatchSize
// and dispatched with at most config.MaxInFlight batches in flight at once
// (spec §5's "≤ maxInFlight concurrent HTTP calls").
func (c *HTTPClient) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := batchTexts(texts, c.config.BatchSize)
	results := make([][]Vector, len(batches))

	maxInFlight := c.config.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	sem := make(chan struct{}, maxInFlight)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, batch := range batches {
		i, batch := i, batch
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			vecs, err := c.embedBatchWithRetry(ctx, batch)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = vecs
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	out := make([]Vector, 0, len(texts))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func batchTexts(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var batches [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}

// embedBatchWithRetry retries a single batch call on transient failures,
// following spec §4.2: "On 429/5xx the client applies exponential backoff
// with jitter for up to N retries inside a single call; exhausting those
// raises EmbeddingError{transient}. A 4xx other than 429 raises
// EmbeddingError{permanent}."
func (c *HTTPClient) embedBatchWithRetry(ctx context.Context, texts []string) ([]Vector, error) {
	retryCfg := retry.NewConfigWithOptions(
		retry.WithMaxAttempts(5),
		retry.WithDelay(1*time.Second),
		retry.WithMaxDelay(60*time.Second),
		retry.WithMultiplier(2.0),
		retry.WithJitter(0.2),
		retry.WithRetryIf(isTransient),
	)
	r := retry.New(retryCfg)

	var vecs []Vector
	res := r.DoWithData(ctx, func(ctx context.Context, _ interface{}) error {
		v, err := c.embedBatch(ctx, texts)
		if err != nil {
			return err
		}
		vecs = v
		return nil
	}, nil)

	if res.Err != nil {
		c.logger.Warn("embedding batch failed", "attempts", res.Attempts, "error", res.Err.Error())
		var e *Error
		if errors.As(res.Err, &e) {
			return nil, res.Err
		}
		return nil, newTransient("embedding retries interrupted", 0, res.Err)
	}
	return vecs, nil
}

func isTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}
	return false
}

func (c *HTTPClient) embedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	body, err := json.Marshal(embedRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, newPermanent("encoding embedding request", 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, newPermanent("building embedding request", 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newPermanent("embedding request canceled", 0, ctx.Err())
		}
		return nil, newTransient("embedding request failed", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransient("reading embedding response", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, newTransient(fmt.Sprintf("embedding API returned %d", resp.StatusCode), resp.StatusCode, errors.New(string(raw)))
	}
	if resp.StatusCode >= 400 {
		return nil, newPermanent(fmt.Sprintf("embedding API returned %d", resp.StatusCode), resp.StatusCode, errors.New(string(raw)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, newPermanent("decoding embedding response", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, newPermanent("embedding API error: "+parsed.Error.Message, resp.StatusCode, nil)
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	vecs := make([]Vector, len(parsed.Data))
	for i, d := range parsed.Data {
		vecs[i] = d.Embedding
	}
	if len(vecs) != len(texts) {
		return nil, newPermanent(fmt.Sprintf("embedding API returned %d vectors for %d inputs", len(vecs), len(texts)), resp.StatusCode, nil)
	}
	return vecs, nil
}

// HealthCheck probes the embeddings endpoint with a single-token request.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	_, err := c.embedBatch(ctx, []string{"ping"})
	return err
}
