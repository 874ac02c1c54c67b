package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.BatchSize = 2
	cfg.MaxInFlight = 2
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestEmbed_HappyPath_PreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]embedDatum, len(req.Input))
		for i, text := range req.Input {
			data[i] = embedDatum{Index: i, Embedding: Vector{float32(len(text)), 0.5}}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Data: data})
	}))
	defer srv.Close()

	c := NewHTTPClient(testConfig(srv.URL), nil)
	vecs, err := c.Embed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, text := range []string{"a", "bb", "ccc", "dddd", "eeeee"} {
		assert.Equal(t, float32(len(text)), vecs[i][0])
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	c := NewHTTPClient(testConfig("http://unused"), nil)
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbed_PermanentOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	c := NewHTTPClient(cfg, nil)
	_, err := c.Embed(context.Background(), []string{"x"})
	require.Error(t, err)

	var embErr *Error
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, KindPermanent, embErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, embErr.Status)
}

func TestEmbed_TransientOn429WhenDeadlineCutsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	c := NewHTTPClient(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.Embed(ctx, []string{"x"})
	require.Error(t, err)

	var embErr *Error
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, KindTransient, embErr.Kind)
	assert.GreaterOrEqual(t, calls, 1)
}

// fakeClient is a minimal Client stub used to exercise ResilientClient's
// caching and circuit-breaking behavior without a real HTTP call.
type fakeClient struct {
	dim      int
	model    string
	embedFn  func(ctx context.Context, texts []string) ([]Vector, error)
	callsLen []int
}

func (f *fakeClient) Dimension() int { return f.dim }
func (f *fakeClient) Model() string  { return f.model }
func (f *fakeClient) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	f.callsLen = append(f.callsLen, len(texts))
	return f.embedFn(ctx, texts)
}
func (f *fakeClient) HealthCheck(ctx context.Context) error { return nil }

func TestResilientClient_CachesRepeatedText(t *testing.T) {
	inner := &fakeClient{model: "m", embedFn: func(ctx context.Context, texts []string) ([]Vector, error) {
		out := make([]Vector, len(texts))
		for i := range texts {
			out[i] = Vector{1, 2, 3}
		}
		return out, nil
	}}
	cfg := DefaultConfig()
	rc := NewResilientClient(inner, cfg, nil)

	_, err := rc.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	_, err = rc.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, inner.callsLen) // second call served entirely from cache
}

func TestResilientClient_OnlyFetchesMisses(t *testing.T) {
	inner := &fakeClient{model: "m", embedFn: func(ctx context.Context, texts []string) ([]Vector, error) {
		out := make([]Vector, len(texts))
		for i := range texts {
			out[i] = Vector{9}
		}
		return out, nil
	}}
	cfg := DefaultConfig()
	rc := NewResilientClient(inner, cfg, nil)

	_, err := rc.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	vecs, err := rc.Embed(context.Background(), []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	require.Len(t, inner.callsLen, 2)
	assert.Equal(t, 1, inner.callsLen[1]) // only "c" was a miss the second time
}
