package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docindex/internal/config"
	"github.com/example/docindex/internal/relstore"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()
	t.Setenv("DOCINDEX_VECTORSTORE_BACKEND", "memory")

	cfg := config.DefaultConfig()
	cfg.RelStore.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Engine.CleanupInterval = time.Hour
	cfg.Embedding.BaseURL = "http://127.0.0.1:0/unused"

	app, err := buildApplication(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.rel.Close() })

	require.NoError(t, app.coord.Start(context.Background()))
	t.Cleanup(app.coord.Stop)
	return app
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	app := newTestApplication(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readiness")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_CreateAndListCollections(t *testing.T) {
	app := newTestApplication(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	body, _ := json.Marshal(createCollectionRequest{Name: "docs", Description: "test collection"})
	resp, err := http.Post(srv.URL+"/api/v1/collections/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created relstore.Collection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "docs", created.Name)

	resp, err = http.Get(srv.URL + "/api/v1/collections/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []relstore.Collection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestRouter_ImportDeleteDocument(t *testing.T) {
	app := newTestApplication(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	coll, err := app.rel.CreateCollection(context.Background(), "docs", "")
	require.NoError(t, err)

	body, _ := json.Marshal(importDocumentRequest{Key: "readme", Name: "README", Mime: "text/plain", Content: "alpha beta gamma"})
	resp, err := http.Post(srv.URL+"/api/v1/collections/"+coll.CollectionID+"/documents", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var imported importDocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&imported))
	require.NotNil(t, imported.Document)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/documents/"+imported.Document.DocID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRouter_ImportMissingContentIsValidationError(t *testing.T) {
	app := newTestApplication(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	coll, err := app.rel.CreateCollection(context.Background(), "docs", "")
	require.NoError(t, err)

	body, _ := json.Marshal(importDocumentRequest{Key: "readme"})
	resp, err := http.Post(srv.URL+"/api/v1/collections/"+coll.CollectionID+"/documents", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEndpointClassFor(t *testing.T) {
	assert.Equal(t, "search", endpointClassFor(http.MethodGet, "/api/v1/collections/abc/search"))
	assert.Equal(t, "upload", endpointClassFor(http.MethodPost, "/api/v1/collections/abc/documents"))
	assert.Equal(t, "default", endpointClassFor(http.MethodGet, "/api/v1/collections/"))
}
