package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"adminconsole/internal/data"
	"adminconsole/internal/jsonlog"

	"github.com/stretchr/testify/require"
)

func testConfig() config {
	var cfg config
	cfg.port = 0
	cfg.env = "test"
	cfg.storage.backend = "memory"
	cfg.storage.timeout = time.Second
	cfg.breaker.recovery = 30 * time.Second
	cfg.limiter.enabled = false
	cfg.limiter.rps = 10
	cfg.limiter.burst = 20
	cfg.shutdown.timeout = 2 * time.Second
	return cfg
}

func newTestApplication(t *testing.T) *application {
	t.Helper()
	return newTestApplicationWith(t, testConfig(), data.NewMemoryRepository())
}

func newTestApplicationWith(t *testing.T, cfg config, repo data.Repository) *application {
	t.Helper()

	logger := jsonlog.New(io.Discard, jsonlog.LevelError, "test")
	app, err := newApplication(context.Background(), cfg, logger, repo)
	require.NoError(t, err)

	t.Cleanup(func() {
		app.rateLimiter.shutdown()
		app.rateLimiter.waitForShutdown()
	})
	return app
}

type testResponse struct {
	status int
	header http.Header
	body   map[string]any
	raw    string
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) testResponse {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	resp := testResponse{status: rr.Code, header: rr.Header(), raw: rr.Body.String()}
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp.body), "body: %s", resp.raw)
	}
	return resp
}

// dataObject returns the "data" member of a response as an object.
func (r testResponse) dataObject(t *testing.T) map[string]any {
	t.Helper()
	obj, ok := r.body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %s", r.raw)
	return obj
}

// createSet posts a valid set and returns its id.
func createSet(t *testing.T, handler http.Handler, name string, unique int) string {
	t.Helper()
	body := `{"name":"` + name + `","mandatoryNumber":1,"uniqueNumber":` + strconv.Itoa(unique) + `}`
	resp := doRequest(t, handler, http.MethodPost, "/v1/sets", body)
	require.Equal(t, http.StatusCreated, resp.status, resp.raw)
	id, _ := resp.dataObject(t)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

var errStoreDown = errors.New("store down")

// unhealthyRepository fails its health probe but serves everything else.
type unhealthyRepository struct {
	data.Repository
}

func (unhealthyRepository) Health(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"error": errStoreDown.Error()}, errStoreDown
}

// brokenRepository fails every list call with err.
type brokenRepository struct {
	data.Repository
	err error
}

func (b brokenRepository) List(context.Context, string) ([]*data.Document, error) {
	return nil, b.err
}
