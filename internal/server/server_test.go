package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapscale/internal/fixture"
	"github.com/leapstack-labs/leapscale/internal/table"
	"github.com/leapstack-labs/leapscale/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `[
	{"id": 0, "value": 1, "override": null, "lineage": []},
	{"id": 1, "value": 0.5, "override": 0.25, "lineage": [0]},
	{"id": 2, "value": 0.2, "override": null, "lineage": [0, 1]},
	{"id": 3, "value": 0.1, "override": null, "lineage": [0]},
	{"id": 4, "value": 0.1, "override": 0.18, "lineage": [0, 1, 2]},
	{"id": 5, "value": 0.05, "override": null, "lineage": [0, 1, 2, 4]},
	{"id": 6, "value": 0.01, "override": null, "lineage": [0, 1, 2, 4, 5]}
]`

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	cfg.Validate = true
	ts := httptest.NewServer(New(cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))
}

func TestPropagate(t *testing.T) {
	ts := newTestServer(t, Config{})

	for _, workers := range []string{"", "?workers=3"} {
		t.Run("workers"+workers, func(t *testing.T) {
			resp := post(t, ts, "/v1/propagate"+workers, "application/json", sampleJSON)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Run-ID"))

			body := decode[PropagateResponse](t, resp)
			assert.Equal(t, resp.Header.Get("X-Run-ID"), body.RunID)
			assert.Equal(t, 7, body.Stats.Rows)
			assert.Equal(t, 2, body.Stats.Overrides)

			want := fixture.SampleExpected()
			require.Len(t, body.Nodes, len(want))
			for i, n := range body.Nodes {
				assert.InDelta(t, want[i], n.Value, 1e-12, "node %s", n.ID)
			}
			assert.Equal(t, []string{"0", "1"}, body.Nodes[2].Lineage)
		})
	}
}

func TestPropagate_CSVBody(t *testing.T) {
	ts := newTestServer(t, Config{Table: table.Options{LineageSeparator: ">"}})

	resp := post(t, ts, "/v1/propagate", "text/csv; charset=utf-8", "id,value,override,lineage\na,2,4,\nb,3,,a\nc,5,,a>b\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[PropagateResponse](t, resp)
	require.Len(t, body.Nodes, 3)
	assert.Equal(t, 4.0, body.Nodes[0].Value)
	assert.Equal(t, 6.0, body.Nodes[1].Value)
	assert.Equal(t, 10.0, body.Nodes[2].Value)
}

func TestExplain(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp := post(t, ts, "/v1/explain", "", sampleJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[ExplainResponse](t, resp)
	require.Len(t, body.Resolutions, 7)
	assert.Equal(t, "4", body.Resolutions[6].AnchorID)
	assert.Equal(t, 2, body.Resolutions[6].Distance)
	assert.InDelta(t, 1.8, body.Resolutions[6].Ratio, 1e-12)
	assert.Empty(t, body.Resolutions[3].AnchorID)
}

func TestValidate(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp := post(t, ts, "/v1/validate", "application/json", sampleJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ValidateResponse{Valid: true, Rows: 7, Overrides: 2}, decode[ValidateResponse](t, resp))
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t, Config{MaxBodyBytes: 512})

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		status      int
		code        string
		message     string
	}{
		{
			name:    "malformed json",
			path:    "/v1/propagate",
			body:    `[{"id": 1,`,
			status:  http.StatusBadRequest,
			code:    "bad_request",
			message: "failed to decode JSON table",
		},
		{
			name:    "missing column",
			path:    "/v1/propagate",
			body:    `[{"id": "a", "value": 1, "override": null}]`,
			status:  http.StatusUnprocessableEntity,
			code:    "missing_column",
			message: `row 0: missing column "lineage"`,
		},
		{
			name:    "dangling reference",
			path:    "/v1/validate",
			body:    `[{"id": "a", "value": 1, "override": null, "lineage": ["ghost"]}]`,
			status:  http.StatusUnprocessableEntity,
			code:    "invalid_graph",
			message: "ghost",
		},
		{
			name:    "cycle",
			path:    "/v1/explain",
			body:    `[{"id": "a", "value": 1, "override": null, "lineage": ["b"]}, {"id": "b", "value": 1, "override": null, "lineage": ["a"]}]`,
			status:  http.StatusUnprocessableEntity,
			code:    "invalid_graph",
			message: "cycle",
		},
		{
			name:    "bad workers",
			path:    "/v1/propagate?workers=zero",
			body:    `[]`,
			status:  http.StatusBadRequest,
			code:    "bad_request",
			message: "invalid workers",
		},
		{
			name:        "unsupported media type",
			path:        "/v1/propagate",
			contentType: "application/xml",
			body:        `<nodes/>`,
			status:      http.StatusUnsupportedMediaType,
			code:        "unsupported_media_type",
			message:     "application/xml",
		},
		{
			name:    "body too large",
			path:    "/v1/propagate",
			body:    "[" + strings.Repeat(`{"id": "a", "value": 1, "override": null, "lineage": []},`, 20) + "]",
			status:  http.StatusRequestEntityTooLarge,
			code:    "payload_too_large",
			message: "too large",
		},
		{
			name:        "yaml body too large",
			path:        "/v1/propagate",
			contentType: "application/yaml",
			body:        strings.Repeat("- {id: a, value: 1, override: null, lineage: []}\n", 20),
			status:      http.StatusRequestEntityTooLarge,
			code:        "payload_too_large",
			message:     "too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.contentType, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			body := decode[ErrorBody](t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Contains(t, body.Error.Message, tt.message)
		})
	}
}

func TestValidationCanBeDisabledPerRequest(t *testing.T) {
	ts := newTestServer(t, Config{})
	body := `[{"id": "a", "value": 2, "override": null, "lineage": ["ghost"]}]`

	resp := post(t, ts, "/v1/propagate", "", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = post(t, ts, "/v1/propagate?validate=false", "", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, decode[PropagateResponse](t, resp).Nodes[0].Value)
}

func TestRouting(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, err := ts.Client().Get(ts.URL + "/v1/propagate")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp2, err := ts.Client().Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.Equal(t, "not_found", decode[ErrorBody](t, resp2).Error.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, Config{CORSOrigins: []string{"https://app.example"}})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, ts.URL+"/v1/propagate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))

	resp2 := post(t, ts, "/v1/validate", "", sampleJSON)
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"), "no Origin header, no CORS headers")
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Logger: testutil.NewTestLogger(t), ShutdownTimeout: time.Second})

	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
