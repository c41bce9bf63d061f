package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricelens/internal/config"
	"pricelens/internal/extract"
	"pricelens/internal/pagetext"
)

type stubCompleter struct {
	output     string
	err        error
	calls      int
	lastPrompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.lastPrompt = prompt
	return s.output, s.err
}

func (s *stubCompleter) Model() string { return "llama3-8b-8192" }

func newTestServer(t *testing.T, completer *stubCompleter, opts extract.Options) *Server {
	t.Helper()
	cfg := config.Default()
	svc := extract.NewService(completer, pagetext.NewNormalizer(cfg.Extract.InputMode), opts, zerolog.Nop())
	return NewServer(cfg, svc, zerolog.Nop())
}

func doPost(t *testing.T, s *Server, path, body string) (int, string, http.Header) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b), resp.Header
}

func TestMetadataHandler_PassThrough(t *testing.T) {
	s := newTestServer(t, &stubCompleter{output: `{"title": "Echo Dot", "brand": "Amazon"}`}, extract.Options{})

	status, body, _ := doPost(t, s, "/groq/metadata", `{"html": "Echo Dot (5th Gen) by Amazon"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"title": "Echo Dot", "brand": "Amazon"}`, body)
}

func TestMetadataHandler_UnparseableOutputReturnsDefaults(t *testing.T) {
	s := newTestServer(t, &stubCompleter{output: "Sorry, I cannot extract that."}, extract.Options{})

	status, body, _ := doPost(t, s, "/groq/metadata", `{"html": "whatever"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"title": "", "brand": "", "model": ""}`, body)
}

func TestMetadataHandler_SchemaEnforcement(t *testing.T) {
	s := newTestServer(t, &stubCompleter{output: `{"title": "Echo Dot", "extra": true}`}, extract.Options{EnforceMetadataSchema: true})

	status, body, _ := doPost(t, s, "/groq/metadata", `{"html": "x"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"title": "Echo Dot", "brand": "", "model": ""}`, body)
}

func TestPriceHandler(t *testing.T) {
	cases := []struct {
		output string
		want   string
	}{
		{output: "$19.99", want: `{"price": 19.99}`},
		{output: "1,234.56", want: `{"price": 1234.56}`},
		{output: "null", want: `{"price": null}`},
		{output: "N/A", want: `{"price": null}`},
		{output: "19.99.1", want: `{"price": null}`},
	}

	for _, tc := range cases {
		t.Run(tc.output, func(t *testing.T) {
			s := newTestServer(t, &stubCompleter{output: tc.output}, extract.Options{})

			status, body, _ := doPost(t, s, "/groq/price", `{"html": "Only $19.99"}`)
			assert.Equal(t, http.StatusOK, status)
			assert.JSONEq(t, tc.want, body)
		})
	}
}

func TestHandlers_MissingHTMLDefaultsToEmpty(t *testing.T) {
	stub := &stubCompleter{output: "7"}
	s := newTestServer(t, stub, extract.Options{})

	status, body, _ := doPost(t, s, "/groq/price", `{}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"price": 7}`, body)

	status, _, _ = doPost(t, s, "/groq/price", ``)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, stub.calls)
}

func TestHandlers_HTMLKeyIsCaseSensitive(t *testing.T) {
	stub := &stubCompleter{output: "1"}
	s := newTestServer(t, stub, extract.Options{})

	status, _, _ := doPost(t, s, "/groq/price", `{"HTML": "INJECTED"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, stub.lastPrompt, "TEXT:\n\n")
	assert.NotContains(t, stub.lastPrompt, "INJECTED")

	status, _, _ = doPost(t, s, "/groq/metadata", `{"html": "real", "Html": "INJECTED"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, stub.lastPrompt, "TEXT:\nreal\n")
	assert.NotContains(t, stub.lastPrompt, "INJECTED")
}

func TestHandlers_NonStringHTMLUsedAsText(t *testing.T) {
	cases := map[string]string{
		`{"html": 123}`:            "TEXT:\n123\n",
		`{"html": true}`:           "TEXT:\ntrue\n",
		`{"html": null}`:           "TEXT:\n\n",
		`{"html": {"price": 9.5}}`: "TEXT:\n{\"price\": 9.5}\n",
	}

	for body, want := range cases {
		t.Run(body, func(t *testing.T) {
			stub := &stubCompleter{output: "1"}
			s := newTestServer(t, stub, extract.Options{})

			status, _, _ := doPost(t, s, "/groq/price", body)
			assert.Equal(t, http.StatusOK, status)
			assert.Contains(t, stub.lastPrompt, want)
		})
	}
}

func TestHandlers_MalformedBody(t *testing.T) {
	stub := &stubCompleter{output: "{}"}
	s := newTestServer(t, stub, extract.Options{})

	for _, path := range []string{"/groq/metadata", "/groq/price"} {
		status, body, _ := doPost(t, s, path, `{"html": `)
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Contains(t, body, "BAD_REQUEST_INVALID_JSON")
	}
	assert.Zero(t, stub.calls, "malformed bodies must not reach the completion API")
}

func TestHandlers_UpstreamFailureIsGeneric500(t *testing.T) {
	s := newTestServer(t, &stubCompleter{err: errors.New("401 Unauthorized: invalid api key gsk_secret")}, extract.Options{})

	for _, path := range []string{"/groq/metadata", "/groq/price"} {
		status, body, _ := doPost(t, s, path, `{"html": "x"}`)
		assert.Equal(t, http.StatusInternalServerError, status, path)
		assert.JSONEq(t, `{"success": false, "error": "Internal Server Error"}`, body)
		assert.NotContains(t, body, "gsk_secret")
	}
}

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	s := newTestServer(t, &stubCompleter{output: "1"}, extract.Options{})

	req := httptest.NewRequest(http.MethodPost, "/groq/price", strings.NewReader(`{"html":"x"}`))
	req.Header.Set("X-Request-Id", "req-123")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))

	_, _, hdr := doPost(t, s, "/groq/price", `{"html":"x"}`)
	assert.NotEmpty(t, hdr.Get("X-Request-Id"))
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, &stubCompleter{output: "1"}, extract.Options{})
	_, _, _ = doPost(t, s, "/groq/price", `{"html":"x"}`)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok", "model": "llama3-8b-8192"}`, string(b))

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(b), `pricelens_http_requests_total{method="POST",path="/groq/price",status="200"}`)
	assert.Contains(t, string(b), `pricelens_llm_completions_total{op="price",model="llama3-8b-8192",success="true"}`)
}

func TestRequestMetrics_StableLabelsAcrossRequests(t *testing.T) {
	s := newTestServer(t, &stubCompleter{output: "{}"}, extract.Options{})

	_, _, _ = doPost(t, s, "/groq/price", `{"html":"a"}`)
	_, _, _ = doPost(t, s, "/groq/metadata", `{"html":"b"}`)
	for _, path := range []string{"/healthz", "/no-such-route-7f3a", "/healthz"} {
		resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	out := string(b)

	assert.Contains(t, out, `pricelens_http_requests_total{method="POST",path="/groq/price",status="200"}`)
	assert.Contains(t, out, `pricelens_http_requests_total{method="POST",path="/groq/metadata",status="200"}`)
	assert.Contains(t, out, `pricelens_http_requests_total{method="GET",path="/healthz",status="200"}`)
	assert.Contains(t, out, `pricelens_http_requests_total{method="GET",path="unmatched",status="404"}`)
	assert.NotContains(t, out, "no-such-route")

	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "pricelens_http_requests_total{") {
			continue
		}
		assert.True(t, strings.HasPrefix(line, `pricelens_http_requests_total{method="GET",`) ||
			strings.HasPrefix(line, `pricelens_http_requests_total{method="POST",`), "unexpected series %q", line)
		assert.False(t, strings.HasSuffix(line, "} 0"), "series with zero count %q", line)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, extract.Options{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/groq/unknown", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
