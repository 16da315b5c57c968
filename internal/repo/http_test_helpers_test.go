package repo

import (
	"bytes"
	"io"
	"net/http"

	"github.com/miradorstack/risk-client/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testScoringConfig(baseURL string) config.ScoringClientConfig {
	cfg := config.Default().Clients.Scoring
	cfg.BaseURL = baseURL
	return cfg
}

func newTestClient(rt roundTripFunc) *ScoringClient {
	client := NewScoringClient(testScoringConfig("https://scoring.example.com"))
	client.http.SetTransport(rt)
	client.newID = func() string { return "generated-id" }
	return client
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     header,
	}
}
