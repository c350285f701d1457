package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, response string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(versionResponse{Version: "0.1.0"})
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Stream {
			http.Error(w, "streaming not expected", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{
			Model:    req.Model,
			Response: response,
			Done:     true,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(&ClientConfig{
		BaseURL:        baseURL,
		Model:          "test-model",
		RequestTimeout: 2 * time.Second,
		RatePerSecond:  100,
		RateBurst:      10,
	})
}

func TestClientGenerate(t *testing.T) {
	srv := newTestServer(t, "The combo makes infinite tokens.")
	c := testClient(t, srv.URL)

	got, err := c.Generate(context.Background(), "system", "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "The combo makes infinite tokens." {
		t.Errorf("Generate = %q", got)
	}
}

func TestClientGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := testClient(t, srv.URL)
	if _, err := c.Generate(context.Background(), "", "prompt"); err == nil {
		t.Error("Generate should fail on a server error")
	}
}

func TestClientIsAvailable(t *testing.T) {
	srv := newTestServer(t, "ok")
	c := testClient(t, srv.URL)

	if !c.IsAvailable(context.Background()) {
		t.Error("client should report available against a healthy server")
	}

	down := testClient(t, "http://127.0.0.1:1")
	if down.IsAvailable(context.Background()) {
		t.Error("client should report unavailable when the server is unreachable")
	}
}

func TestClientRateLimiterRespectsContext(t *testing.T) {
	srv := newTestServer(t, "ok")
	c := NewClient(&ClientConfig{
		BaseURL:        srv.URL,
		Model:          "test-model",
		RequestTimeout: time.Second,
		RatePerSecond:  0.001, // Effectively blocked after the burst
		RateBurst:      1,
	})

	// First call consumes the burst.
	if _, err := c.Generate(context.Background(), "", "one"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Generate(ctx, "", "two"); err == nil {
		t.Error("rate-limited call should fail once the context expires")
	}
}
