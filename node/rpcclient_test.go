package node

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.RPCURL = url
	cfg.RequestLimit = 0 // no throttling in tests
	cfg.RetryDelay = 5 * time.Millisecond
	return cfg
}

func TestClientCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.JSONRPC != "2.0" || req.Method != "getblockcount" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"result": 42, "error": null, "id": 0}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	var count uint64
	if err := c.Call(context.Background(), "getblockcount", nil, &count); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
}

func TestClientAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "sekrit" {
			t.Errorf("x-api-key = %q", got)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "hunter2" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if got := r.Header.Get("Accept-Encoding"); got != "identity" {
			t.Errorf("accept-encoding = %q", got)
		}
		_, _ = w.Write([]byte(`{"result": true}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RPCAPIKey = "sekrit"
	cfg.RPCUserPwd = "alice:hunter2"
	c := NewClient(cfg, nil)
	if err := c.Call(context.Background(), "ping", nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
			return
		}
		_, _ = w.Write([]byte(`{"result": "ok"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	var out string
	if err := c.Call(context.Background(), "getbestblockhash", nil, &out); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "ok" {
		t.Fatalf("out = %q", out)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestClientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"result": null, "error": {"code": -8, "message": "Block height out of range"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	err := c.Call(context.Background(), "getblockhash", []any{uint64(1 << 40)}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 0}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retries = 1
	c := NewClient(cfg, nil)
	if err := c.Call(context.Background(), "getinfo", nil, nil); err == nil {
		t.Fatal("expected error for response without result")
	}
}

func TestClientContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(testConfig(srv.URL), nil)
	if err := c.Call(ctx, "getinfo", nil, nil); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
