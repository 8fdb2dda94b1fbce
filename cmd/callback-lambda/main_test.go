package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func gatewayGet(path, query string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath:        path,
		RawQueryString: query,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: http.MethodGet,
				Path:   path,
			},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	resp, err := handle(context.Background(), cfg, client, gatewayGet("/health", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Body != "ok" {
		t.Fatalf("expected ok body, got %q", resp.Body)
	}
}

func TestHandleRejectsNonGet(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	evt := gatewayGet("/oauth/callback", "")
	evt.RequestContext.HTTP.Method = http.MethodPost

	resp, err := handle(context.Background(), cfg, client, evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}

func TestHandleRejectsUnknownPath(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://example.com", upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	resp, err := handle(context.Background(), cfg, client, gatewayGet("/calls/start", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestHandleProxiesCallbackWithQuery(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<h3>Login complete. You may return to the call.</h3>"))
	}))
	defer upstream.Close()

	cfg := config{upstreamBaseURL: upstream.URL, upstreamTimeout: time.Second}
	client := &http.Client{Timeout: time.Second}

	resp, err := handle(context.Background(), cfg, client,
		gatewayGet("/oauth/callback", "code=abc123&state=sess-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if gotPath != "/oauth/callback" {
		t.Errorf("unexpected upstream path: %q", gotPath)
	}
	if gotQuery != "code=abc123&state=sess-1" {
		t.Errorf("query string not preserved: %q", gotQuery)
	}
	if resp.Headers["content-type"] != "text/html; charset=utf-8" {
		t.Errorf("content type not propagated: %q", resp.Headers["content-type"])
	}
}

func TestHandleUpstreamDown(t *testing.T) {
	cfg := config{upstreamBaseURL: "http://127.0.0.1:1", upstreamTimeout: 100 * time.Millisecond}
	client := &http.Client{Timeout: 100 * time.Millisecond}

	resp, err := handle(context.Background(), cfg, client, gatewayGet("/auth/poll", "session=sess-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}
