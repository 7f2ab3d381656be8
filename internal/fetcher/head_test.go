package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
)

func TestHtmlFetcher_HeadMetadata_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "4096")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-user-agent")

	fetchUrl, _ := url.Parse(server.URL)

	contentType, contentLength, err := f.HeadMetadata(context.Background(), *fetchUrl, 0, 0)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if contentType != "image/jpeg" {
		t.Errorf("expected content type image/jpeg, got %s", contentType)
	}
	if contentLength != 4096 {
		t.Errorf("expected content length 4096, got %d", contentLength)
	}
}

func TestHtmlFetcher_HeadMetadata_MissingContentLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-user-agent")

	fetchUrl, _ := url.Parse(server.URL)

	_, contentLength, err := f.HeadMetadata(context.Background(), *fetchUrl, 0, 0)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if contentLength != -1 {
		t.Errorf("expected content length -1 when header absent, got %d", contentLength)
	}
}

func TestHtmlFetcher_HeadMetadata_NotFoundIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-user-agent")

	fetchUrl, _ := url.Parse(server.URL)

	_, _, err := f.HeadMetadata(context.Background(), *fetchUrl, 0, 0)
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	if err.(*fetcher.FetchError).IsRetryable() {
		t.Error("expected 404 to be non-retryable")
	}
}

func TestHtmlFetcher_HeadMetadata_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := &mockMetadataSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-user-agent")

	fetchUrl, _ := url.Parse(server.URL)

	_, _, err := f.HeadMetadata(context.Background(), *fetchUrl, 0, 0)
	if err == nil {
		t.Fatal("expected error for 503, got nil")
	}
	if !err.(*fetcher.FetchError).IsRetryable() {
		t.Error("expected 503 to be retryable")
	}
}
