package pageengine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/fetcher"
	"github.com/rohmanhakim/docs-harvester/internal/pageengine"
	"github.com/rohmanhakim/docs-harvester/internal/schema"
	"github.com/rohmanhakim/docs-harvester/pkg/retry"
	"github.com/rohmanhakim/docs-harvester/pkg/timeutil"
)

func testRetryParam(maxAttempts int) retry.RetryParam {
	backoff := timeutil.NewBackoffParam(10*time.Millisecond, 1.0, 10*time.Millisecond)
	return retry.NewRetryParam(0, 0, 1, maxAttempts, backoff)
}

const samplePage = `<html><body>
<a href="/report.pdf">report</a>
<a href="/other-page.html">other page</a>
<img src="/photos/thumb_1.jpg">
<main>Here is the readable body text of the page.</main>
</body></html>`

func TestMapPage_CollectsLinksPDFsAndText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sink := &testSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-agent")

	engine := pageengine.NewPageEngine(sink, nil, "")
	collector := schema.NewCollector(sink, nil)

	pageURL, _ := url.Parse(server.URL + "/index.html")
	result, err := engine.MapPage(context.Background(), &f, collector, pageengine.MapParams{
		PageURL:     *pageURL,
		RetryParam:  testRetryParam(2),
		MaxPDFs:     10,
		ImageLimit:  10,
		ExtractText: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(result.PDFURLs) != 1 || result.PDFURLs[0] != server.URL+"/report.pdf" {
		t.Errorf("unexpected PDF URLs: %v", result.PDFURLs)
	}
	if len(result.PageLinks) != 1 || result.PageLinks[0] != server.URL+"/other-page.html" {
		t.Errorf("unexpected page links: %v", result.PageLinks)
	}
	if len(result.ImageItems) != 1 {
		t.Fatalf("expected 1 image item, got %d", len(result.ImageItems))
	}
	if result.Text == nil || result.Text.Text == "" {
		t.Error("expected non-empty extracted text")
	}
}

func TestMapPage_SkipsTextWhenNotRequested(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	sink := &testSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-agent")

	engine := pageengine.NewPageEngine(sink, nil, "")
	collector := schema.NewCollector(sink, nil)

	pageURL, _ := url.Parse(server.URL + "/index.html")
	result, err := engine.MapPage(context.Background(), &f, collector, pageengine.MapParams{
		PageURL:    *pageURL,
		RetryParam: testRetryParam(2),
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if result.Text != nil {
		t.Error("expected no text when ExtractText is false")
	}
}

func TestMapPage_FetchFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	sink := &testSink{}
	f := fetcher.NewHtmlFetcher(sink)
	f.Init(&http.Client{}, "test-agent")

	engine := pageengine.NewPageEngine(sink, nil, "")
	collector := schema.NewCollector(sink, nil)

	pageURL, _ := url.Parse(server.URL + "/missing.html")
	_, err := engine.MapPage(context.Background(), &f, collector, pageengine.MapParams{
		PageURL:    *pageURL,
		RetryParam: testRetryParam(2),
	})
	if err == nil {
		t.Fatal("expected an error for a 404 page fetch")
	}
}
