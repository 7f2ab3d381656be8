package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestContainsChallengeMarker(t *testing.T) {
	cases := []struct {
		name string
		html string
		want bool
	}{
		{"clean page", "<html><body>hello</body></html>", false},
		{"cloudflare just a moment", "<html><body>Just a moment...</body></html>", true},
		{"cf_chl_opt marker", "<script>window._cf_chl_opt={cvId:'2'}</script>", true},
		{"challenge platform marker", "<div class=\"challenge-platform\"></div>", true},
	}
	for _, c := range cases {
		if got := containsChallengeMarker(c.html); got != c.want {
			t.Errorf("%s: containsChallengeMarker() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestLooksThrottled(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"normal html", "<html><body>welcome</body></html>", false},
		{"rate limit wording", "You have hit the rate limit, please wait", true},
		{"too many requests wording", "Error: too many requests from this IP", true},
		{"slow down wording", "Whoa there, slow down", true},
	}
	for _, c := range cases {
		if got := looksThrottled([]byte(c.body)); got != c.want {
			t.Errorf("%s: looksThrottled() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIiifAltSizeURL(t *testing.T) {
	full, _ := url.Parse("https://example.org/iiif/item1/full/full/0/default.jpg")
	alt, ok := iiifAltSizeURL(*full)
	if !ok {
		t.Fatal("expected an alt URL for /full/full/")
	}
	if alt.String() != "https://example.org/iiif/item1/full/max/0/default.jpg" {
		t.Errorf("unexpected alt URL: %s", alt.String())
	}

	max, _ := url.Parse("https://example.org/iiif/item1/full/max/0/default.jpg")
	alt2, ok := iiifAltSizeURL(*max)
	if !ok {
		t.Fatal("expected an alt URL for /full/max/")
	}
	if alt2.String() != "https://example.org/iiif/item1/full/full/0/default.jpg" {
		t.Errorf("unexpected alt URL: %s", alt2.String())
	}

	plain, _ := url.Parse("https://example.org/page.html")
	if _, ok := iiifAltSizeURL(*plain); ok {
		t.Error("expected no alt URL for a non-IIIF path")
	}
}

func TestComputeWait_FloorWins(t *testing.T) {
	h := NewHtmlFetcher(nil)
	h.rateLimitFloor = 10 * time.Second
	wait := h.computeWait(0)
	if wait < 8*time.Second || wait > 12*time.Second {
		t.Errorf("expected wait near the 10s floor, got %v", wait)
	}
}

func TestRaiseAndDecayRateLimitFloor(t *testing.T) {
	h := NewHtmlFetcher(nil)
	h.raiseRateLimitFloor(30 * time.Second)
	if h.rateLimitFloor != 30*time.Second {
		t.Fatalf("expected floor 30s, got %v", h.rateLimitFloor)
	}
	h.raiseRateLimitFloor(10 * time.Second)
	if h.rateLimitFloor != 30*time.Second {
		t.Error("expected floor to stay monotonic against a lower raise")
	}
	h.decayRateLimitFloor()
	diff := h.rateLimitFloor - 27*time.Second
	if diff < -time.Millisecond || diff > time.Millisecond {
		t.Errorf("expected floor to decay by 10%% to ~27s, got %v", h.rateLimitFloor)
	}
}

func TestPostChallengeProxyRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req challengeProxyRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Cmd != "request.get" {
			t.Errorf("expected cmd request.get, got %s", req.Cmd)
		}
		resp := challengeProxyResponse{Status: "ok"}
		resp.Solution.Response = "<html>solved</html>"
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	html, ok, err := postChallengeProxyRequest(context.Background(), server.URL, "https://target.example/page", 5000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !ok {
		t.Fatal("expected status ok")
	}
	if html != "<html>solved</html>" {
		t.Errorf("unexpected html: %s", html)
	}
}

func TestPostChallengeProxyRequest_NonOkStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(challengeProxyResponse{Status: "error"})
	}))
	defer server.Close()

	_, ok, err := postChallengeProxyRequest(context.Background(), server.URL, "https://target.example/page", 5000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a non-ok proxy status")
	}
}
