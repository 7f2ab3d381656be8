package config_test

import (
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-harvester/internal/config"
)

func testSeedURLs() []url.URL {
	return []url.URL{{Scheme: "https", Host: "example.org"}}
}

func TestWithDefault_ScrapeBehaviorDefaults(t *testing.T) {
	cfg, err := config.WithDefault(testSeedURLs()).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Aggressiveness() != config.AggressivenessAuto {
		t.Errorf("expected default aggressiveness auto, got %v", cfg.Aggressiveness())
	}
	if cfg.Crawl() {
		t.Error("expected crawl to default to false")
	}
	if !cfg.SameHostOnly() {
		t.Error("expected sameHostOnly to default to true")
	}
	if cfg.MaxIterations() != 3 {
		t.Errorf("expected MaxIterations 3, got %d", cfg.MaxIterations())
	}
	if cfg.SafeAssetWorkers() != 8 {
		t.Errorf("expected SafeAssetWorkers 8, got %d", cfg.SafeAssetWorkers())
	}
	if cfg.HeadWorkers() != 6 {
		t.Errorf("expected HeadWorkers 6, got %d", cfg.HeadWorkers())
	}
}

func TestWithAggressiveness_AppliesTablePreset(t *testing.T) {
	cfg, err := config.WithDefault(testSeedURLs()).WithAggressiveness(config.AggressivenessAggressive).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Concurrency() != 12 {
		t.Errorf("expected aggressive preset to set Concurrency 12, got %d", cfg.Concurrency())
	}
	if cfg.BaseDelay() != 150*time.Millisecond {
		t.Errorf("expected aggressive preset to set BaseDelay 150ms, got %v", cfg.BaseDelay())
	}
}

func TestWithAggressiveness_ExplicitOverrideAfterPresetWins(t *testing.T) {
	cfg, err := config.WithDefault(testSeedURLs()).
		WithAggressiveness(config.AggressivenessConservative).
		WithConcurrency(7).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Concurrency() != 7 {
		t.Errorf("expected explicit WithConcurrency to win over the preset, got %d", cfg.Concurrency())
	}
}

func TestWithAggressiveness_AutoAndUnknownResolveToBalanced(t *testing.T) {
	autoCfg, err := config.WithDefault(testSeedURLs()).WithAggressiveness(config.AggressivenessAuto).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	balancedCfg, err := config.WithDefault(testSeedURLs()).WithAggressiveness(config.AggressivenessBalanced).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if autoCfg.Concurrency() != balancedCfg.Concurrency() || autoCfg.BaseDelay() != balancedCfg.BaseDelay() {
		t.Errorf("expected auto to resolve to the balanced preset, got concurrency=%d delay=%v",
			autoCfg.Concurrency(), autoCfg.BaseDelay())
	}
}

func TestScrapeBehaviorBuilders(t *testing.T) {
	cfg, err := config.WithDefault(testSeedURLs()).
		WithCrawl(true).
		WithSameHostOnly(false).
		WithTypeFilter(map[string]struct{}{"pdf": {}}).
		WithAssetCountCap(5).
		WithMinImageBytes(1024).
		WithMaxImageBytes(10 * 1024 * 1024).
		WithBrowserMode(true).
		WithVisibleBrowser(true).
		WithHumanBypass(true).
		WithChallengeProxyURL("http://localhost:8191").
		WithMaxIterations(5).
		WithRetryTimeout(30 * time.Second).
		WithNoRobots(true).
		WithKeepAwake(true).
		WithDoneScript("echo {out_dir}").
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.Crawl() {
		t.Error("expected Crawl true")
	}
	if cfg.SameHostOnly() {
		t.Error("expected SameHostOnly false")
	}
	if _, ok := cfg.TypeFilter()["pdf"]; !ok || len(cfg.TypeFilter()) != 1 {
		t.Errorf("expected TypeFilter {pdf}, got %v", cfg.TypeFilter())
	}
	if cfg.AssetCountCap() != 5 {
		t.Errorf("expected AssetCountCap 5, got %d", cfg.AssetCountCap())
	}
	if cfg.MinImageBytes() != 1024 || cfg.MaxImageBytes() != 10*1024*1024 {
		t.Errorf("unexpected image byte bounds: min=%d max=%d", cfg.MinImageBytes(), cfg.MaxImageBytes())
	}
	if !cfg.BrowserMode() || !cfg.VisibleBrowser() || !cfg.HumanBypass() {
		t.Error("expected browser-related flags all true")
	}
	if cfg.ChallengeProxyURL() != "http://localhost:8191" {
		t.Errorf("unexpected ChallengeProxyURL: %s", cfg.ChallengeProxyURL())
	}
	if cfg.MaxIterations() != 5 {
		t.Errorf("expected MaxIterations 5, got %d", cfg.MaxIterations())
	}
	if cfg.RetryTimeout() != 30*time.Second {
		t.Errorf("expected RetryTimeout 30s, got %v", cfg.RetryTimeout())
	}
	if !cfg.NoRobots() || !cfg.KeepAwake() {
		t.Error("expected NoRobots and KeepAwake both true")
	}
	if cfg.DoneScript() != "echo {out_dir}" {
		t.Errorf("unexpected DoneScript: %s", cfg.DoneScript())
	}
}

func TestParseByteSize(t *testing.T) {
	cases := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"200", 200, false},
		{"200k", 200 * 1024, false},
		{"10M", 10 * 1024 * 1024, false},
		{"not-a-number", 0, true},
	}
	for _, tc := range cases {
		got, err := config.ParseByteSize(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseByteSize(%q): expected error, got none", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseByteSize(%q): unexpected error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestWithConfigFile_ScrapeBehaviorFields(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.json"
	content := `{
		"seedUrls": [{"Scheme": "https", "Host": "example.org"}],
		"aggressiveness": "conservative",
		"crawl": true,
		"sameHostOnly": false,
		"maxIterations": 7,
		"doneScript": "notify-send done"
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config file: %v", err)
	}

	cfg, err := config.WithConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Aggressiveness() != config.AggressivenessConservative {
		t.Errorf("expected aggressiveness conservative, got %v", cfg.Aggressiveness())
	}
	if cfg.Concurrency() != 2 {
		t.Errorf("expected conservative preset Concurrency 2, got %d", cfg.Concurrency())
	}
	if !cfg.Crawl() {
		t.Error("expected Crawl true from config file")
	}
	if cfg.SameHostOnly() {
		t.Error("expected SameHostOnly false from config file")
	}
	if cfg.MaxIterations() != 7 {
		t.Errorf("expected MaxIterations 7, got %d", cfg.MaxIterations())
	}
	if cfg.DoneScript() != "notify-send done" {
		t.Errorf("unexpected DoneScript: %s", cfg.DoneScript())
	}
}
