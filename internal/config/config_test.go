package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := *DefaultConfig
	cfg.validate()

	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Search.DefaultEngine != "duckduckgo" {
		t.Errorf("default engine = %q", cfg.Search.DefaultEngine)
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.CacheTTL())
	}
	if cfg.SuggestCacheTTL() != time.Minute {
		t.Errorf("suggest ttl = %v, want 1m", cfg.SuggestCacheTTL())
	}
	if cfg.Cache.MaxKeys != 1000 {
		t.Errorf("max keys = %d, want 1000", cfg.Cache.MaxKeys)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8080
search:
  default_engine: bing
  max_results: 25
cache:
  ttl_seconds: 120
proxy:
  enabled: true
  url: http://127.0.0.1:8888
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Search.DefaultEngine != "bing" {
		t.Errorf("default engine = %q, want bing", cfg.Search.DefaultEngine)
	}
	if cfg.Search.MaxResults != 25 {
		t.Errorf("max results = %d, want 25", cfg.Search.MaxResults)
	}
	if cfg.Cache.TTLSeconds != 120 {
		t.Errorf("cache ttl = %d, want 120", cfg.Cache.TTLSeconds)
	}
	// 文件未覆盖的字段保持默认值
	if cfg.Cache.MaxKeys != 1000 {
		t.Errorf("max keys = %d, want default 1000", cfg.Cache.MaxKeys)
	}
	if cfg.GetProxyURL() != "http://127.0.0.1:8888" {
		t.Errorf("proxy url = %q", cfg.GetProxyURL())
	}
}

func TestValidateFallbacks(t *testing.T) {
	cfg := *DefaultConfig
	cfg.Server.Port = -1
	cfg.Search.DefaultEngine = "altavista"
	cfg.Cache.TTLSeconds = 0
	cfg.validate()

	if cfg.Server.Port != DefaultConfig.Server.Port {
		t.Errorf("port = %d, want default after invalid value", cfg.Server.Port)
	}
	if cfg.Search.DefaultEngine != "duckduckgo" {
		t.Errorf("default engine = %q, want fallback duckduckgo", cfg.Search.DefaultEngine)
	}
	if cfg.Cache.TTLSeconds != DefaultConfig.Cache.TTLSeconds {
		t.Errorf("ttl = %d, want default", cfg.Cache.TTLSeconds)
	}
}

func TestGetProxyURLDisabled(t *testing.T) {
	cfg := *DefaultConfig
	cfg.Proxy.Enabled = false
	cfg.Proxy.URL = "http://127.0.0.1:7890"

	if got := cfg.GetProxyURL(); got != "" {
		t.Errorf("proxy url = %q, want empty when disabled", got)
	}
}
