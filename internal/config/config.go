package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	// 服务器配置
	Server ServerConfig `yaml:"server"`

	// 搜索配置
	Search SearchConfig `yaml:"search"`

	// 缓存配置
	Cache CacheConfig `yaml:"cache"`

	// 抓取配置
	Scraping ScrapingConfig `yaml:"scraping"`

	// 代理配置
	Proxy ProxyConfig `yaml:"proxy"`

	// 浏览器配置
	Browser BrowserConfig `yaml:"browser"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int        `yaml:"port"`
	Host string     `yaml:"host"`
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Origin  string `yaml:"origin"`
}

// SearchConfig 搜索配置
type SearchConfig struct {
	DefaultEngine  string `yaml:"default_engine"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxResults     int    `yaml:"max_results"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	TTLSeconds         int `yaml:"ttl_seconds"`
	SuggestTTLSeconds  int `yaml:"suggest_ttl_seconds"`
	CheckPeriodSeconds int `yaml:"check_period_seconds"`
	MaxKeys            int `yaml:"max_keys"`
}

// ScrapingConfig 抓取配置
type ScrapingConfig struct {
	Retries            int `yaml:"retries"`
	RetryDelayMS       int `yaml:"retry_delay_ms"`
	ConcurrentRequests int `yaml:"concurrent_requests"`
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Enabled  bool `yaml:"enabled"`
	Headless bool `yaml:"headless"`
}

// ValidEngines 有效的搜索引擎列表
var ValidEngines = []string{"duckduckgo", "bing", "google", "browser_google"}

// DefaultConfig 默认配置
var DefaultConfig = &Config{
	Server: ServerConfig{
		Port: 3000,
		Host: "0.0.0.0",
		CORS: CORSConfig{
			Enabled: true,
			Origin:  "*",
		},
	},
	Search: SearchConfig{
		DefaultEngine:  "duckduckgo",
		TimeoutSeconds: 10,
		MaxResults:     50,
	},
	Cache: CacheConfig{
		TTLSeconds:         300,
		SuggestTTLSeconds:  60,
		CheckPeriodSeconds: 60,
		MaxKeys:            1000,
	},
	Scraping: ScrapingConfig{
		Retries:            3,
		RetryDelayMS:       1000,
		ConcurrentRequests: 2,
	},
	Proxy: ProxyConfig{
		Enabled: false,
		URL:     "http://127.0.0.1:7890",
	},
	Browser: BrowserConfig{
		Enabled:  false,
		Headless: true,
	},
}

// configSearchPaths 配置文件搜索路径
var configSearchPaths = []string{
	"config.yaml",
	"config.yml",
	"configs/config.yaml",
	"configs/config.yml",
}

// Load 从 YAML 配置文件加载配置
// 支持通过 CONFIG_FILE 环境变量指定配置文件路径
func Load() *Config {
	cfg := *DefaultConfig

	configPath := findConfigFile()
	if configPath == "" {
		log.Printf("⚠️ No config file found, using default configuration")
		log.Printf("💡 You can create a config.yaml file or set CONFIG_FILE environment variable")
		cfg.validate()
		cfg.Print()
		return &cfg
	}

	log.Printf("📄 Loading configuration from: %s", configPath)
	data, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("⚠️ Failed to read config file: %v, using defaults", err)
		cfg.validate()
		cfg.Print()
		return &cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Printf("⚠️ Failed to parse config file: %v, using defaults", err)
		cfg.validate()
		cfg.Print()
		return &cfg
	}

	cfg.validate()
	cfg.Print()

	return &cfg
}

// LoadFromFile 从指定路径加载配置
func LoadFromFile(path string) (*Config, error) {
	cfg := *DefaultConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	cfg.validate()
	return &cfg, nil
}

// findConfigFile 查找配置文件
func findConfigFile() string {
	if envPath := os.Getenv("CONFIG_FILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		log.Printf("⚠️ CONFIG_FILE=%s not found, searching default paths", envPath)
	}

	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	workDir, _ := os.Getwd()

	searchDirs := []string{workDir}
	if execDir != "" && execDir != workDir {
		searchDirs = append(searchDirs, execDir)
	}

	for _, dir := range searchDirs {
		for _, name := range configSearchPaths {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// validate 验证并修正配置
func (c *Config) validate() {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		log.Printf("⚠️ Invalid port %d, using default %d", c.Server.Port, DefaultConfig.Server.Port)
		c.Server.Port = DefaultConfig.Server.Port
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultConfig.Server.Host
	}

	if c.Server.CORS.Origin == "" {
		c.Server.CORS.Origin = DefaultConfig.Server.CORS.Origin
	}

	if !isValidEngine(c.Search.DefaultEngine) {
		log.Printf("⚠️ Invalid default_engine: %s, falling back to %s", c.Search.DefaultEngine, DefaultConfig.Search.DefaultEngine)
		c.Search.DefaultEngine = DefaultConfig.Search.DefaultEngine
	}

	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = DefaultConfig.Search.TimeoutSeconds
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = DefaultConfig.Search.MaxResults
	}

	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = DefaultConfig.Cache.TTLSeconds
	}
	if c.Cache.SuggestTTLSeconds <= 0 {
		c.Cache.SuggestTTLSeconds = DefaultConfig.Cache.SuggestTTLSeconds
	}
	if c.Cache.CheckPeriodSeconds <= 0 {
		c.Cache.CheckPeriodSeconds = DefaultConfig.Cache.CheckPeriodSeconds
	}
	if c.Cache.MaxKeys <= 0 {
		c.Cache.MaxKeys = DefaultConfig.Cache.MaxKeys
	}

	if c.Scraping.Retries < 0 {
		c.Scraping.Retries = DefaultConfig.Scraping.Retries
	}
	if c.Scraping.RetryDelayMS <= 0 {
		c.Scraping.RetryDelayMS = DefaultConfig.Scraping.RetryDelayMS
	}
	if c.Scraping.ConcurrentRequests <= 0 {
		c.Scraping.ConcurrentRequests = DefaultConfig.Scraping.ConcurrentRequests
	}

	if c.Proxy.Enabled && c.Proxy.URL == "" {
		log.Printf("⚠️ Proxy enabled but URL is empty, using default")
		c.Proxy.URL = DefaultConfig.Proxy.URL
	}
}

// Print 打印配置信息
func (c *Config) Print() {
	log.Printf("🔍 Default search engine: %s", c.Search.DefaultEngine)
	log.Printf("🔍 Search timeout: %ds, max results: %d", c.Search.TimeoutSeconds, c.Search.MaxResults)
	log.Printf("💾 Cache: ttl=%ds, suggest_ttl=%ds, max_keys=%d", c.Cache.TTLSeconds, c.Cache.SuggestTTLSeconds, c.Cache.MaxKeys)
	if c.Proxy.Enabled {
		log.Printf("🌐 Using proxy: %s", c.Proxy.URL)
	} else {
		log.Printf("🌐 No proxy configured")
	}
	if c.Server.CORS.Enabled {
		log.Printf("🔒 CORS enabled with origin: %s", c.Server.CORS.Origin)
	} else {
		log.Printf("🔒 CORS disabled")
	}
	if c.Browser.Enabled {
		log.Printf("🖥️ Browser engine enabled (headless=%v)", c.Browser.Headless)
	}
	log.Printf("🖥️ Server will listen on %s:%d", c.Server.Host, c.Server.Port)
}

// SearchTimeout 搜索超时时长
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// CacheTTL 默认缓存时长
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// SuggestCacheTTL 补全建议缓存时长
func (c *Config) SuggestCacheTTL() time.Duration {
	return time.Duration(c.Cache.SuggestTTLSeconds) * time.Second
}

// CacheCheckPeriod 过期清理周期
func (c *Config) CacheCheckPeriod() time.Duration {
	return time.Duration(c.Cache.CheckPeriodSeconds) * time.Second
}

// GetProxyURL 获取代理 URL，未启用时返回空串
func (c *Config) GetProxyURL() string {
	if !c.Proxy.Enabled {
		return ""
	}
	return c.Proxy.URL
}

func isValidEngine(engine string) bool {
	return contains(ValidEngines, engine)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
