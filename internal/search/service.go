package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cliffyan/go-meta-search/internal/cache"
	"github.com/cliffyan/go-meta-search/internal/config"
	"github.com/cliffyan/go-meta-search/internal/engine"
)

// Service 搜索编排层：引擎注册、参数校验、缓存读写、多引擎聚合
type Service struct {
	mu            sync.RWMutex
	engines       map[string]engine.SearchEngine
	defaultEngine string
	cache         *cache.Cache
	defaultTTL    time.Duration
	suggestTTL    time.Duration
}

// New 创建搜索服务并注册所有可用引擎
func New(cfg *config.Config, c *cache.Cache) *Service {
	s := &Service{
		engines:       make(map[string]engine.SearchEngine),
		defaultEngine: cfg.Search.DefaultEngine,
		cache:         c,
		defaultTTL:    cfg.CacheTTL(),
		suggestTTL:    cfg.SuggestCacheTTL(),
	}

	proxyURL := cfg.GetProxyURL()
	timeout := cfg.SearchTimeout()

	s.Register(engine.NewDuckDuckGoEngine(proxyURL, timeout))
	s.Register(engine.NewGoogleEngine(proxyURL, timeout))
	s.Register(engine.NewBingEngine(proxyURL, timeout))

	if cfg.Browser.Enabled {
		s.Register(engine.NewBrowserGoogleEngine(proxyURL, cfg.Browser.Headless))
	}

	log.Printf("🚀 Search service initialized with engines: %s", strings.Join(s.GetAvailableEngines(), ", "))
	return s
}

// Register 注册搜索引擎
func (s *Service) Register(e engine.SearchEngine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines[e.Name()] = e
}

// GetAvailableEngines 返回已注册引擎名称（按字典序）
func (s *Service) GetAvailableEngines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve 按名称查找引擎，空名取默认引擎，名称大小写不敏感
func (s *Service) resolve(name string) (engine.SearchEngine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		name = s.defaultEngine
	}
	name = strings.ToLower(strings.TrimSpace(name))

	e, ok := s.engines[name]
	if !ok {
		available := make([]string, 0, len(s.engines))
		for n := range s.engines {
			available = append(available, n)
		}
		sort.Strings(available)
		return nil, &UnknownEngineError{Engine: name, Available: available}
	}
	return e, nil
}

// validateQuery 查询词去空白后不能为空
func validateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	return query, nil
}

// SearchWeb 执行网页搜索，命中缓存直接返回副本
func (s *Service) SearchWeb(ctx context.Context, engineName, query string, opts engine.WebOptions) (*engine.WebResponse, error) {
	query, err := validateQuery(query)
	if err != nil {
		return nil, err
	}
	e, err := s.resolve(engineName)
	if err != nil {
		return nil, err
	}

	key := cache.Key(engine.TypeWeb, e.Name(), query, map[string]any{
		"page":  opts.Page,
		"limit": opts.Limit,
	})
	if cached, ok := s.cache.Get(key); ok {
		resp := *cached.(*engine.WebResponse)
		resp.Cached = true
		return &resp, nil
	}

	resp, err := e.SearchWeb(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	resp.SearchMetadata.RequestID = uuid.NewString()

	s.cache.Set(key, resp, s.defaultTTL)
	return resp, nil
}

// SearchImages 执行图片搜索
func (s *Service) SearchImages(ctx context.Context, engineName, query string, opts engine.ImageOptions) (*engine.ImageResponse, error) {
	query, err := validateQuery(query)
	if err != nil {
		return nil, err
	}
	e, err := s.resolve(engineName)
	if err != nil {
		return nil, err
	}

	key := cache.Key(engine.TypeImages, e.Name(), query, map[string]any{
		"limit": opts.Limit,
		"size":  opts.Size,
		"color": opts.Color,
	})
	if cached, ok := s.cache.Get(key); ok {
		resp := *cached.(*engine.ImageResponse)
		resp.Cached = true
		return &resp, nil
	}

	resp, err := e.SearchImages(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	resp.SearchMetadata.RequestID = uuid.NewString()

	s.cache.Set(key, resp, s.defaultTTL)
	return resp, nil
}

// SearchNews 执行新闻搜索
func (s *Service) SearchNews(ctx context.Context, engineName, query string, opts engine.NewsOptions) (*engine.NewsResponse, error) {
	query, err := validateQuery(query)
	if err != nil {
		return nil, err
	}
	e, err := s.resolve(engineName)
	if err != nil {
		return nil, err
	}

	key := cache.Key(engine.TypeNews, e.Name(), query, map[string]any{
		"limit":     opts.Limit,
		"freshness": opts.Freshness,
	})
	if cached, ok := s.cache.Get(key); ok {
		resp := *cached.(*engine.NewsResponse)
		resp.Cached = true
		return &resp, nil
	}

	resp, err := e.SearchNews(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	resp.SearchMetadata.RequestID = uuid.NewString()

	s.cache.Set(key, resp, s.defaultTTL)
	return resp, nil
}

// Suggest 获取补全建议，建议结果时效短，用单独的 TTL
func (s *Service) Suggest(ctx context.Context, engineName, query string) (*engine.SuggestResponse, error) {
	query, err := validateQuery(query)
	if err != nil {
		return nil, err
	}
	e, err := s.resolve(engineName)
	if err != nil {
		return nil, err
	}

	key := cache.Key(engine.TypeSuggest, e.Name(), query, nil)
	if cached, ok := s.cache.Get(key); ok {
		resp := *cached.(*engine.SuggestResponse)
		resp.Cached = true
		return &resp, nil
	}

	resp, err := e.Suggest(ctx, query)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, resp, s.suggestTTL)
	return resp, nil
}

// MultiOptions 多引擎聚合搜索选项
type MultiOptions struct {
	Engines []string
	Page    int
	Limit   int
}

// EngineOutcome 单个引擎在聚合搜索中的结果摘要
type EngineOutcome struct {
	Success bool   `json:"success"`
	Count   int    `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MultiResponse 多引擎聚合搜索响应
type MultiResponse struct {
	Success       bool                     `json:"success"`
	Type          string                   `json:"type"`
	Query         string                   `json:"query"`
	Engines       map[string]EngineOutcome `json:"engines"`
	TotalResults  int                      `json:"totalResults"`
	Results       []engine.SearchResult    `json:"results"`
	ExecutionTime string                   `json:"executionTime"`
}

// MultiSearch 并发查询多个引擎并按引擎顺序合并去重。
// 引擎列表为空时使用全部已注册引擎。
// 单个引擎失败不影响整体，失败信息记录在对应引擎的结果摘要里。
func (s *Service) MultiSearch(ctx context.Context, query string, opts MultiOptions) (*MultiResponse, error) {
	start := time.Now()

	query, err := validateQuery(query)
	if err != nil {
		return nil, err
	}

	engines := opts.Engines
	if len(engines) == 0 {
		engines = s.GetAvailableEngines()
	}

	type outcome struct {
		resp *engine.WebResponse
		err  error
	}
	outcomes := make([]outcome, len(engines))

	var wg sync.WaitGroup
	for i, name := range engines {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			resp, err := s.SearchWeb(ctx, name, query, engine.WebOptions{
				Page:  opts.Page,
				Limit: opts.Limit,
			})
			outcomes[i] = outcome{resp: resp, err: err}
		}(i, name)
	}
	wg.Wait()

	engineOutcomes := make(map[string]EngineOutcome, len(engines))
	merged := make([]engine.SearchResult, 0)
	seen := make(map[string]bool)

	// 按调用方给出的引擎顺序合并，同一 URL 保留先出现的条目
	for i, name := range engines {
		o := outcomes[i]
		if o.err != nil {
			log.Printf("⚠️ Multi-search engine %s failed: %v", name, o.err)
			engineOutcomes[name] = EngineOutcome{Success: false, Error: o.err.Error()}
			continue
		}
		engineOutcomes[name] = EngineOutcome{Success: true, Count: len(o.resp.Results)}
		for _, r := range o.resp.Results {
			norm := normalizeURL(r.URL)
			if seen[norm] {
				continue
			}
			seen[norm] = true
			merged = append(merged, r)
		}
	}

	total := len(merged)
	limit := opts.Limit
	if limit <= 0 {
		limit = 30
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	for i := range merged {
		merged[i].Position = i + 1
	}

	log.Printf("🔀 Multi-search merged %d results from %d engines for query '%s'", total, len(engines), query)

	return &MultiResponse{
		Success:       true,
		Type:          "multi-engine",
		Query:         query,
		Engines:       engineOutcomes,
		TotalResults:  total,
		Results:       merged,
		ExecutionTime: elapsedMS(start),
	}, nil
}

// CacheStats 缓存统计
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// ClearCache 清空缓存
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// normalizeURL 去重键：小写并去掉一个末尾斜杠
func normalizeURL(rawURL string) string {
	return strings.TrimSuffix(strings.ToLower(rawURL), "/")
}

func elapsedMS(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}
