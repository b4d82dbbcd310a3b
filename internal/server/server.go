package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/cors"

	"github.com/cliffyan/go-meta-search/internal/config"
	"github.com/cliffyan/go-meta-search/internal/engine"
	"github.com/cliffyan/go-meta-search/internal/search"
)

// Server 搜索 HTTP 服务器
type Server struct {
	config  *config.Config
	service *search.Service
}

// New 创建新的服务器实例
func New(cfg *config.Config, svc *search.Service) *Server {
	return &Server{
		config:  cfg,
		service: svc,
	}
}

// Start 启动 HTTP 服务器
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// 搜索端点
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/search/images", s.handleImages)
	mux.HandleFunc("/api/images", s.handleImages)
	mux.HandleFunc("/api/search/news", s.handleNews)
	mux.HandleFunc("/api/news", s.handleNews)
	mux.HandleFunc("/api/search/suggest", s.handleSuggest)
	mux.HandleFunc("/api/suggest", s.handleSuggest)
	mux.HandleFunc("/api/search/multi", s.handleMultiSearch)

	// 运维端点
	mux.HandleFunc("/api/engines", s.handleEngines)
	mux.HandleFunc("/api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)

	// 健康检查
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/health", s.handleHealth)

	// 应用 CORS 中间件
	var handler http.Handler = mux
	if s.config.Server.CORS.Enabled {
		c := cors.New(cors.Options{
			AllowedOrigins:   []string{s.config.Server.CORS.Origin},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
		})
		handler = c.Handler(mux)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	log.Printf("🚀 Starting search server on %s", addr)
	log.Printf("📡 Search endpoint: http://%s/api/search?q=...", addr)
	log.Printf("📡 Multi-engine endpoint: http://%s/api/search/multi?q=...", addr)
	log.Printf("❤️ Health check: http://%s/health", addr)

	return http.ListenAndServe(addr, handler)
}

// handleSearch 网页搜索
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := engine.WebOptions{
		Page:    parseInt(q.Get("page"), 1),
		Limit:   s.clampLimit(parseInt(q.Get("limit"), 10)),
		Region:  q.Get("region"),
		Lang:    q.Get("lang"),
		Country: q.Get("country"),
		Market:  q.Get("market"),
		Safe:    q.Get("safe"),
	}

	resp, err := s.service.SearchWeb(r.Context(), q.Get("engine"), q.Get("q"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleImages 图片搜索
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := engine.ImageOptions{
		Limit: s.clampLimit(parseInt(q.Get("limit"), 20)),
		Size:  q.Get("size"),
		Color: q.Get("color"),
	}

	resp, err := s.service.SearchImages(r.Context(), q.Get("engine"), q.Get("q"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleNews 新闻搜索
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := engine.NewsOptions{
		Limit:     s.clampLimit(parseInt(q.Get("limit"), 20)),
		Freshness: q.Get("freshness"),
	}

	resp, err := s.service.SearchNews(r.Context(), q.Get("engine"), q.Get("q"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSuggest 搜索补全
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	resp, err := s.service.Suggest(r.Context(), q.Get("engine"), q.Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleMultiSearch 多引擎聚合搜索，engines 参数为逗号分隔的引擎名
func (s *Server) handleMultiSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	opts := search.MultiOptions{
		Engines: splitEngines(q.Get("engines")),
		Page:    parseInt(q.Get("page"), 1),
		Limit:   s.clampLimit(parseInt(q.Get("limit"), 30)),
	}

	resp, err := s.service.MultiSearch(r.Context(), q.Get("q"), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleEngines 返回可用引擎列表
func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"engines": s.service.GetAvailableEngines(),
		"default": s.config.Search.DefaultEngine,
	})
}

// handleCacheStats 返回缓存统计
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.service.CacheStats()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

// handleCacheClear 清空缓存
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.service.ClearCache()
	log.Printf("🗑️ Cache cleared via API")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Cache cleared",
	})
}

// handleHealth 健康检查端点
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "go-meta-search",
		"engines": s.service.GetAvailableEngines(),
	})
}

// writeJSON 写出 JSON 响应
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeError 根据错误类型映射 HTTP 状态码
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var validationErr *search.ValidationError
	var unknownErr *search.UnknownEngineError
	var upstreamErr *engine.UpstreamError

	status := http.StatusInternalServerError
	body := map[string]any{
		"success": false,
		"error":   err.Error(),
	}

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body["code"] = "INVALID_REQUEST"
	case errors.As(err, &unknownErr):
		status = http.StatusBadRequest
		body["code"] = "UNKNOWN_ENGINE"
	case errors.As(err, &upstreamErr):
		// 上游引擎故障对调用方是临时性问题
		status = http.StatusServiceUnavailable
		body["code"] = "UPSTREAM_UNAVAILABLE"
		body["message"] = "Search service temporarily unavailable"
		body["suggestion"] = "Please try again later or use a different engine"
	default:
		body["code"] = "INTERNAL_ERROR"
	}

	log.Printf("❌ Request failed (%d): %v", status, err)
	s.writeJSON(w, status, body)
}

// parseInt 解析查询参数里的整数，非法或缺省时用默认值
func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// clampLimit 限制单次请求的结果数量上限
func (s *Server) clampLimit(limit int) int {
	if max := s.config.Search.MaxResults; limit > max {
		return max
	}
	return limit
}

// splitEngines 解析逗号分隔的引擎列表
func splitEngines(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	engines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			engines = append(engines, p)
		}
	}
	return engines
}
