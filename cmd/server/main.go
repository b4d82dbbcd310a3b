package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cliffyan/go-meta-search/internal/cache"
	"github.com/cliffyan/go-meta-search/internal/config"
	"github.com/cliffyan/go-meta-search/internal/search"
	"github.com/cliffyan/go-meta-search/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("🔍 Starting go-meta-search server...")

	// 加载配置
	cfg := config.Load()

	// 初始化结果缓存
	resultCache := cache.New(cache.Options{
		DefaultTTL:  cfg.CacheTTL(),
		CheckPeriod: cfg.CacheCheckPeriod(),
		MaxKeys:     cfg.Cache.MaxKeys,
	})

	// 初始化搜索服务
	svc := search.New(cfg, resultCache)

	// 创建服务器
	srv := server.New(cfg, svc)

	// 优雅关闭
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("🛑 Shutting down server...")
		resultCache.Close()
		os.Exit(0)
	}()

	// 启动服务器
	if err := srv.Start(); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
