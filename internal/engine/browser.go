package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserManager 浏览器管理器（单例），所有浏览器引擎共享一个实例
type BrowserManager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancelFunc  context.CancelFunc
	mu          sync.Mutex
	initialized bool
	proxyURL    string
	headless    bool
}

var (
	browserManagerInstance *BrowserManager
	browserManagerOnce     sync.Once
)

// GetBrowserManager 获取浏览器管理器单例
func GetBrowserManager() *BrowserManager {
	browserManagerOnce.Do(func() {
		browserManagerInstance = &BrowserManager{
			headless: true,
		}
	})
	return browserManagerInstance
}

// findChromePath 查找 Chrome 可执行文件路径
func findChromePath() string {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			os.Getenv("LOCALAPPDATA") + `\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			log.Printf("🔍 Found Chrome at: %s", p)
			return p
		}
	}

	return ""
}

// Initialize 初始化浏览器
func (bm *BrowserManager) Initialize(proxyURL string, headless bool) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.initLocked(proxyURL, headless)
}

// initLocked 执行实际初始化，调用方必须持有 bm.mu
func (bm *BrowserManager) initLocked(proxyURL string, headless bool) error {
	if bm.initialized {
		return nil
	}

	bm.proxyURL = proxyURL
	bm.headless = headless

	chromePath := findChromePath()
	if chromePath == "" {
		return fmt.Errorf("Chrome/Chromium not found. Please install Chrome browser")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),

		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),

		// 模拟真实浏览器
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),

		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1920, 1080),

		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	if proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(proxyURL))
		log.Printf("🌐 Browser using proxy: %s", proxyURL)
	}

	bm.allocCtx, bm.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)

	bm.browserCtx, bm.cancelFunc = chromedp.NewContext(bm.allocCtx,
		chromedp.WithLogf(log.Printf),
	)

	// 预热
	if err := chromedp.Run(bm.browserCtx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	bm.initialized = true
	log.Printf("✅ Browser initialized (headless=%v, path=%s)", headless, chromePath)
	return nil
}

// NewTabContext 创建新的标签页上下文
func (bm *BrowserManager) NewTabContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if !bm.initialized {
		if err := bm.initLocked("", true); err != nil {
			log.Printf("❌ Failed to initialize browser: %v", err)
			return context.Background(), func() {}
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(bm.browserCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, timeout)

	return timeoutCtx, func() {
		timeoutCancel()
		tabCancel()
	}
}

// Close 关闭浏览器
func (bm *BrowserManager) Close() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.cancelFunc != nil {
		bm.cancelFunc()
	}
	if bm.allocCancel != nil {
		bm.allocCancel()
	}
	bm.initialized = false
	log.Printf("🔴 Browser closed")
}

// IsInitialized 检查是否已初始化
func (bm *BrowserManager) IsInitialized() bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.initialized
}
