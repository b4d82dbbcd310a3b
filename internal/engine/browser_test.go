package engine

import (
	"testing"
	"time"
)

// 未初始化时 NewTabContext 走惰性初始化分支，必须能返回而不是卡死
func TestNewTabContextLazyInitReturns(t *testing.T) {
	if findChromePath() != "" {
		t.Skip("Chrome installed, skipping to avoid launching a real browser")
	}

	bm := &BrowserManager{headless: true}

	done := make(chan struct{})
	go func() {
		ctx, cancel := bm.NewTabContext(time.Second)
		cancel()
		if ctx == nil {
			t.Error("expected fallback context, got nil")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NewTabContext did not return")
	}
}
