package engine

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// DefaultTimeout 上游请求默认超时
const DefaultTimeout = 10 * time.Second

// suggestTimeout 补全类请求超时更短
const suggestTimeout = 5 * time.Second

// newHTTPClient 创建带 cookie jar 和可选代理的 HTTP 客户端
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{}
	if proxyURL != "" {
		if proxy, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: transport,
	}
}

// detectImageFormat 根据 URL 猜测图片格式
func detectImageFormat(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, ".jpg") || strings.Contains(lower, ".jpeg"):
		return "jpeg"
	case strings.Contains(lower, ".png"):
		return "png"
	case strings.Contains(lower, ".gif"):
		return "gif"
	case strings.Contains(lower, ".webp"):
		return "webp"
	case strings.Contains(lower, ".svg"):
		return "svg"
	default:
		return "unknown"
	}
}

// aspectRatio 宽高均大于 0 时返回保留两位小数的宽高比，否则返回空串
func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", float64(width)/float64(height))
}

// highlightMatch 在建议文本中定位查询子串（不区分大小写，取首次出现）。
// 小写化可能改变字节长度，所以按 rune 在原文上匹配，保证切片落在 rune 边界。
// 未命中时整段文本作为 match，before/after 为空。
func highlightMatch(text, query string) Highlight {
	loweredQuery := strings.ToLower(query)
	for start := range text {
		if n, ok := foldPrefixLen(text[start:], loweredQuery); ok {
			return Highlight{
				Before: text[:start],
				Match:  text[start : start+n],
				After:  text[start+n:],
			}
		}
	}
	return Highlight{Match: text}
}

// foldPrefixLen 判断 s 的某个前缀小写化后是否等于 loweredQuery，
// 命中时返回该前缀在 s 中的字节长度
func foldPrefixLen(s, loweredQuery string) (int, bool) {
	rest := loweredQuery
	for i, r := range s {
		if rest == "" {
			return i, true
		}
		lowered := string(unicode.ToLower(r))
		if !strings.HasPrefix(rest, lowered) {
			return 0, false
		}
		rest = rest[len(lowered):]
	}
	if rest == "" {
		return len(s), true
	}
	return 0, false
}

// elapsed 返回 "123ms" 形式的耗时
func elapsed(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}

// timestamp 返回 ISO 8601 格式的当前时间
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
