package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/cliffyan/go-meta-search/internal/enrich"
)

// BrowserGoogleEngine 使用无头浏览器渲染的 Google 搜索引擎。
// 静态抓取被反爬拦截时的兜底，只支持网页搜索。
type BrowserGoogleEngine struct {
	proxyURL string
	headless bool
	timeout  time.Duration
}

// NewBrowserGoogleEngine 创建浏览器版 Google 搜索引擎
func NewBrowserGoogleEngine(proxyURL string, headless bool) *BrowserGoogleEngine {
	return &BrowserGoogleEngine{
		proxyURL: proxyURL,
		headless: headless,
		timeout:  60 * time.Second,
	}
}

// Name 返回引擎名称
func (e *BrowserGoogleEngine) Name() string {
	return "browser_google"
}

// SearchWeb 使用浏览器执行 Google 搜索，结果不足时翻页（最多 3 页）
func (e *BrowserGoogleEngine) SearchWeb(ctx context.Context, query string, opts WebOptions) (*WebResponse, error) {
	start := time.Now()
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	bm := GetBrowserManager()
	if err := bm.Initialize(e.proxyURL, e.headless); err != nil {
		return nil, upstreamErr(e.Name(), TypeWeb, fmt.Errorf("failed to initialize browser: %w", err))
	}

	var results []SearchResult
	pageIdx := page - 1

	for len(results) < limit && pageIdx < page-1+3 {
		pageResults, err := e.searchPage(ctx, query, pageIdx, limit-len(results), len(results))
		if err != nil {
			if len(results) > 0 {
				break
			}
			return nil, upstreamErr(e.Name(), TypeWeb, err)
		}
		if len(pageResults) == 0 {
			break
		}
		results = append(results, pageResults...)
		pageIdx++
	}

	if len(results) > limit {
		results = results[:limit]
	}

	return &WebResponse{
		Success:         true,
		Engine:          e.Name(),
		Query:           query,
		TotalResults:    len(results),
		Page:            page,
		Results:         results,
		RelatedSearches: []string{},
		PeopleAlsoAsk:   []Question{},
		SearchMetadata: Metadata{
			Engine:    e.Name(),
			Query:     query,
			TotalTime: elapsed(start),
			Timestamp: timestamp(),
		},
		ExecutionTime: elapsed(start),
	}, nil
}

// searchPage 渲染并解析单页
func (e *BrowserGoogleEngine) searchPage(ctx context.Context, query string, pageIdx, limit, offset int) ([]SearchResult, error) {
	bm := GetBrowserManager()

	tabCtx, cancel := bm.NewTabContext(e.timeout)
	defer cancel()

	searchURL := fmt.Sprintf("https://www.google.com/search?q=%s&start=%d&hl=en",
		url.QueryEscape(query), pageIdx*10)

	var html string

	log.Printf("🌐 [BrowserGoogle] Navigating to: %s", searchURL)

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("#search", chromedp.ByID),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return nil, fmt.Errorf("browser navigation failed: %w", err)
	}

	log.Printf("🔍 [BrowserGoogle] Got page HTML, size: %d bytes", len(html))

	results, err := e.parseHTML(html, limit, offset)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ [BrowserGoogle] Page %d: found %d results", pageIdx, len(results))
	return results, nil
}

// parseHTML 解析渲染后的页面，产出与静态引擎同构的结果
func (e *BrowserGoogleEngine) parseHTML(html string, limit, offset int) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}

	results := make([]SearchResult, 0, limit)
	seen := make(map[string]bool)

	// 渲染后的页面结构和静态版不完全一致，按优先级尝试多组选择器
	selectors := []string{"div.g", "div[data-ved]", "div.Gx5Zad"}

	for _, selector := range selectors {
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if len(results) >= limit {
				return false
			}
			if selector != "div.g" && s.Find("div.g").Length() > 0 {
				return true
			}

			href, ok := s.Find("a[href]").First().Attr("href")
			if !ok {
				return true
			}
			if !strings.HasPrefix(href, "http") ||
				strings.Contains(href, "google.com") ||
				strings.Contains(href, "webcache.googleusercontent.com") {
				return true
			}
			if seen[href] {
				return true
			}

			title := strings.TrimSpace(s.Find("h3").First().Text())
			if title == "" {
				return true
			}

			snippet := ""
			for _, descSel := range []string{"div[data-sncf]", "div.VwiC3b", "span.aCOpRe", "div.IsZvec"} {
				if text := strings.TrimSpace(s.Find(descSel).First().Text()); text != "" {
					snippet = text
					break
				}
			}

			displayURL := strings.TrimSpace(s.Find("cite").First().Text())
			if displayURL == "" {
				displayURL = formatDisplayURL(href)
			}

			seen[href] = true
			position := offset + len(results) + 1

			date, cleanSnippet := enrich.ExtractDate(snippet)
			result := SearchResult{
				Position:      position,
				Title:         title,
				URL:           href,
				DisplayURL:    displayURL,
				Snippet:       cleanSnippet,
				Domain:        enrich.ExtractDomain(href),
				Favicon:       enrich.FaviconURL(href, "google"),
				FaviconHD:     enrich.FaviconURL(href, "clearbit"),
				SiteName:      enrich.SiteName(href),
				Breadcrumbs:   enrich.Breadcrumbs(href),
				ContentType:   enrich.DetectContentType(title, cleanSnippet, href),
				DatePublished: date,
				IsSecure:      strings.HasPrefix(href, "https"),
				Engine:        e.Name(),
			}
			result.QualityScore = enrich.QualityScore(position, title, cleanSnippet, href)

			results = append(results, result)
			return true
		})

		if len(results) > 0 {
			break
		}
	}

	return results, nil
}

// SearchImages 浏览器引擎不支持图片搜索
func (e *BrowserGoogleEngine) SearchImages(ctx context.Context, query string, opts ImageOptions) (*ImageResponse, error) {
	return nil, upstreamErr(e.Name(), TypeImages, errors.New("not supported by browser engine"))
}

// SearchNews 浏览器引擎不支持新闻搜索
func (e *BrowserGoogleEngine) SearchNews(ctx context.Context, query string, opts NewsOptions) (*NewsResponse, error) {
	return nil, upstreamErr(e.Name(), TypeNews, errors.New("not supported by browser engine"))
}

// Suggest 浏览器引擎不支持搜索补全
func (e *BrowserGoogleEngine) Suggest(ctx context.Context, query string) (*SuggestResponse, error) {
	return nil, upstreamErr(e.Name(), TypeSuggest, errors.New("not supported by browser engine"))
}
