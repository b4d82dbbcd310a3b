package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/cliffyan/go-meta-search/internal/enrich"
)

// bingCountRe 匹配 "1,230,000 results" 里的数字
var bingCountRe = regexp.MustCompile(`[\d,]+`)

// BingEngine Bing 搜索引擎实现
type BingEngine struct {
	client     *http.Client
	baseURL    string
	imagesURL  string
	newsURL    string
	suggestURL string
}

// NewBingEngine 创建 Bing 搜索引擎实例
func NewBingEngine(proxyURL string, timeout time.Duration) *BingEngine {
	return &BingEngine{
		client:     newHTTPClient(proxyURL, timeout),
		baseURL:    "https://www.bing.com/search",
		imagesURL:  "https://www.bing.com/images/search",
		newsURL:    "https://www.bing.com/news/search",
		suggestURL: "https://www.bing.com/AS/Suggestions",
	}
}

// Name 返回引擎名称
func (e *BingEngine) Name() string {
	return "bing"
}

// setHeaders 设置请求头
func (e *BingEngine) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}

// fetchDocument 请求并解析结果页
func (e *BingEngine) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}
	return doc, nil
}

// SearchWeb 执行 Bing 网页搜索
func (e *BingEngine) SearchWeb(ctx context.Context, query string, opts WebOptions) (*WebResponse, error) {
	start := time.Now()
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	market := opts.Market
	if market == "" {
		market = "en-US"
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("first", strconv.Itoa((page-1)*10+1))
	params.Set("count", strconv.Itoa(limit))
	params.Set("setmkt", market)
	params.Set("setlang", "en")

	doc, err := e.fetchDocument(ctx, e.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeWeb, err)
	}

	results := e.parseWebResults(doc, limit)
	log.Printf("🔍 Bing: found %d results for query '%s'", len(results), query)

	return &WebResponse{
		Success:         true,
		Engine:          e.Name(),
		Query:           query,
		TotalResults:    len(results),
		EstimatedTotal:  e.parseEstimatedTotal(doc),
		Page:            page,
		KnowledgeGraph:  e.parseKnowledgeGraph(doc),
		Results:         results,
		RelatedSearches: e.parseRelatedSearches(doc, query),
		PeopleAlsoAsk:   e.parsePeopleAlsoAsk(doc),
		SearchMetadata: Metadata{
			Engine:    e.Name(),
			Query:     query,
			TotalTime: elapsed(start),
			Timestamp: timestamp(),
		},
		ExecutionTime: elapsed(start),
	}, nil
}

// parseWebResults 解析 #b_results 下的 .b_algo 结果块
func (e *BingEngine) parseWebResults(doc *goquery.Document, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)
	position := 0

	doc.Find("#b_results .b_algo").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if position >= limit {
			return false
		}

		titleEl := s.Find("h2 a").First()
		title := strings.TrimSpace(titleEl.Text())
		href, _ := titleEl.Attr("href")

		if title == "" || !strings.HasPrefix(href, "http") {
			return true
		}

		rawSnippet := strings.TrimSpace(s.Find(".b_caption p, .b_algoSlug").First().Text())
		displayURL := strings.TrimSpace(s.Find("cite").First().Text())

		thumbnail := ""
		if src, ok := s.Find("img").First().Attr("src"); ok && strings.HasPrefix(src, "http") {
			thumbnail = src
		} else if src, ok := s.Find("img").First().Attr("data-src"); ok && strings.HasPrefix(src, "http") {
			thumbnail = src
		}

		dateText := strings.TrimSpace(s.Find(".news_dt").First().Text())

		siteLinks := make([]SiteLink, 0, 6)
		s.Find(".b_deep a, .b_vlist2col a").Each(func(j int, link *goquery.Selection) {
			if len(siteLinks) >= 6 {
				return
			}
			linkTitle := strings.TrimSpace(link.Text())
			linkHref, _ := link.Attr("href")
			if linkTitle != "" && strings.HasPrefix(linkHref, "http") {
				siteLinks = append(siteLinks, SiteLink{Title: linkTitle, URL: linkHref})
			}
		})

		date, cleanSnippet := enrich.ExtractDate(rawSnippet)
		if date == "" {
			date = dateText
		}

		position++

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
			Thumbnail:     thumbnail,
			Breadcrumbs:   enrich.Breadcrumbs(href),
			ContentType:   enrich.DetectContentType(title, cleanSnippet, href),
			DatePublished: date,
			SiteLinks:     siteLinks,
			IsSecure:      strings.HasPrefix(href, "https"),
			Engine:        e.Name(),
		}
		result.QualityScore = enrich.QualityScore(position, title, cleanSnippet, href)

		results = append(results, result)
		return true
	})

	return results
}

// parseEstimatedTotal 从 .sb_count 提取预估结果总数
func (e *BingEngine) parseEstimatedTotal(doc *goquery.Document) *int {
	count := strings.TrimSpace(doc.Find(".sb_count").First().Text())
	if count == "" {
		return nil
	}
	m := bingCountRe.FindString(count)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// parseKnowledgeGraph 提取实体卡片
func (e *BingEngine) parseKnowledgeGraph(doc *goquery.Document) *KnowledgeGraph {
	card := doc.Find(".b_entityTP, .lite-entcard-main").First()
	if card.Length() == 0 {
		return nil
	}

	title := strings.TrimSpace(card.Find(".b_entityTitle h2, .enti-title, h2").First().Text())
	if title == "" {
		return nil
	}

	kg := &KnowledgeGraph{
		Type:        "entity",
		Title:       title,
		Subtitle:    strings.TrimSpace(card.Find(".b_entitySubTypes, .enti-subtitle").First().Text()),
		Description: strings.TrimSpace(card.Find(".b_entityDescription, .lite-entcard-desc, .b_snippet").First().Text()),
		Source:      "Bing",
		Attributes:  []Attribute{},
	}

	if src, ok := card.Find("img").First().Attr("src"); ok {
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		if strings.HasPrefix(src, "http") {
			kg.Image = src
		}
	}

	card.Find(".b_vList li").Each(func(i int, item *goquery.Selection) {
		if len(kg.Attributes) >= 10 {
			return
		}
		text := strings.TrimSpace(item.Text())
		label, value, found := strings.Cut(text, ":")
		if !found {
			return
		}
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)
		if label != "" && value != "" {
			kg.Attributes = append(kg.Attributes, Attribute{Label: label, Value: value})
		}
	})

	return kg
}

// parseRelatedSearches 提取相关搜索
func (e *BingEngine) parseRelatedSearches(doc *goquery.Document, query string) []string {
	related := make([]string, 0, 8)
	seen := make(map[string]bool)

	doc.Find(".b_rs a").Each(func(i int, s *goquery.Selection) {
		if len(related) >= 8 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || text == query || seen[text] {
			return
		}
		seen[text] = true
		related = append(related, text)
	})

	return related
}

// parsePeopleAlsoAsk 提取相关问题
func (e *BingEngine) parsePeopleAlsoAsk(doc *goquery.Document) []Question {
	questions := make([]Question, 0, 5)
	seen := make(map[string]bool)

	doc.Find(".df_qas .b_1linetrunc, .qna_header").Each(func(i int, s *goquery.Selection) {
		if len(questions) >= 5 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		questions = append(questions, Question{
			Question: text,
			Link:     "https://www.bing.com/search?q=" + url.QueryEscape(text),
		})
	})

	return questions
}

// SearchImages 执行 Bing 图片搜索，元数据在 .iusc 节点的 m 属性 JSON 里
func (e *BingEngine) SearchImages(ctx context.Context, query string, opts ImageOptions) (*ImageResponse, error) {
	start := time.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("form", "HDRSC2")
	if qft := buildBingImageFilters(opts.Size, opts.Color); qft != "" {
		params.Set("qft", qft)
	}

	doc, err := e.fetchDocument(ctx, e.imagesURL+"?"+params.Encode())
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeImages, err)
	}

	results := make([]ImageResult, 0, limit)
	doc.Find(".iusc").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		meta, ok := s.Attr("m")
		if !ok || meta == "" {
			return true
		}

		var m struct {
			Title     string `json:"t"`
			MediaURL  string `json:"murl"`
			ThumbURL  string `json:"turl"`
			PageURL   string `json:"purl"`
			Width     int    `json:"mw"`
			Height    int    `json:"mh"`
			FileSize  string `json:"fs"`
		}
		if err := json.Unmarshal([]byte(meta), &m); err != nil || m.MediaURL == "" {
			return true
		}

		sourceDomain := enrich.ExtractDomain(m.PageURL)
		results = append(results, ImageResult{
			Position:      len(results) + 1,
			Title:         m.Title,
			ImageURL:      m.MediaURL,
			ThumbnailURL:  m.ThumbURL,
			SourceURL:     m.PageURL,
			Width:         m.Width,
			Height:        m.Height,
			Source:        sourceDomain,
			SourceDomain:  sourceDomain,
			SourceFavicon: enrich.FaviconURL(m.PageURL, "google"),
			Format:        detectImageFormat(m.MediaURL),
			FileSize:      m.FileSize,
			AspectRatio:   aspectRatio(m.Width, m.Height),
			Engine:        e.Name(),
		})
		return true
	})

	log.Printf("🖼️ Bing: found %d images for query '%s'", len(results), query)

	return &ImageResponse{
		Success:      true,
		Engine:       e.Name(),
		Type:         TypeImages,
		Query:        query,
		TotalResults: len(results),
		Results:      results,
		SearchMetadata: Metadata{
			Engine:    e.Name(),
			Query:     query,
			Filters:   imageFilterMeta(opts.Size, opts.Color),
			TotalTime: elapsed(start),
			Timestamp: timestamp(),
		},
		ExecutionTime: elapsed(start),
	}, nil
}

// SearchNews 执行 Bing 新闻搜索
func (e *BingEngine) SearchNews(ctx context.Context, query string, opts NewsOptions) (*NewsResponse, error) {
	start := time.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	if qft := bingFreshness(opts.Freshness); qft != "" {
		params.Set("qft", qft)
	}

	doc, err := e.fetchDocument(ctx, e.newsURL+"?"+params.Encode())
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeNews, err)
	}

	results := make([]NewsResult, 0, limit)
	doc.Find(".news-card, .newsitem").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		titleEl := s.Find("a.title, .news-card-title a, h2 a").First()
		title := strings.TrimSpace(titleEl.Text())
		href, _ := titleEl.Attr("href")
		if title == "" || href == "" {
			return true
		}
		// 站内相对链接补全为绝对地址
		if strings.HasPrefix(href, "/") {
			href = "https://www.bing.com" + href
		}

		snippet := strings.TrimSpace(s.Find(".snippet, .news-card-snippet").First().Text())
		source := strings.TrimSpace(s.Find(".source a, .provider span, cite").First().Text())
		relative := strings.TrimSpace(s.Find("span[tabindex], .source span:last-child").Last().Text())
		thumbnail := ""
		if src, ok := s.Find("img").First().Attr("src"); ok && strings.HasPrefix(src, "http") {
			thumbnail = src
		}

		sourceDomain := enrich.ExtractDomain(href)
		if source == "" {
			source = sourceDomain
		}

		results = append(results, NewsResult{
			Position:      len(results) + 1,
			Title:         title,
			URL:           href,
			Snippet:       snippet,
			Source:        source,
			SourceDomain:  sourceDomain,
			SourceFavicon: enrich.FaviconURL(href, "google"),
			SourceLogo:    enrich.FaviconURL(href, "clearbit"),
			RelativeDate:  relative,
			ImageURL:      thumbnail,
			Thumbnail:     thumbnail,
			Engine:        e.Name(),
		})
		return true
	})

	log.Printf("📰 Bing: found %d news articles for query '%s'", len(results), query)

	return &NewsResponse{
		Success:      true,
		Engine:       e.Name(),
		Type:         TypeNews,
		Query:        query,
		TotalResults: len(results),
		Results:      results,
		SearchMetadata: Metadata{
			Engine:    e.Name(),
			Query:     query,
			Freshness: opts.Freshness,
			TotalTime: elapsed(start),
			Timestamp: timestamp(),
		},
		ExecutionTime: elapsed(start),
	}, nil
}

// Suggest 获取搜索补全建议，响应是 HTML 片段而非 JSON
func (e *BingEngine) Suggest(ctx context.Context, query string) (*SuggestResponse, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("qry", query)
	params.Set("cvid", strings.ReplaceAll(uuid.NewString(), "-", ""))
	params.Set("pt", "page.serp")
	params.Set("mkt", "en-US")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.suggestURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("create request failed: %w", err))
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("parse HTML failed: %w", err))
	}

	texts := make([]string, 0, 10)
	rich := make([]Suggestion, 0, 10)
	seen := make(map[string]bool)
	doc.Find("li").Each(func(i int, s *goquery.Selection) {
		if len(texts) >= 10 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		texts = append(texts, text)
		rich = append(rich, Suggestion{Text: text, Highlighted: highlightMatch(text, query)})
	})

	return &SuggestResponse{
		Success:         true,
		Engine:          e.Name(),
		Query:           query,
		Suggestions:     texts,
		SuggestionsRich: rich,
		ExecutionTime:   elapsed(start),
	}, nil
}

// buildBingImageFilters 拼接 qft 图片过滤参数
func buildBingImageFilters(size, color string) string {
	var filters []string

	sizeMap := map[string]string{"small": "small", "medium": "medium", "large": "large", "wallpaper": "wallpaper"}
	if mapped, ok := sizeMap[size]; ok {
		filters = append(filters, "+filterui:imagesize-"+mapped)
	}
	if color != "" {
		filters = append(filters, "+filterui:color2-FGcls_"+strings.ToUpper(color))
	}

	return strings.Join(filters, "")
}

// bingFreshness 新鲜度映射到 qft 参数
func bingFreshness(freshness string) string {
	switch freshness {
	case "day":
		return `interval="7"`
	case "week":
		return `interval="8"`
	case "month":
		return `interval="9"`
	default:
		return ""
	}
}
