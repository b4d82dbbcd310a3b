package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cliffyan/go-meta-search/internal/enrich"
)

// vqdRe 图片/新闻接口所需的会话令牌，嵌在首次页面响应里
var vqdRe = regexp.MustCompile(`vqd=['"]([^'"]+)['"]`)

// DuckDuckGoEngine DuckDuckGo 搜索引擎实现
type DuckDuckGoEngine struct {
	client     *http.Client
	htmlURL    string
	baseURL    string
	suggestURL string
	instantURL string
}

// NewDuckDuckGoEngine 创建 DuckDuckGo 搜索引擎实例
func NewDuckDuckGoEngine(proxyURL string, timeout time.Duration) *DuckDuckGoEngine {
	return &DuckDuckGoEngine{
		client:     newHTTPClient(proxyURL, timeout),
		htmlURL:    "https://html.duckduckgo.com/html/",
		baseURL:    "https://duckduckgo.com/",
		suggestURL: "https://duckduckgo.com/ac/",
		instantURL: "https://api.duckduckgo.com/",
	}
}

// Name 返回引擎名称
func (e *DuckDuckGoEngine) Name() string {
	return "duckduckgo"
}

// setHeaders 设置请求头
func (e *DuckDuckGoEngine) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// SearchWeb 执行 DuckDuckGo 网页搜索（HTML 版表单接口）
func (e *DuckDuckGoEngine) SearchWeb(ctx context.Context, query string, opts WebOptions) (*WebResponse, error) {
	start := time.Now()
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	region := opts.Region
	if region == "" {
		region = "wt-wt"
	}

	// 即时答案并发获取，失败不算错误
	kgCh := make(chan *KnowledgeGraph, 1)
	go func() {
		kgCh <- e.instantAnswer(ctx, query)
	}()

	form := url.Values{}
	form.Set("q", query)
	form.Set("b", "")
	form.Set("kl", region)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.htmlURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeWeb, fmt.Errorf("create request failed: %w", err))
	}
	e.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeWeb, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamErr(e.Name(), TypeWeb, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeWeb, fmt.Errorf("parse HTML failed: %w", err))
	}

	results := e.parseWebResults(doc, limit)
	log.Printf("🔍 DuckDuckGo: found %d results for query '%s'", len(results), query)

	related := e.parseRelatedSearches(doc, query)

	peopleAlsoAsk := make([]Question, 0, 4)
	for _, q := range related {
		if len(peopleAlsoAsk) >= 4 {
			break
		}
		question := q
		if !strings.HasSuffix(question, "?") {
			question += "?"
		}
		peopleAlsoAsk = append(peopleAlsoAsk, Question{
			Question: question,
			Link:     "https://duckduckgo.com/?q=" + url.QueryEscape(q),
		})
	}

	kg := <-kgCh

	return &WebResponse{
		Success:         true,
		Engine:          e.Name(),
		Query:           query,
		TotalResults:    len(results),
		Page:            page,
		KnowledgeGraph:  kg,
		Results:         results,
		RelatedSearches: related,
		PeopleAlsoAsk:   peopleAlsoAsk,
		SearchMetadata: Metadata{
			Engine:    e.Name(),
			Query:     query,
			TotalTime: elapsed(start),
			Timestamp: timestamp(),
		},
		ExecutionTime: elapsed(start),
	}, nil
}

// parseWebResults 解析网页搜索结果节点
func (e *DuckDuckGoEngine) parseWebResults(doc *goquery.Document, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)
	position := 0

	doc.Find(".result.results_links").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if position >= limit {
			return false
		}

		titleEl := s.Find(".result__a")
		title := strings.TrimSpace(titleEl.Text())
		href, _ := titleEl.Attr("href")

		// 缺少标题或链接的节点静默丢弃，不占位次
		if title == "" || href == "" {
			return true
		}

		cleanURL := unwrapRedirect(href)
		rawSnippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		displayURL := strings.TrimSpace(s.Find(".result__url").Text())

		siteIcon := ""
		if src, ok := s.Find(".result__icon img").Attr("src"); ok && src != "" {
			if strings.HasPrefix(src, "//") {
				src = "https:" + src
			}
			siteIcon = src
		}

		position++

		date, cleanSnippet := enrich.ExtractDate(rawSnippet)

		result := SearchResult{
			Position:      position,
			Title:         title,
			URL:           cleanURL,
			DisplayURL:    displayURL,
			Snippet:       cleanSnippet,
			Domain:        enrich.ExtractDomain(cleanURL),
			Favicon:       enrich.FaviconURL(cleanURL, "google"),
			FaviconHD:     enrich.FaviconURL(cleanURL, "clearbit"),
			SiteName:      enrich.SiteName(cleanURL),
			SiteIcon:      siteIcon,
			Breadcrumbs:   enrich.Breadcrumbs(cleanURL),
			ContentType:   enrich.DetectContentType(title, cleanSnippet, cleanURL),
			DatePublished: date,
			IsSecure:      strings.HasPrefix(cleanURL, "https"),
			Engine:        e.Name(),
		}
		result.QualityScore = enrich.QualityScore(position, title, cleanSnippet, cleanURL)

		results = append(results, result)
		return true
	})

	return results
}

// parseRelatedSearches 提取相关搜索（去重、排除原查询，最多 8 条）
func (e *DuckDuckGoEngine) parseRelatedSearches(doc *goquery.Document, query string) []string {
	related := make([]string, 0, 8)
	seen := make(map[string]bool)

	doc.Find(`.result--related .link-text, .result__a[href*="?q="]`).Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || text == query || seen[text] {
			return
		}
		seen[text] = true
		related = append(related, text)
	})

	if len(related) > 8 {
		related = related[:8]
	}
	return related
}

// unwrapRedirect 解开 DuckDuckGo 的跳转包装链接（uddg 参数）
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	if !strings.Contains(href, "uddg=") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// instantAnswer 查询即时答案接口生成知识面板，不可用时返回 nil
func (e *DuckDuckGoEngine) instantAnswer(ctx context.Context, query string) *KnowledgeGraph {
	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_redirect", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.instantURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("💡 Instant answer not available: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var data struct {
		Type           string `json:"Type"`
		Heading        string `json:"Heading"`
		Abstract       string `json:"Abstract"`
		Answer         string `json:"Answer"`
		AbstractSource string `json:"AbstractSource"`
		AbstractURL    string `json:"AbstractURL"`
		Image          string `json:"Image"`
		Infobox        struct {
			Content []struct {
				Label string `json:"label"`
				Value any    `json:"value"`
			} `json:"content"`
		} `json:"Infobox"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil
	}

	if data.Abstract == "" && data.Answer == "" {
		return nil
	}

	kgType := data.Type
	if kgType == "" {
		kgType = "answer"
	}
	description := data.Abstract
	if description == "" {
		description = data.Answer
	}
	source := data.AbstractSource
	if source == "" {
		source = "DuckDuckGo"
	}
	image := ""
	if data.Image != "" {
		image = "https://duckduckgo.com" + data.Image
	}

	kg := &KnowledgeGraph{
		Type:        kgType,
		Title:       data.Heading,
		Description: description,
		Source:      source,
		SourceURL:   data.AbstractURL,
		Image:       image,
		Attributes:  []Attribute{},
	}

	for _, item := range data.Infobox.Content {
		if item.Label == "" {
			continue
		}
		kg.Attributes = append(kg.Attributes, Attribute{
			Label: item.Label,
			Value: fmt.Sprint(item.Value),
		})
	}

	for _, topic := range data.RelatedTopics {
		if len(kg.RelatedTopics) >= 5 {
			break
		}
		if topic.Text == "" {
			continue
		}
		kg.RelatedTopics = append(kg.RelatedTopics, RelatedTopic{Text: topic.Text, URL: topic.FirstURL})
	}

	return kg
}

// searchToken 抓取初始页面提取 vqd 会话令牌，图片/新闻接口必需
func (e *DuckDuckGoEngine) searchToken(ctx context.Context, query, extra string) (string, error) {
	tokenURL := e.baseURL + "?q=" + url.QueryEscape(query) + extra

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body failed: %w", err)
	}

	m := vqdRe.FindSubmatch(body)
	if m == nil {
		return "", &ParseError{Engine: e.Name(), Reason: "vqd search token not found"}
	}
	return string(m[1]), nil
}

// SearchImages 执行 DuckDuckGo 图片搜索（两段式：先取令牌再查 i.js）
func (e *DuckDuckGoEngine) SearchImages(ctx context.Context, query string, opts ImageOptions) (*ImageResponse, error) {
	start := time.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	vqd, err := e.searchToken(ctx, query, "")
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeImages, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("vqd", vqd)
	params.Set("o", "json")
	params.Set("p", "1")
	params.Set("s", "0")
	params.Set("f", buildDDGImageFilters(opts.Size, opts.Color))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"i.js?"+params.Encode(), nil)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeImages, fmt.Errorf("create request failed: %w", err))
	}
	e.setHeaders(req)
	req.Header.Set("Referer", e.baseURL)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeImages, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamErr(e.Name(), TypeImages, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var data struct {
		Results []struct {
			Title     string `json:"title"`
			Image     string `json:"image"`
			Thumbnail string `json:"thumbnail"`
			URL       string `json:"url"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
			Source    string `json:"source"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, upstreamErr(e.Name(), TypeImages, fmt.Errorf("decode response failed: %w", err))
	}

	results := make([]ImageResult, 0, limit)
	for _, img := range data.Results {
		if len(results) >= limit {
			break
		}
		sourceDomain := enrich.ExtractDomain(img.URL)
		source := img.Source
		if source == "" {
			source = sourceDomain
		}
		results = append(results, ImageResult{
			Position:      len(results) + 1,
			Title:         img.Title,
			ImageURL:      img.Image,
			ThumbnailURL:  img.Thumbnail,
			SourceURL:     img.URL,
			Width:         img.Width,
			Height:        img.Height,
			Source:        source,
			SourceDomain:  sourceDomain,
			SourceFavicon: enrich.FaviconURL(img.URL, "google"),
			Format:        detectImageFormat(img.Image),
			AspectRatio:   aspectRatio(img.Width, img.Height),
			Engine:        e.Name(),
		})
	}

	log.Printf("🖼️ DuckDuckGo: found %d images for query '%s'", len(results), query)

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

// SearchNews 执行 DuckDuckGo 新闻搜索（同样依赖 vqd 令牌）
func (e *DuckDuckGoEngine) SearchNews(ctx context.Context, query string, opts NewsOptions) (*NewsResponse, error) {
	start := time.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	vqd, err := e.searchToken(ctx, query, "&iar=news")
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeNews, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("vqd", vqd)
	params.Set("o", "json")
	params.Set("noamp", "1")
	params.Set("df", opts.Freshness)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"news.js?"+params.Encode(), nil)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeNews, fmt.Errorf("create request failed: %w", err))
	}
	e.setHeaders(req)
	req.Header.Set("Referer", e.baseURL)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeNews, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstreamErr(e.Name(), TypeNews, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var data struct {
		Results []struct {
			Title        string `json:"title"`
			URL          string `json:"url"`
			Excerpt      string `json:"excerpt"`
			Source       string `json:"source"`
			Date         int64  `json:"date"`
			RelativeTime string `json:"relative_time"`
			Image        string `json:"image"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, upstreamErr(e.Name(), TypeNews, fmt.Errorf("decode response failed: %w", err))
	}

	results := make([]NewsResult, 0, limit)
	for _, article := range data.Results {
		if len(results) >= limit {
			break
		}
		sourceDomain := enrich.ExtractDomain(article.URL)
		source := article.Source
		if source == "" {
			source = sourceDomain
		}
		date := ""
		if article.Date > 0 {
			date = strconv.FormatInt(article.Date, 10)
		}
		relative := article.RelativeTime
		if relative == "" && article.Date > 0 {
			relative = relativeFromUnix(article.Date)
		}
		results = append(results, NewsResult{
			Position:      len(results) + 1,
			Title:         article.Title,
			URL:           article.URL,
			Snippet:       article.Excerpt,
			Source:        source,
			SourceDomain:  sourceDomain,
			SourceFavicon: enrich.FaviconURL(article.URL, "google"),
			SourceLogo:    enrich.FaviconURL(article.URL, "clearbit"),
			Date:          date,
			RelativeDate:  relative,
			ImageURL:      article.Image,
			Thumbnail:     article.Image,
			Engine:        e.Name(),
		})
	}

	log.Printf("📰 DuckDuckGo: found %d news articles for query '%s'", len(results), query)

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

// Suggest 获取搜索补全建议
func (e *DuckDuckGoEngine) Suggest(ctx context.Context, query string) (*SuggestResponse, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.suggestURL+"?q="+url.QueryEscape(query), nil)
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

	var items []struct {
		Phrase string `json:"phrase"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("decode response failed: %w", err))
	}

	texts := make([]string, 0, 10)
	rich := make([]Suggestion, 0, 10)
	for _, item := range items {
		if item.Phrase == "" {
			continue
		}
		if len(texts) >= 10 {
			break
		}
		texts = append(texts, item.Phrase)
		rich = append(rich, Suggestion{Text: item.Phrase, Highlighted: highlightMatch(item.Phrase, query)})
	}

	return &SuggestResponse{
		Success:         true,
		Engine:          e.Name(),
		Query:           query,
		Suggestions:     texts,
		SuggestionsRich: rich,
		ExecutionTime:   elapsed(start),
	}, nil
}

// buildDDGImageFilters 将尺寸/颜色过滤器映射为 DuckDuckGo 语法
func buildDDGImageFilters(size, color string) string {
	var filters []string

	sizeMap := map[string]string{"small": "Small", "medium": "Medium", "large": "Large", "wallpaper": "Wallpaper"}
	if mapped, ok := sizeMap[size]; ok {
		filters = append(filters, "size:"+mapped)
	}
	if color != "" {
		filters = append(filters, "color:"+color)
	}

	return strings.Join(filters, ",")
}

// imageFilterMeta 过滤条件写进元数据
func imageFilterMeta(size, color string) map[string]string {
	if size == "" && color == "" {
		return nil
	}
	meta := make(map[string]string)
	if size != "" {
		meta["size"] = size
	}
	if color != "" {
		meta["color"] = color
	}
	return meta
}

// relativeFromUnix 根据 unix 时间戳计算相对时间描述
func relativeFromUnix(sec int64) string {
	diff := time.Since(time.Unix(sec, 0))
	if diff < 0 {
		return ""
	}
	mins := int(diff.Minutes())
	hours := int(diff.Hours())
	days := hours / 24
	switch {
	case mins < 60:
		return fmt.Sprintf("%d minutes ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d hours ago", hours)
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	default:
		return fmt.Sprintf("%d months ago", days/30)
	}
}
