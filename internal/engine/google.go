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

	"github.com/cliffyan/go-meta-search/internal/enrich"
)

var (
	// estimatedTotalRe 匹配 "About 1,234,567 results" 里的数字
	estimatedTotalRe = regexp.MustCompile(`[\d,]+`)
	// googleImageRe 从内联脚本里提取 [url, width, height] 三元组
	googleImageRe = regexp.MustCompile(`(?i)\["(https?://[^"]+\.(?:jpg|jpeg|png|gif|webp)[^"]*)",\s*(\d+),\s*(\d+)\]`)
	// googleDatePrefixRe 摘要开头的 "Mar 15, 2024 — " 日期前缀
	googleDatePrefixRe = regexp.MustCompile(`^([A-Za-z]{3} \d{1,2}, \d{4})\s*[—–-]\s*`)
)

// googleResultSelectors 结果容器候选选择器，页面结构经常变动
const googleResultSelectors = "div.g, div[data-sokoban-container], div.SoaBEf, div.MjjYud"

// GoogleEngine Google 搜索引擎实现（静态 HTML 抓取）
type GoogleEngine struct {
	client     *http.Client
	baseURL    string
	suggestURL string
}

// NewGoogleEngine 创建 Google 搜索引擎实例
func NewGoogleEngine(proxyURL string, timeout time.Duration) *GoogleEngine {
	return &GoogleEngine{
		client:     newHTTPClient(proxyURL, timeout),
		baseURL:    "https://www.google.com/search",
		suggestURL: "https://suggestqueries.google.com/complete/search",
	}
}

// Name 返回引擎名称
func (e *GoogleEngine) Name() string {
	return "google"
}

// setHeaders 设置请求头，带上 Chrome 的 client hints 降低被拦截概率
func (e *GoogleEngine) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// fetchDocument 请求并解析搜索结果页
func (e *GoogleEngine) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
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

// SearchWeb 执行 Google 网页搜索
func (e *GoogleEngine) SearchWeb(ctx context.Context, query string, opts WebOptions) (*WebResponse, error) {
	start := time.Now()
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	lang := opts.Lang
	if lang == "" {
		lang = "en"
	}
	country := opts.Country
	if country == "" {
		country = "us"
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("start", strconv.Itoa((page-1)*10))
	params.Set("num", strconv.Itoa(min(limit, 10)))
	params.Set("hl", lang)
	params.Set("gl", country)
	params.Set("safe", "off")

	doc, err := e.fetchDocument(ctx, e.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeWeb, err)
	}

	results := e.parseWebResults(doc, limit)
	log.Printf("🔍 Google: found %d results for query '%s'", len(results), query)

	return &WebResponse{
		Success:         true,
		Engine:          e.Name(),
		Query:           query,
		TotalResults:    len(results),
		EstimatedTotal:  e.parseEstimatedTotal(doc),
		Page:            page,
		KnowledgeGraph:  e.parseKnowledgeGraph(doc),
		FeaturedSnippet: e.parseFeaturedSnippet(doc),
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

// parseWebResults 从结果页提取规范化结果
func (e *GoogleEngine) parseWebResults(doc *goquery.Document, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)
	position := 0

	doc.Find(googleResultSelectors).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if position >= limit {
			return false
		}

		// 广告、知识面板内部节点和嵌套容器都跳过
		if s.Find("[data-text-ad]").Length() > 0 {
			return true
		}
		if s.Closest(".kp-wholepage").Length() > 0 {
			return true
		}
		if s.ParentsFiltered(googleResultSelectors).Length() > 0 {
			return true
		}

		title := strings.TrimSpace(s.Find("h3").First().Text())
		href, _ := s.Find(`a[href^="http"]`).First().Attr("href")

		if title == "" || !strings.HasPrefix(href, "http") || strings.Contains(href, "google.com/search") {
			return true
		}

		rawSnippet := strings.TrimSpace(s.Find(".VwiC3b, .yXK7lf, .lEBKkf, .s3v9rd, .st").First().Text())

		thumbnail := ""
		if src, ok := s.Find("img[src^='http'], img[data-src^='http']").First().Attr("src"); ok {
			thumbnail = src
		}

		dateText := strings.TrimSpace(s.Find(".LEwnzc, .f, .MUxGbd.wuQ4Ob").First().Text())

		siteLinks := make([]SiteLink, 0, 6)
		s.Find(".usJj9c a, .HiHjCd a").Each(func(j int, link *goquery.Selection) {
			if len(siteLinks) >= 6 {
				return
			}
			linkTitle := strings.TrimSpace(link.Text())
			linkHref, _ := link.Attr("href")
			if linkTitle != "" && strings.HasPrefix(linkHref, "http") {
				siteLinks = append(siteLinks, SiteLink{Title: linkTitle, URL: linkHref})
			}
		})

		// 摘要开头可能带 "Mar 15, 2024 — " 式日期前缀
		if m := googleDatePrefixRe.FindStringSubmatch(rawSnippet); m != nil {
			if dateText == "" {
				dateText = m[1]
			}
			rawSnippet = strings.TrimSpace(rawSnippet[len(m[0]):])
		}
		date, cleanSnippet := enrich.ExtractDate(rawSnippet)
		if date == "" {
			date = dateText
		}

		position++

		result := SearchResult{
			Position:      position,
			Title:         title,
			URL:           href,
			DisplayURL:    formatDisplayURL(href),
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

// parseEstimatedTotal 从 "#result-stats" 提取预估结果总数
func (e *GoogleEngine) parseEstimatedTotal(doc *goquery.Document) *int {
	stats := strings.TrimSpace(doc.Find("#result-stats").Text())
	if stats == "" {
		return nil
	}
	m := estimatedTotalRe.FindString(stats)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// parseKnowledgeGraph 提取知识面板
func (e *GoogleEngine) parseKnowledgeGraph(doc *goquery.Document) *KnowledgeGraph {
	panel := doc.Find(`.kp-wholepage, .knowledge-panel`).First()
	if panel.Length() == 0 {
		return nil
	}

	title := strings.TrimSpace(panel.Find(`[data-attrid="title"], h2[data-attrid], .qrShPb`).First().Text())
	if title == "" {
		return nil
	}

	kg := &KnowledgeGraph{
		Type:        "entity",
		Title:       title,
		Subtitle:    strings.TrimSpace(panel.Find(`[data-attrid="subtitle"], .wwUB2c`).First().Text()),
		Description: strings.TrimSpace(panel.Find(`[data-attrid="description"] span, .kno-rdesc span`).First().Text()),
		Source:      "Google",
		Attributes:  []Attribute{},
	}

	if src, ok := panel.Find("g-img img, .kp-header img").First().Attr("src"); ok && strings.HasPrefix(src, "http") {
		kg.Image = src
	}
	if href, ok := panel.Find(`[data-attrid="description"] a, .kno-rdesc a`).First().Attr("href"); ok {
		kg.SourceURL = href
	}

	panel.Find(`[data-attrid]:not([data-attrid="title"]):not([data-attrid="subtitle"]):not([data-attrid="description"])`).Each(func(i int, attr *goquery.Selection) {
		id, _ := attr.Attr("data-attrid")
		if strings.Contains(id, "action") {
			return
		}
		value := strings.TrimSpace(attr.Text())
		if value == "" || len(kg.Attributes) >= 10 {
			return
		}
		segs := strings.Split(id, "/")
		label := segs[len(segs)-1]
		label = strings.ReplaceAll(label, "_", " ")
		kg.Attributes = append(kg.Attributes, Attribute{Label: capitalizeWords(label), Value: value})
	})

	return kg
}

// parseFeaturedSnippet 提取精选摘要
func (e *GoogleEngine) parseFeaturedSnippet(doc *goquery.Document) *FeaturedSnippet {
	block := doc.Find(`.xpdopen .LGOjhe, .IZ6rdc, [data-attrid="wa:/description"]`).First()
	if block.Length() == 0 {
		return nil
	}
	content := strings.TrimSpace(block.Text())
	if content == "" {
		return nil
	}

	fs := &FeaturedSnippet{
		Type:    "paragraph",
		Content: content,
	}
	container := block.Closest(".xpdopen")
	if container.Length() > 0 {
		fs.Title = strings.TrimSpace(container.Find("h3").First().Text())
		if href, ok := container.Find(`a[href^="http"]`).First().Attr("href"); ok {
			fs.URL = href
			fs.Source = enrich.ExtractDomain(href)
		}
	}
	return fs
}

// parseRelatedSearches 提取相关搜索
func (e *GoogleEngine) parseRelatedSearches(doc *goquery.Document, query string) []string {
	related := make([]string, 0, 8)
	seen := make(map[string]bool)

	doc.Find(`a[href*="/search?q="]`).Each(func(i int, s *goquery.Selection) {
		if len(related) >= 8 {
			return
		}
		href, _ := s.Attr("href")
		if strings.Contains(href, "&start=") {
			return
		}
		text := strings.TrimSpace(s.Text())
		if len(text) <= 2 || len(text) >= 100 || text == query || seen[text] {
			return
		}
		seen[text] = true
		related = append(related, text)
	})

	return related
}

// parsePeopleAlsoAsk 提取相关问题
func (e *GoogleEngine) parsePeopleAlsoAsk(doc *goquery.Document) []Question {
	questions := make([]Question, 0, 5)
	seen := make(map[string]bool)

	doc.Find(`.related-question-pair, .xpc [data-q]`).Each(func(i int, s *goquery.Selection) {
		if len(questions) >= 5 {
			return
		}
		text, ok := s.Attr("data-q")
		if !ok || text == "" {
			text = strings.TrimSpace(s.Text())
		}
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		questions = append(questions, Question{
			Question: text,
			Link:     "https://www.google.com/search?q=" + url.QueryEscape(text),
		})
	})

	return questions
}

// SearchImages 执行 Google 图片搜索，结果从内联脚本里按正则提取
func (e *GoogleEngine) SearchImages(ctx context.Context, query string, opts ImageOptions) (*ImageResponse, error) {
	start := time.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("tbm", "isch")
	if tbs := buildGoogleImageFilters(opts.Size, opts.Color); tbs != "" {
		params.Set("tbs", tbs)
	}

	doc, err := e.fetchDocument(ctx, e.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeImages, err)
	}

	results := make([]ImageResult, 0, limit)
	seen := make(map[string]bool)

	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}
		for _, m := range googleImageRe.FindAllStringSubmatch(s.Text(), -1) {
			if len(results) >= limit {
				break
			}
			// 内联脚本中的 URL 带 JS 转义序列，先还原
			imageURL := strings.ReplaceAll(m[1], `\u003d`, "=")
			imageURL = strings.ReplaceAll(imageURL, `\u0026`, "&")

			width, _ := strconv.Atoi(m[2])
			height, _ := strconv.Atoi(m[3])
			if width <= 100 || height <= 100 || strings.Contains(imageURL, "gstatic.com") {
				continue
			}
			if seen[imageURL] {
				continue
			}
			seen[imageURL] = true

			sourceDomain := enrich.ExtractDomain(imageURL)
			results = append(results, ImageResult{
				Position:      len(results) + 1,
				ImageURL:      imageURL,
				ThumbnailURL:  imageURL,
				SourceURL:     imageURL,
				Width:         width,
				Height:        height,
				Source:        sourceDomain,
				SourceDomain:  sourceDomain,
				SourceFavicon: enrich.FaviconURL(imageURL, "google"),
				Format:        detectImageFormat(imageURL),
				AspectRatio:   aspectRatio(width, height),
				Engine:        e.Name(),
			})
		}
		return true
	})

	log.Printf("🖼️ Google: found %d images for query '%s'", len(results), query)

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

// SearchNews 执行 Google 新闻搜索（tbm=nws）
func (e *GoogleEngine) SearchNews(ctx context.Context, query string, opts NewsOptions) (*NewsResponse, error) {
	start := time.Now()
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("tbm", "nws")
	params.Set("hl", "en")
	if tbs := googleFreshness(opts.Freshness); tbs != "" {
		params.Set("tbs", tbs)
	}

	doc, err := e.fetchDocument(ctx, e.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, upstreamErr(e.Name(), TypeNews, err)
	}

	results := make([]NewsResult, 0, limit)
	doc.Find("div.SoaBEf, div.dbsr, .WlydOe").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		title := strings.TrimSpace(s.Find("div[role='heading'], .n0jPhd, .mCBkyc").First().Text())
		href, _ := s.Find("a[href^='http']").First().Attr("href")
		if href == "" {
			href, _ = s.Closest("a[href^='http']").Attr("href")
		}
		if title == "" || href == "" {
			return true
		}

		snippet := strings.TrimSpace(s.Find(".GI74Re, .Y3v8qd, .s3v9rd").First().Text())
		source := strings.TrimSpace(s.Find(".NUnG9d, .CEMjEf, .MgUUmf span").First().Text())
		relative := strings.TrimSpace(s.Find(".OSrXXb span, .WG9SHc span, .ZE0LJd span").First().Text())
		thumbnail := ""
		if src, ok := s.Find("img[src^='http'], img[data-src^='http']").First().Attr("src"); ok {
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

	log.Printf("📰 Google: found %d news articles for query '%s'", len(results), query)

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

// Suggest 获取搜索补全建议（firefox 客户端返回纯 JSON）
func (e *GoogleEngine) Suggest(ctx context.Context, query string) (*SuggestResponse, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, suggestTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("client", "firefox")
	params.Set("hl", "en")
	params.Set("q", query)

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

	// 响应形如 ["query", ["s1", "s2", ...]]
	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("decode response failed: %w", err))
	}
	var phrases []string
	if len(payload) > 1 {
		if err := json.Unmarshal(payload[1], &phrases); err != nil {
			return nil, upstreamErr(e.Name(), TypeSuggest, fmt.Errorf("decode suggestions failed: %w", err))
		}
	}

	texts := make([]string, 0, 10)
	rich := make([]Suggestion, 0, 10)
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if len(texts) >= 10 {
			break
		}
		texts = append(texts, phrase)
		rich = append(rich, Suggestion{Text: phrase, Highlighted: highlightMatch(phrase, query)})
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

// buildGoogleImageFilters 拼接 tbs 图片过滤参数
func buildGoogleImageFilters(size, color string) string {
	var filters []string

	sizeMap := map[string]string{"small": "isz:s", "medium": "isz:m", "large": "isz:l"}
	if mapped, ok := sizeMap[size]; ok {
		filters = append(filters, mapped)
	}
	if color != "" {
		filters = append(filters, "ic:specific,isc:"+color)
	}

	return strings.Join(filters, ",")
}

// googleFreshness 新鲜度映射到 qdr 参数
func googleFreshness(freshness string) string {
	switch freshness {
	case "day":
		return "qdr:d"
	case "week":
		return "qdr:w"
	case "month":
		return "qdr:m"
	default:
		return ""
	}
}

// formatDisplayURL 生成省略协议的展示链接，过长时截断
func formatDisplayURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	display := u.Host + u.Path
	if len(display) > 60 {
		display = display[:60] + "..."
	}
	return display
}

// capitalizeWords 每个单词首字母大写
func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
