package enrich

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// 内容类型枚举
const (
	ContentVideo         = "video"
	ContentArticle       = "article"
	ContentDocumentation = "documentation"
	ContentForum         = "forum"
	ContentProduct       = "product"
	ContentSocial        = "social"
	ContentWiki          = "wiki"
	ContentWebsite       = "website"
)

// trustedDomains 质量评分使用的可信域名列表
var trustedDomains = []string{"wikipedia.org", "github.com", "stackoverflow.com", "mozilla.org", "w3.org"}

// datePatterns 片段开头的日期模式（按优先级排列，首个匹配生效）
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4})\s*[—–-]\s*`),
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4})\s*[—–-]\s*`),
	regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*[—–-]\s*`),
	regexp.MustCompile(`(?i)^(hace?\s+\d+\s+(?:hora|día|semana|mes|año)s?)\s*[—–-]\s*`),
	regexp.MustCompile(`(?i)^(\d+\s+(?:hour|day|week|month|year)s?\s+ago)\s*[—–-]\s*`),
}

// pathSuffixRe 面包屑里需要剥离的页面扩展名
var pathSuffixRe = regexp.MustCompile(`(?i)\.(html|php|aspx?)$`)

// ExtractDomain 从 URL 提取主机名，解析失败时原样返回输入（不报错）
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}

// FaviconURL 根据提供商生成站点图标 URL，未知提供商回退到 google。
// 纯查表，不发起网络请求。
func FaviconURL(rawURL, provider string) string {
	domain := ExtractDomain(rawURL)
	switch provider {
	case "horse":
		return "https://icon.horse/icon/" + domain
	case "faviconkit":
		return "https://api.faviconkit.com/" + domain + "/128"
	case "clearbit":
		return "https://logo.clearbit.com/" + domain
	case "duckduckgo":
		return "https://icons.duckduckgo.com/ip3/" + domain + ".ico"
	default:
		return "https://www.google.com/s2/favicons?domain=" + domain + "&sz=128"
	}
}

// SiteName 从 URL 推导站点显示名：去掉 www. 前缀，取第一个标签并首字母大写
func SiteName(rawURL string) string {
	domain := ExtractDomain(rawURL)
	domain = strings.TrimPrefix(domain, "www.")
	main, _, _ := strings.Cut(domain, ".")
	return capitalize(main)
}

// Breadcrumbs 根据 URL 路径生成面包屑：首项为主机名，路径段清洗后最多 4 项。
// URL 解析失败返回空切片。
func Breadcrumbs(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return []string{}
	}

	path := u.Path
	if path == "" || path == "/" {
		return []string{u.Hostname()}
	}

	crumbs := []string{u.Hostname()}
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		part = strings.NewReplacer("-", " ", "_", " ").Replace(part)
		part = pathSuffixRe.ReplaceAllString(part, "")
		words := strings.Split(part, " ")
		for i, w := range words {
			words[i] = capitalize(w)
		}
		crumbs = append(crumbs, strings.Join(words, " "))
	}

	if len(crumbs) > 4 {
		crumbs = crumbs[:4]
	}
	return crumbs
}

// DetectContentType 根据 URL/标题的子串规则判断内容类型，规则按固定顺序匹配
func DetectContentType(title, snippet, rawURL string) string {
	title = strings.ToLower(title)
	u := strings.ToLower(rawURL)

	switch {
	case strings.Contains(u, "youtube.com") || strings.Contains(u, "vimeo.com") ||
		strings.Contains(u, "dailymotion.com") || strings.Contains(title, "video"):
		return ContentVideo
	case strings.Contains(u, "/blog/") || strings.Contains(u, "/article/") ||
		strings.Contains(u, "/post/") || strings.Contains(u, "/news/"):
		return ContentArticle
	case strings.Contains(u, "/docs/") || strings.Contains(u, "/documentation/") ||
		strings.Contains(u, "/api/") || strings.Contains(u, "/reference/"):
		return ContentDocumentation
	case strings.Contains(u, "stackoverflow.com") || strings.Contains(u, "reddit.com") ||
		strings.Contains(u, "quora.com") || strings.Contains(u, "/forum/"):
		return ContentForum
	case strings.Contains(u, "amazon.") || strings.Contains(u, "ebay.") ||
		strings.Contains(u, "/shop/") || strings.Contains(u, "/product/"):
		return ContentProduct
	case strings.Contains(u, "twitter.com") || strings.Contains(u, "facebook.com") ||
		strings.Contains(u, "linkedin.com") || strings.Contains(u, "instagram.com"):
		return ContentSocial
	case strings.Contains(u, "wikipedia.org") || strings.Contains(u, "wiki"):
		return ContentWiki
	default:
		return ContentWebsite
	}
}

// ExtractDate 尝试从片段开头提取内嵌日期，命中时剥离日期前缀返回干净片段。
// 未命中时 date 为空字符串，片段原样返回。
func ExtractDate(snippet string) (date, cleanSnippet string) {
	if snippet == "" {
		return "", snippet
	}
	for _, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(snippet)
		if m != nil {
			return m[1], strings.TrimSpace(snippet[len(m[0]):])
		}
	}
	return "", snippet
}

// QualityScore 启发式质量评分：基础 50 分，按独立加分项累加，上限 100
func QualityScore(position int, title, snippet, rawURL string) int {
	score := 50
	if strings.HasPrefix(rawURL, "https") {
		score += 10
	}
	if len(snippet) > 50 {
		score += 10
	}
	if len(title) > 20 && len(title) < 100 {
		score += 10
	}
	for _, d := range trustedDomains {
		if strings.Contains(rawURL, d) {
			score += 15
			break
		}
	}
	if position <= 3 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
