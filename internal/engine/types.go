package engine

import "context"

// 搜索类型标识，用于缓存键
const (
	TypeWeb     = "web"
	TypeImages  = "images"
	TypeNews    = "news"
	TypeSuggest = "suggest"
)

// SearchResult 规范化后的网页搜索结果
type SearchResult struct {
	Position      int        `json:"position"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	DisplayURL    string     `json:"displayUrl"`
	Snippet       string     `json:"snippet"`
	Domain        string     `json:"domain"`
	Favicon       string     `json:"favicon"`
	FaviconHD     string     `json:"faviconHD"`
	SiteName      string     `json:"siteName"`
	SiteIcon      string     `json:"siteIcon,omitempty"`
	Thumbnail     string     `json:"thumbnail,omitempty"`
	Breadcrumbs   []string   `json:"breadcrumbs"`
	ContentType   string     `json:"contentType"`
	DatePublished string     `json:"datePublished,omitempty"`
	SiteLinks     []SiteLink `json:"siteLinks,omitempty"`
	IsSecure      bool       `json:"isSecure"`
	QualityScore  int        `json:"qualityScore"`
	Engine        string     `json:"engine"`
}

// SiteLink 结果下挂的站内链接
type SiteLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ImageResult 规范化后的图片搜索结果
type ImageResult struct {
	Position      int    `json:"position"`
	Title         string `json:"title"`
	ImageURL      string `json:"imageUrl"`
	ThumbnailURL  string `json:"thumbnailUrl"`
	SourceURL     string `json:"sourceUrl"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Source        string `json:"source"`
	SourceDomain  string `json:"sourceDomain"`
	SourceFavicon string `json:"sourceFavicon"`
	Format        string `json:"format"`
	FileSize      string `json:"fileSize,omitempty"`
	AspectRatio   string `json:"aspectRatio,omitempty"`
	Engine        string `json:"engine"`
}

// NewsResult 规范化后的新闻搜索结果
type NewsResult struct {
	Position      int    `json:"position"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	Source        string `json:"source"`
	SourceDomain  string `json:"sourceDomain"`
	SourceFavicon string `json:"sourceFavicon"`
	SourceLogo    string `json:"sourceLogo"`
	Date          string `json:"date"`
	RelativeDate  string `json:"relativeDate,omitempty"`
	ImageURL      string `json:"imageUrl"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	Engine        string `json:"engine"`
}

// Attribute 知识面板属性对
type Attribute struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// RelatedTopic 知识面板关联主题
type RelatedTopic struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// KnowledgeGraph 提供商返回的知识面板，标题为空时整体缺省
type KnowledgeGraph struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Subtitle      string         `json:"subtitle,omitempty"`
	Description   string         `json:"description,omitempty"`
	Image         string         `json:"image,omitempty"`
	Source        string         `json:"source,omitempty"`
	SourceURL     string         `json:"sourceUrl,omitempty"`
	Attributes    []Attribute    `json:"attributes"`
	RelatedTopics []RelatedTopic `json:"relatedTopics,omitempty"`
}

// FeaturedSnippet 精选摘要块
type FeaturedSnippet struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Question 相关问题条目
type Question struct {
	Question string `json:"question"`
	Link     string `json:"link,omitempty"`
}

// Metadata 响应附带的检索元信息
type Metadata struct {
	Engine                string            `json:"engine"`
	Query                 string            `json:"query"`
	RequestID             string            `json:"requestId,omitempty"`
	Filters               map[string]string `json:"filters,omitempty"`
	Freshness             string            `json:"freshness,omitempty"`
	EstimatedTotalResults *int              `json:"estimatedTotalResults,omitempty"`
	TotalTime             string            `json:"totalTime"`
	Timestamp             string            `json:"timestamp"`
}

// WebResponse 网页搜索响应
type WebResponse struct {
	Success         bool             `json:"success"`
	Engine          string           `json:"engine"`
	Query           string           `json:"query"`
	TotalResults    int              `json:"totalResults"`
	EstimatedTotal  *int             `json:"estimatedTotal"`
	Page            int              `json:"page"`
	KnowledgeGraph  *KnowledgeGraph  `json:"knowledgeGraph"`
	FeaturedSnippet *FeaturedSnippet `json:"featuredSnippet,omitempty"`
	Results         []SearchResult   `json:"results"`
	RelatedSearches []string         `json:"relatedSearches"`
	PeopleAlsoAsk   []Question       `json:"peopleAlsoAsk"`
	SearchMetadata  Metadata         `json:"searchMetadata"`
	ExecutionTime   string           `json:"executionTime"`
	Cached          bool             `json:"cached"`
}

// ImageResponse 图片搜索响应
type ImageResponse struct {
	Success        bool          `json:"success"`
	Engine         string        `json:"engine"`
	Type           string        `json:"type"`
	Query          string        `json:"query"`
	TotalResults   int           `json:"totalResults"`
	Results        []ImageResult `json:"results"`
	SearchMetadata Metadata      `json:"searchMetadata"`
	ExecutionTime  string        `json:"executionTime"`
	Cached         bool          `json:"cached"`
}

// NewsResponse 新闻搜索响应
type NewsResponse struct {
	Success        bool         `json:"success"`
	Engine         string       `json:"engine"`
	Type           string       `json:"type"`
	Query          string       `json:"query"`
	TotalResults   int          `json:"totalResults"`
	Results        []NewsResult `json:"results"`
	SearchMetadata Metadata     `json:"searchMetadata"`
	ExecutionTime  string       `json:"executionTime"`
	Cached         bool         `json:"cached"`
}

// Highlight 补全建议中查询子串的三段切分
type Highlight struct {
	Before string `json:"before"`
	Match  string `json:"match"`
	After  string `json:"after"`
}

// Suggestion 带高亮切分的补全建议
type Suggestion struct {
	Text        string    `json:"text"`
	Highlighted Highlight `json:"highlighted"`
}

// SuggestResponse 搜索补全响应
type SuggestResponse struct {
	Success         bool         `json:"success"`
	Engine          string       `json:"engine"`
	Query           string       `json:"query"`
	Suggestions     []string     `json:"suggestions"`
	SuggestionsRich []Suggestion `json:"suggestionsRich"`
	ExecutionTime   string       `json:"executionTime"`
	Cached          bool         `json:"cached"`
}

// WebOptions 网页搜索选项
type WebOptions struct {
	Page    int
	Limit   int
	Region  string
	Lang    string
	Country string
	Market  string
	Safe    string
}

// ImageOptions 图片搜索选项
type ImageOptions struct {
	Limit int
	Size  string
	Color string
}

// NewsOptions 新闻搜索选项
type NewsOptions struct {
	Limit     int
	Freshness string
}

// SearchEngine 搜索引擎能力集接口，每个提供商一个实现。
// 四个操作相互独立，任意一个失败不影响其他操作。
type SearchEngine interface {
	// Name 返回引擎名称
	Name() string
	// SearchWeb 执行网页搜索
	SearchWeb(ctx context.Context, query string, opts WebOptions) (*WebResponse, error)
	// SearchImages 执行图片搜索
	SearchImages(ctx context.Context, query string, opts ImageOptions) (*ImageResponse, error)
	// SearchNews 执行新闻搜索
	SearchNews(ctx context.Context, query string, opts NewsOptions) (*NewsResponse, error)
	// Suggest 获取搜索补全建议
	Suggest(ctx context.Context, query string) (*SuggestResponse, error)
}
