package enrich

import (
	"reflect"
	"testing"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"https url", "https://www.example.com/page", "www.example.com"},
		{"with port", "https://example.com:8080/page", "example.com"},
		{"no scheme", "not a url at all", "not a url at all"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDomain(tt.url); got != tt.want {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestFaviconURL(t *testing.T) {
	rawURL := "https://example.com/page"

	tests := []struct {
		provider string
		want     string
	}{
		{"horse", "https://icon.horse/icon/example.com"},
		{"faviconkit", "https://api.faviconkit.com/example.com/128"},
		{"clearbit", "https://logo.clearbit.com/example.com"},
		{"duckduckgo", "https://icons.duckduckgo.com/ip3/example.com.ico"},
		{"google", "https://www.google.com/s2/favicons?domain=example.com&sz=128"},
		{"unknown-provider", "https://www.google.com/s2/favicons?domain=example.com&sz=128"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			if got := FaviconURL(rawURL, tt.provider); got != tt.want {
				t.Errorf("FaviconURL(%q, %q) = %q, want %q", rawURL, tt.provider, got, tt.want)
			}
		})
	}
}

func TestSiteName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.github.com/user/repo", "Github"},
		{"https://stackoverflow.com/questions", "Stackoverflow"},
		{"https://docs.example.co.uk", "Docs"},
	}
	for _, tt := range tests {
		if got := SiteName(tt.url); got != tt.want {
			t.Errorf("SiteName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestBreadcrumbs(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want []string
	}{
		{
			"path with dashes and extension",
			"https://example.com/foo-bar/my_page.html",
			[]string{"example.com", "Foo Bar", "My Page"},
		},
		{
			"root path",
			"https://example.com/",
			[]string{"example.com"},
		},
		{
			"empty path",
			"https://example.com",
			[]string{"example.com"},
		},
		{
			"truncated to four crumbs",
			"https://example.com/a/b/c/d/e",
			[]string{"example.com", "A", "B", "C"},
		},
		{
			"no host",
			"not-a-url",
			[]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Breadcrumbs(tt.url); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Breadcrumbs(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		want  string
	}{
		{"youtube host", "Cat compilation", "https://www.youtube.com/watch?v=x", ContentVideo},
		{"video in title", "Best video tutorial", "https://example.com/page", ContentVideo},
		{"blog path", "Post", "https://example.com/blog/hello", ContentArticle},
		{"docs path", "Reference", "https://example.com/docs/install", ContentDocumentation},
		{"stackoverflow", "How do I", "https://stackoverflow.com/questions/1", ContentForum},
		{"amazon product", "Buy now", "https://amazon.com/dp/B01", ContentProduct},
		{"twitter", "Tweet", "https://twitter.com/user/status/1", ContentSocial},
		{"wikipedia", "Go", "https://en.wikipedia.org/wiki/Go", ContentWiki},
		{"plain site", "Home", "https://example.com/about", ContentWebsite},
		// 视频规则在文章规则之前，命中即停
		{"video wins over blog path", "video guide", "https://example.com/blog/x", ContentVideo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectContentType(tt.title, "", tt.url); got != tt.want {
				t.Errorf("DetectContentType(%q, %q) = %q, want %q", tt.title, tt.url, got, tt.want)
			}
		})
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name        string
		snippet     string
		wantDate    string
		wantSnippet string
	}{
		{
			"month name date",
			"15 Mar 2024 — The quick brown fox jumps over the lazy dog.",
			"15 Mar 2024",
			"The quick brown fox jumps over the lazy dog.",
		},
		{
			"slash date",
			"3/15/2024 - Something happened today.",
			"3/15/2024",
			"Something happened today.",
		},
		{
			"iso date",
			"2024-03-15 — Release notes for the new version.",
			"2024-03-15",
			"Release notes for the new version.",
		},
		{
			"relative english",
			"2 days ago — Fresh news from the wire.",
			"2 days ago",
			"Fresh news from the wire.",
		},
		{
			"relative spanish",
			"hace 3 días — Noticias recientes.",
			"hace 3 días",
			"Noticias recientes.",
		},
		{
			"no date prefix",
			"Just a plain snippet without any date.",
			"",
			"Just a plain snippet without any date.",
		},
		{
			"date in middle is ignored",
			"Published 15 Mar 2024 in the journal.",
			"",
			"Published 15 Mar 2024 in the journal.",
		},
		{
			"empty snippet",
			"",
			"",
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, clean := ExtractDate(tt.snippet)
			if date != tt.wantDate {
				t.Errorf("ExtractDate(%q) date = %q, want %q", tt.snippet, date, tt.wantDate)
			}
			if clean != tt.wantSnippet {
				t.Errorf("ExtractDate(%q) snippet = %q, want %q", tt.snippet, clean, tt.wantSnippet)
			}
		})
	}
}

func TestQualityScore(t *testing.T) {
	longSnippet := "This snippet is definitely longer than fifty characters in total length."
	goodTitle := "A reasonably descriptive title"

	tests := []struct {
		name     string
		position int
		title    string
		snippet  string
		url      string
		want     int
	}{
		{"base only", 10, "short", "tiny", "http://example.com", 50},
		{"https adds ten", 10, "short", "tiny", "https://example.com", 60},
		{"all bonuses clamp at 100", 1, goodTitle, longSnippet, "https://en.wikipedia.org/wiki/Go", 100},
		{"trusted domain", 10, "short", "tiny", "https://github.com/user", 75},
		{"top position", 3, "short", "tiny", "http://example.com", 55},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QualityScore(tt.position, tt.title, tt.snippet, tt.url); got != tt.want {
				t.Errorf("QualityScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQualityScoreHTTPSMonotonic(t *testing.T) {
	insecure := QualityScore(5, "title", "snippet", "http://example.com/a")
	secure := QualityScore(5, "title", "snippet", "https://example.com/a")
	if secure <= insecure {
		t.Errorf("https score %d should exceed http score %d", secure, insecure)
	}
}
