package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const bingResultHTML = `<html><body>
<div class="sb_count">1,230,000 results</div>
<ol id="b_results">
  <li class="b_algo">
    <h2><a href="https://example.com/docs/install">Installation Guide</a></h2>
    <div class="b_caption">
      <p>2024-03-15 — Step by step installation instructions for the toolchain.</p>
      <cite>example.com/docs/install</cite>
    </div>
    <div class="b_deep">
      <a href="https://example.com/docs/windows">Windows</a>
      <a href="https://example.com/docs/linux">Linux</a>
    </div>
  </li>
  <li class="b_algo">
    <h2><a href="https://second.example.org/page">Second Result</a></h2>
    <div class="b_caption"><p>Another result snippet.</p></div>
  </li>
  <li class="b_algo">
    <h2><a href="javascript:void(0)">Broken Link</a></h2>
  </li>
</ol>
<div class="b_rs">
  <a href="/search?q=related+one">related one</a>
  <a href="/search?q=related+two">related two</a>
</div>
</body></html>`

func newBingTestEngine(t *testing.T, mux *http.ServeMux) *BingEngine {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	e := NewBingEngine("", 5*time.Second)
	e.baseURL = srv.URL + "/search"
	e.imagesURL = srv.URL + "/images/search"
	e.newsURL = srv.URL + "/news/search"
	e.suggestURL = srv.URL + "/AS/Suggestions"
	return e
}

func TestBingSearchWeb(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("q"); got != "golang" {
			t.Errorf("q = %q, want golang", got)
		}
		if got := q.Get("first"); got != "1" {
			t.Errorf("first = %q, want 1", got)
		}
		if got := q.Get("setmkt"); got != "en-US" {
			t.Errorf("setmkt = %q, want en-US", got)
		}
		fmt.Fprint(w, bingResultHTML)
	})
	e := newBingTestEngine(t, mux)

	resp, err := e.SearchWeb(context.Background(), "golang", WebOptions{})
	if err != nil {
		t.Fatalf("SearchWeb: %v", err)
	}

	// 非 http 链接的结果被丢弃
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}

	first := resp.Results[0]
	if first.Title != "Installation Guide" {
		t.Errorf("title = %q", first.Title)
	}
	if first.DisplayURL != "example.com/docs/install" {
		t.Errorf("displayUrl = %q", first.DisplayURL)
	}
	if first.DatePublished != "2024-03-15" {
		t.Errorf("datePublished = %q, want 2024-03-15", first.DatePublished)
	}
	if first.Snippet != "Step by step installation instructions for the toolchain." {
		t.Errorf("snippet = %q", first.Snippet)
	}
	if first.ContentType != "documentation" {
		t.Errorf("contentType = %q, want documentation", first.ContentType)
	}
	if len(first.SiteLinks) != 2 {
		t.Fatalf("got %d site links, want 2", len(first.SiteLinks))
	}
	if first.SiteLinks[0].Title != "Windows" {
		t.Errorf("siteLink = %+v", first.SiteLinks[0])
	}

	if resp.EstimatedTotal == nil || *resp.EstimatedTotal != 1230000 {
		t.Errorf("estimatedTotal = %v, want 1230000", resp.EstimatedTotal)
	}
	if len(resp.RelatedSearches) != 2 {
		t.Errorf("got %d related searches, want 2", len(resp.RelatedSearches))
	}
}

func TestBingSearchWebPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("first"); got != "21" {
			t.Errorf("first = %q, want 21 for page 3", got)
		}
		fmt.Fprint(w, bingResultHTML)
	})
	e := newBingTestEngine(t, mux)

	if _, err := e.SearchWeb(context.Background(), "golang", WebOptions{Page: 3}); err != nil {
		t.Fatalf("SearchWeb: %v", err)
	}
}

func TestBingSearchWebUpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	e := newBingTestEngine(t, mux)

	_, err := e.SearchWeb(context.Background(), "golang", WebOptions{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Engine != "bing" || upstream.Op != TypeWeb {
		t.Errorf("unexpected error fields: %+v", upstream)
	}
}

func TestBingSearchImages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/images/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="iusc" m='{"t":"Gopher mascot","murl":"https://example.com/gopher.jpg","turl":"https://tse.example.com/th?id=1","purl":"https://example.com/article","mw":1200,"mh":800,"fs":"245 KB"}'></div>
			<div class="iusc" m=""></div>
			<div class="iusc" m='{"t":"No media url","murl":""}'></div>
		</body></html>`)
	})
	e := newBingTestEngine(t, mux)

	resp, err := e.SearchImages(context.Background(), "gopher", ImageOptions{})
	if err != nil {
		t.Fatalf("SearchImages: %v", err)
	}

	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	img := resp.Results[0]
	if img.Title != "Gopher mascot" {
		t.Errorf("title = %q", img.Title)
	}
	if img.ImageURL != "https://example.com/gopher.jpg" {
		t.Errorf("imageUrl = %q", img.ImageURL)
	}
	if img.SourceURL != "https://example.com/article" {
		t.Errorf("sourceUrl = %q", img.SourceURL)
	}
	if img.FileSize != "245 KB" {
		t.Errorf("fileSize = %q", img.FileSize)
	}
	if img.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg", img.Format)
	}
}

func TestBingSearchNews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/news/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="news-card">
				<a class="title" href="/news/apiclick.aspx?ref=1">Relative Link Story</a>
				<div class="snippet">A story served with a site relative link.</div>
				<div class="source"><a>Example Wire</a></div>
			</div>
			<div class="news-card">
				<a class="title" href="https://news.example.com/story">Absolute Story</a>
				<div class="snippet">An absolute link story.</div>
			</div>
		</body></html>`)
	})
	e := newBingTestEngine(t, mux)

	resp, err := e.SearchNews(context.Background(), "golang", NewsOptions{})
	if err != nil {
		t.Fatalf("SearchNews: %v", err)
	}

	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].URL != "https://www.bing.com/news/apiclick.aspx?ref=1" {
		t.Errorf("relative url not absolutized: %q", resp.Results[0].URL)
	}
	if resp.Results[0].Source != "Example Wire" {
		t.Errorf("source = %q", resp.Results[0].Source)
	}
	// 没有来源标记时回退到域名
	if resp.Results[1].Source != "news.example.com" {
		t.Errorf("fallback source = %q", resp.Results[1].Source)
	}
}

func TestBingSuggest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/AS/Suggestions", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("qry") != "golang" {
			t.Errorf("qry = %q, want golang", q.Get("qry"))
		}
		if cvid := q.Get("cvid"); len(cvid) != 32 {
			t.Errorf("cvid length = %d, want 32 hex chars", len(cvid))
		}
		fmt.Fprint(w, `<ul><li>golang playground</li><li>golang map</li><li>golang playground</li></ul>`)
	})
	e := newBingTestEngine(t, mux)

	resp, err := e.Suggest(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	// 重复项去重
	if len(resp.Suggestions) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(resp.Suggestions))
	}
	if resp.Suggestions[0] != "golang playground" {
		t.Errorf("suggestion = %q", resp.Suggestions[0])
	}
	hl := resp.SuggestionsRich[1].Highlighted
	if hl.Match != "golang" || hl.After != " map" {
		t.Errorf("highlight = %+v", hl)
	}
}
