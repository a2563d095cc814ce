// Package lyrics fetches song lyrics for the currently playing track by
// scraping a public lyrics index.
package lyrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/latoulicious/Kitasan/pkg/cache"
)

const (
	searchBase = "https://www.animelyrics.com"
	cacheTTL   = 30 * time.Minute
)

var ErrNotFound = errors.New("no lyrics found")

// Result is a fetched lyrics page.
type Result struct {
	Title  string
	Artist string
	Lyrics string
	URL    string
}

// Fetcher scrapes lyrics with a read-through cache keyed by the search
// query.
type Fetcher struct {
	client *http.Client
	cached *cache.KV[Result]
	logger *log.Logger
}

// NewFetcher creates a lyrics fetcher.
func NewFetcher(logger *log.Logger) (*Fetcher, error) {
	cached, err := cache.NewKV[Result](256, cacheTTL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "lyrics"})
	}
	return &Fetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		cached: cached,
		logger: logger,
	}, nil
}

// Lyrics finds lyrics for a track by title, optionally narrowed by artist.
func (f *Fetcher) Lyrics(ctx context.Context, title, artist string) (Result, error) {
	query := strings.TrimSpace(title)
	if artist != "" {
		query = query + " " + strings.TrimSpace(artist)
	}
	if query == "" {
		return Result{}, errors.Wrap(ErrNotFound, "empty title")
	}

	key := strings.ToLower(query)
	if r, ok := f.cached.Get(key); ok {
		return r, nil
	}

	pageURL, err := f.searchFirstResult(ctx, query)
	if err != nil {
		return Result{}, err
	}
	r, err := f.fetchPage(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}
	f.cached.Put(key, r)
	return r, nil
}

func (f *Fetcher) searchFirstResult(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/search.php?search=%s", searchBase, url.QueryEscape(query))
	doc, err := f.getDocument(ctx, searchURL)
	if err != nil {
		return "", err
	}

	var first string
	doc.Find("a[href*='anime/']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok {
			first = href
			return false
		}
		return true
	})
	if first == "" {
		return "", errors.Wrapf(ErrNotFound, "query %q", query)
	}
	if !strings.HasPrefix(first, "http") {
		first = searchBase + "/" + strings.TrimPrefix(first, "/")
	}
	return first, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) (Result, error) {
	doc, err := f.getDocument(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	r := Result{URL: pageURL}
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		r.Title = strings.TrimSpace(s.Text())
		return r.Title == ""
	})
	doc.Find("p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if idx := strings.Index(text, "Artist:"); idx >= 0 {
			line := text[idx+len("Artist:"):]
			if nl := strings.IndexByte(line, '\n'); nl >= 0 {
				line = line[:nl]
			}
			r.Artist = strings.TrimSpace(line)
			return false
		}
		return true
	})
	doc.Find("div.lyrics, div#lyrics, pre, .lyrics-content, td.romaji").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		r.Lyrics = strings.TrimSpace(s.Text())
		return r.Lyrics == ""
	})

	r.Lyrics = cleanLyrics(r.Lyrics)
	if r.Lyrics == "" {
		return Result{}, errors.Wrapf(ErrNotFound, "page %s has no lyrics content", pageURL)
	}
	return r, nil
}

func (f *Fetcher) getDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch lyrics")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("lyrics request failed with status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func cleanLyrics(s string) string {
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	out := strings.Join(lines, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
