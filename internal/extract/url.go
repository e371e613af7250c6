package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Article is the readable text of a web page.
type Article struct {
	URL     string
	Title   string
	Excerpt string
	Text    string
}

const maxPageBytes = 5 * 1024 * 1024

var blockTags = []string{"p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "blockquote"}

var whitespaceRe = regexp.MustCompile(`[ \t\f\v]+`)

// URL downloads pageURL and extracts its main article text.
func URL(ctx context.Context, hc *http.Client, pageURL string) (*Article, error) {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "unip/1.0 (+text analysis client)")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	return HTML(string(body), parsed)
}

// HTML runs readability over rawHTML and flattens the result to text.
func HTML(rawHTML string, pageURL *url.URL) (*Article, error) {
	article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaceBlocks(article.Content)))
	if err != nil {
		return nil, err
	}

	return &Article{
		URL:     pageURL.String(),
		Title:   strings.TrimSpace(article.Title),
		Excerpt: strings.TrimSpace(article.Excerpt),
		Text:    normalizeText(doc.Text()),
	}, nil
}

// spaceBlocks pads block-level tags so adjacent blocks do not run together
// once markup is stripped.
func spaceBlocks(html string) string {
	result := html
	for _, tag := range blockTags {
		result = regexp.MustCompile(`(?i)</`+tag+`>`).ReplaceAllString(result, "</"+tag+">\n")
		result = regexp.MustCompile(`(?i)<`+tag+`(\s[^>]*)?/?>`).ReplaceAllString(result, "\n$0")
	}
	return result
}

func normalizeText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
