package tools

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	commonhttp "lead-enricher/internal/common/http"
	"lead-enricher/internal/common/validation"

	"github.com/microcosm-cc/bluemonday"
)

var (
	titlePattern    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescPattern = regexp.MustCompile(`(?is)<meta\s+[^>]*name=["']description["'][^>]*content=["']([^"']*)["']`)
	scriptPattern   = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

// HTTPWebsiteScraper fetches a page and reduces it to visible text.
type HTTPWebsiteScraper struct {
	client   *commonhttp.Client
	policy   *bluemonday.Policy
	maxChars int
}

func NewHTTPWebsiteScraper(client *commonhttp.Client, maxChars int) *HTTPWebsiteScraper {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &HTTPWebsiteScraper{
		client:   client,
		policy:   bluemonday.StrictPolicy(),
		maxChars: maxChars,
	}
}

func (s *HTTPWebsiteScraper) ScrapeWebsite(ctx context.Context, url string) (map[string]interface{}, error) {
	if !validation.ValidateURL(url) {
		return nil, fmt.Errorf("invalid url %q", url)
	}

	status, body, err := s.client.Get(ctx, strings.TrimSpace(url), http.Header{"Accept": []string{"text/html"}})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", url, status)
	}

	page := string(body)
	text, truncated := s.visibleText(page)

	return map[string]interface{}{
		"url":         url,
		"title":       firstGroup(titlePattern, page),
		"description": firstGroup(metaDescPattern, page),
		"text":        text,
		"truncated":   truncated,
	}, nil
}

func (s *HTTPWebsiteScraper) visibleText(page string) (string, bool) {
	stripped := scriptPattern.ReplaceAllString(page, " ")
	text := html.UnescapeString(s.policy.Sanitize(stripped))
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) <= s.maxChars {
		return text, false
	}
	return string(runes[:s.maxChars]), true
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}
