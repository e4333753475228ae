// Package docs scrapes the library's documentation landing page into the
// raw documentation blob kept next to the knowledge base.
package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/pkg/logger"
)

const (
	maxSections    = 30
	maxCodeSamples = 20
	maxSampleLen   = 2000
)

var whitespace = regexp.MustCompile(`\s+`)

type Fetcher struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Fetch downloads and extracts the documentation page.
func (f *Fetcher) Fetch(ctx context.Context) (knowledge.DocsBlob, error) {
	logger.Info("Fetching documentation", zap.String("url", f.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return knowledge.DocsBlob{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "pydverify/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return knowledge.DocsBlob{}, fmt.Errorf("failed to fetch docs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return knowledge.DocsBlob{}, fmt.Errorf("docs returned status %d", resp.StatusCode)
	}

	blob, err := Extract(f.url, resp.Body)
	if err != nil {
		return knowledge.DocsBlob{}, err
	}
	blob.FetchedAt = f.now().UTC()

	logger.Info("Documentation fetched",
		zap.Int("sections", len(blob.Sections)),
		zap.Int("code_samples", len(blob.CodeSamples)),
	)
	return blob, nil
}

// Extract parses an HTML page into a DocsBlob. Each h2/h3 heading becomes a
// section summarised by the first sentence of the text that follows it.
func Extract(url string, r io.Reader) (knowledge.DocsBlob, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return knowledge.DocsBlob{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	blob := knowledge.DocsBlob{
		URL:         url,
		Title:       extractTitle(doc),
		Sections:    []knowledge.DocsSection{},
		CodeSamples: []string{},
	}

	doc.Find("pre").EachWithBreak(func(i int, s *goquery.Selection) bool {
		code := strings.TrimSpace(s.Text())
		if code == "" {
			return true
		}
		code = truncate(code, maxSampleLen)
		blob.CodeSamples = append(blob.CodeSamples, code)
		return len(blob.CodeSamples) < maxCodeSamples
	})

	doc.Find("h2, h3").EachWithBreak(func(i int, s *goquery.Selection) bool {
		heading := cleanText(s.Text())
		if heading == "" {
			return true
		}

		var body strings.Builder
		for next := s.Next(); next.Length() > 0; next = next.Next() {
			if next.Is("h1, h2, h3") {
				break
			}
			if next.Is("pre") {
				continue
			}
			body.WriteString(next.Text())
			body.WriteString(" ")
		}

		blob.Sections = append(blob.Sections, knowledge.DocsSection{
			Heading: heading,
			Summary: firstSentence(cleanText(body.String())),
		})
		return len(blob.Sections) < maxSections
	})

	return blob, nil
}

func extractTitle(doc *goquery.Document) string {
	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}
	title = cleanText(title)
	if title == "" {
		return "Untitled"
	}
	return title
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func firstSentence(text string) string {
	if text == "" {
		return ""
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Debug("Sentence segmentation failed", zap.Error(err))
		return text
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return text
	}
	return strings.TrimSpace(sentences[0].Text)
}
