package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"internationally/internal/pkg/pdfextract"
)

const (
	fetchTimeout  = 30 * time.Second
	fetchMaxBytes = 16 << 20
	userAgent     = "internationally-ingest/1.0"
)

// Document is one fetched source, reduced to plain text.
type Document struct {
	URL   string
	Title string
	Text  string
}

// Fetcher downloads a source URL and extracts its text. HTML pages are
// stripped to visible text, PDFs go through the pdf extractor.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s failed: status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, fetchMaxBytes)
	contentType := resp.Header.Get("Content-Type")

	if strings.Contains(contentType, "application/pdf") || strings.HasSuffix(strings.ToLower(url), ".pdf") {
		text, err := pdfextract.ExtractText(body)
		if err != nil {
			return nil, fmt.Errorf("extract pdf %s failed: %w", url, err)
		}
		return &Document{URL: url, Title: titleFromURL(url), Text: text}, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s failed: %w", url, err)
	}

	if strings.Contains(contentType, "text/html") || looksLikeHTML(raw) {
		title, text := htmlToText(raw)
		if title == "" {
			title = titleFromURL(url)
		}
		return &Document{URL: url, Title: title, Text: text}, nil
	}

	return &Document{URL: url, Title: titleFromURL(url), Text: string(raw)}, nil
}

func looksLikeHTML(raw []byte) bool {
	head := strings.ToLower(string(raw[:min(len(raw), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// htmlToText walks the parse tree collecting text nodes, skipping script,
// style and nav chrome. Block elements become paragraph breaks so the
// chunker sees sentence-shaped text rather than one long line.
func htmlToText(raw []byte) (title, text string) {
	root, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return "", string(raw)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "nav", "footer", "iframe":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlockElement(n.Data) {
			b.WriteString("\n\n")
		}
	}
	walk(root)

	return title, strings.TrimSpace(b.String())
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "br", "tr",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func titleFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		return trimmed[i+1:]
	}
	return trimmed
}
