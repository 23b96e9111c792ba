package fetch

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extract pulls a title and the plain text out of a fetched document.
// Title precedence: og:title meta tag, then the document <title>; the
// submission flow falls back to the first words of the body when both are
// empty. Text comes from readability's article extraction, with the whole
// document's text as a fallback when readability cannot find an article.
func Extract(body []byte, contentType string, pageURL *url.URL) (title, text string) {
	if strings.Contains(contentType, "text/plain") {
		return "", string(body)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", string(body)
	}

	title = strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		text = article.TextContent
		if title == "" {
			title = strings.TrimSpace(article.Title)
		}
	}
	if strings.TrimSpace(text) == "" {
		text = documentText(doc)
	}
	return title, text
}

// documentText flattens the page into space-separated text, skipping script
// and style contents.
func documentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()
	var parts []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	if len(parts) == 0 {
		return doc.Text()
	}
	return strings.Join(parts, " ")
}
