package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/ipdd/internal/model"
)

const (
	maxImages = 5
	maxLinks  = 20
)

var (
	abstractClassCues = []string{"abstract", "description", "summary", "overview"}
	sentenceEnd       = regexp.MustCompile(`[.!?]\s+`)
)

// DetailExtractor pulls technology details out of a technology-transfer page
type DetailExtractor struct{}

// NewDetailExtractor creates a new detail extractor
func NewDetailExtractor() *DetailExtractor {
	return &DetailExtractor{}
}

// Extract parses htmlContent fetched from sourceURL. Only title, abstract,
// summary, image URLs and outbound links are filled; everything else stays
// empty for the search-model fallback to supply.
func (e *DetailExtractor) Extract(htmlContent string, sourceURL string) (model.TechnologyDetails, error) {
	details := model.NewTechnologyDetails()

	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return details, err
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return details, err
	}

	for _, tag := range []string{"h1", "h2", "title"} {
		if n := findFirst(root, func(n *html.Node) bool { return isElement(n, tag) }); n != nil {
			title := visibleText(n)
			details.Title = &title
			break
		}
	}

	for _, cue := range abstractClassCues {
		n := findFirst(root, func(n *html.Node) bool {
			return n.Type == html.ElementNode && strings.Contains(strings.ToLower(attr(n, "class")), cue)
		})
		if n != nil {
			abstract := visibleText(n)
			details.Abstract = &abstract
			break
		}
	}

	if details.Abstract != nil && *details.Abstract != "" {
		if summary := firstSentence(*details.Abstract); summary != "" {
			details.Summary = &summary
		}
	}

	for i, img := range findAll(root, func(n *html.Node) bool { return isElement(n, "img") }) {
		if i >= maxImages {
			break
		}
		src := strings.TrimSpace(attr(img, "src"))
		switch {
		case strings.HasPrefix(src, "http"):
			details.ImageURLs = append(details.ImageURLs, src)
		case strings.HasPrefix(src, "/"):
			if resolved := resolveURL(baseURL, src); resolved != "" {
				details.ImageURLs = append(details.ImageURLs, resolved)
			}
		}
	}

	anchors := findAll(root, func(n *html.Node) bool { return isElement(n, "a") && hasAttr(n, "href") })
	for i, a := range anchors {
		if i >= maxLinks {
			break
		}
		if href := strings.TrimSpace(attr(a, "href")); strings.HasPrefix(href, "http") {
			details.ExtractedURLs = append(details.ExtractedURLs, href)
		}
	}

	return details, nil
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if loc := sentenceEnd.FindStringIndex(text); loc != nil {
		return text[:loc[0]+1]
	}
	return text
}

// visibleText joins the trimmed text nodes under n, skipping scripts/styles
func visibleText(n *html.Node) string {
	var parts []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.Join(parts, " ")
}

// resolveURL resolves a relative URL against a base URL. Only http(s) results are kept.
func resolveURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "#") {
		return ""
	}
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// findAll returns matching nodes in document order
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
