package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/vigil/internal/models"
)

// maxOutlineDepth bounds the DOM walk to avoid runaway nesting
const maxOutlineDepth = 10

// minTextBlockLength drops trivially short fragments from text blocks
const minTextBlockLength = 10

// significantTags are the block tags whose text content participates in
// change detection.
var significantTags = map[string]struct{}{
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"p": {}, "div": {}, "li": {}, "article": {}, "section": {},
	"td": {}, "th": {}, "blockquote": {},
}

// Service transforms raw HTML into the normalized content representation
// and derives the fingerprint family.
type Service struct {
	ignoreTags      map[string]struct{}
	maxContentBytes int
	logger          arbor.ILogger
}

// Config holds extractor settings
type Config struct {
	// IgnoreTags are removed before extraction; empty uses the defaults
	// (scripts, styles, navigation chrome).
	IgnoreTags []string
	// MaxContentBytes caps input size; oversized documents are truncated
	// before hashing and flagged on the result.
	MaxContentBytes int
}

// NewService creates a content extractor
func NewService(config Config, logger arbor.ILogger) *Service {
	ignore := map[string]struct{}{
		"script": {}, "style": {}, "noscript": {}, "meta": {}, "link": {},
		"head": {}, "svg": {}, "path": {}, "nav": {}, "iframe": {},
	}
	if len(config.IgnoreTags) > 0 {
		ignore = make(map[string]struct{}, len(config.IgnoreTags))
		for _, tag := range config.IgnoreTags {
			ignore[strings.ToLower(tag)] = struct{}{}
		}
	}

	return &Service{
		ignoreTags:      ignore,
		maxContentBytes: config.MaxContentBytes,
		logger:          logger,
	}
}

// Extract parses HTML and produces normalized content plus fingerprints.
// Malformed HTML is recovered best-effort and is never fatal.
func (s *Service) Extract(rawHTML string, baseURL string) (*models.ExtractedContent, models.Fingerprints, error) {
	truncated := false
	if s.maxContentBytes > 0 && len(rawHTML) > s.maxContentBytes {
		rawHTML = rawHTML[:s.maxContentBytes]
		truncated = true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, models.Fingerprints{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	metaDescription := s.extractMetaDescription(doc)

	// Tag removal mutates the document, so capture metadata first
	s.removeIgnored(doc)

	textBlocks := s.extractTextBlocks(doc)
	outline := s.extractOutline(doc)
	links := s.extractLinks(doc, baseURL)
	forms := s.extractForms(doc)

	bodyText := collapseWhitespace(doc.Find("body").Text())
	if bodyText == "" {
		bodyText = collapseWhitespace(doc.Text())
	}

	normalized := NormalizeText(bodyText)
	keywords := ExtractKeywords(normalized)

	content := &models.ExtractedContent{
		NormalizedText:  normalized,
		Keywords:        keywords,
		Outline:         outline,
		TextBlocks:      textBlocks,
		Links:           links,
		Forms:           forms,
		Title:           title,
		MetaDescription: metaDescription,
		WordCount:       len(strings.Fields(normalized)),
		Truncated:       truncated,
	}

	prints := models.Fingerprints{
		Content:   HashContent(normalized),
		Structure: HashStructure(outline),
		TextBlock: HashTextBlocks(textBlocks),
		Semantic:  HashSemantic(normalized),
	}

	s.logger.Debug().
		Str("url", baseURL).
		Int("text_blocks", len(textBlocks)).
		Int("outline_elements", len(outline)).
		Int("keywords", len(keywords)).
		Bool("truncated", truncated).
		Msg("Content extracted")

	return content, prints, nil
}

func (s *Service) extractMetaDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return ""
}

func (s *Service) removeIgnored(doc *goquery.Document) {
	selectors := make([]string, 0, len(s.ignoreTags))
	for tag := range s.ignoreTags {
		selectors = append(selectors, tag)
	}
	doc.Find(strings.Join(selectors, ", ")).Remove()

	// Hidden elements do not participate in what a visitor sees
	doc.Find(`[aria-hidden="true"]`).Remove()
}

// extractTextBlocks collects text from significant block tags, deduplicated
// in document order.
func (s *Service) extractTextBlocks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var blocks []string

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		if _, ok := significantTags[tag]; !ok {
			return
		}
		text := collapseWhitespace(sel.Text())
		if len(text) < minTextBlockLength {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		blocks = append(blocks, text)
	})

	return blocks
}

// extractOutline walks the DOM depth-first, bounded to maxOutlineDepth
func (s *Service) extractOutline(doc *goquery.Document) []models.DOMElement {
	var outline []models.DOMElement

	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if n.Type == html.ElementNode {
			if _, skip := s.ignoreTags[n.Data]; skip {
				return
			}

			elem := models.DOMElement{Tag: n.Data, Depth: depth}
			for _, attr := range n.Attr {
				switch attr.Key {
				case "class":
					elem.Classes = strings.Fields(attr.Val)
				case "id":
					elem.ID = attr.Val
				}
			}
			outline = append(outline, elem)

			if depth >= maxOutlineDepth {
				return
			}
			depth++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth)
		}
	}

	start := doc.Find("body")
	if len(start.Nodes) == 0 {
		start = doc.Selection
	}
	for _, n := range start.Nodes {
		walk(n, 0)
	}

	return outline
}

func (s *Service) extractLinks(doc *goquery.Document, baseURL string) []models.Link {
	base, _ := url.Parse(baseURL)
	var links []models.Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		resolved := href
		external := true
		if base != nil {
			if u, err := base.Parse(href); err == nil {
				resolved = u.String()
				external = u.Host != "" && u.Host != base.Host
			}
		}

		links = append(links, models.Link{
			URL:      resolved,
			Text:     collapseWhitespace(sel.Text()),
			External: external,
		})
	})

	return links
}

func (s *Service) extractForms(doc *goquery.Document) []models.Form {
	var forms []models.Form

	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		form := models.Form{
			Action: sel.AttrOr("action", ""),
			Method: strings.ToLower(sel.AttrOr("method", "get")),
		}

		sel.Find("input, textarea, select").Each(func(_ int, input *goquery.Selection) {
			_, required := input.Attr("required")
			form.Inputs = append(form.Inputs, models.FormInput{
				Type:     input.AttrOr("type", "text"),
				Name:     input.AttrOr("name", ""),
				Required: required,
			})
		})

		forms = append(forms, form)
	})

	return forms
}
