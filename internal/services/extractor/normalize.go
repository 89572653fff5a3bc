package extractor

import (
	"regexp"
	"sort"
	"strings"
)

// minKeywordLength drops tokens too short to be distinctive
const minKeywordLength = 3

// dynamicPatterns match content that legitimately churns between visits
// and must not perturb the content hash.
var dynamicPatterns = []*regexp.Regexp{
	// ISO-ish dates and datetimes
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?`),
	// clock times, with optional am/pm
	regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?\b`),
	// copyright year ranges
	regexp.MustCompile(`(?i)(?:©|\(c\)|copyright)\s*\d{4}(?:\s*[-–]\s*\d{4})?`),
	// session and tracking identifiers in query strings
	regexp.MustCompile(`(?i)\b(?:sessionid|session_id|sid|phpsessid|jsessionid)=[\w-]+`),
	// CSRF tokens and nonces
	regexp.MustCompile(`(?i)\b(?:csrf[_-]?token|nonce|_token)=[\w-]+`),
	// long hex blobs, usually cache busters or request ids
	regexp.MustCompile(`\b[0-9a-f]{32,}\b`),
}

var whitespaceRe = regexp.MustCompile(`\s+`)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]+`)

// stopwords excluded from keyword extraction
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "him": {}, "his": {},
	"how": {}, "its": {}, "may": {}, "new": {}, "now": {}, "old": {},
	"see": {}, "two": {}, "who": {}, "did": {}, "get": {}, "use": {},
	"that": {}, "this": {}, "with": {}, "from": {}, "they": {},
	"will": {}, "have": {}, "been": {}, "were": {}, "said": {},
	"each": {}, "which": {}, "their": {}, "there": {}, "about": {},
	"would": {}, "these": {}, "other": {}, "more": {}, "your": {},
	"what": {}, "when": {}, "them": {}, "than": {}, "then": {},
	"some": {}, "into": {}, "only": {}, "over": {}, "also": {},
	"after": {}, "most": {}, "made": {}, "many": {}, "must": {},
	"such": {}, "very": {}, "where": {}, "while": {}, "should": {},
}

// NormalizeText lowercases, strips dynamic content and collapses whitespace.
// Two fetches of an unchanged page should normalize to identical strings.
func NormalizeText(text string) string {
	normalized := strings.ToLower(text)
	for _, re := range dynamicPatterns {
		normalized = re.ReplaceAllString(normalized, " ")
	}
	return collapseWhitespace(normalized)
}

// ExtractKeywords tokenizes normalized text into a sorted, deduplicated
// keyword list with stopwords removed.
func ExtractKeywords(normalized string) []string {
	cleaned := nonAlnumRe.ReplaceAllString(normalized, " ")

	seen := make(map[string]struct{})
	for _, token := range strings.Fields(cleaned) {
		if len(token) < minKeywordLength {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		seen[token] = struct{}{}
	}

	keywords := make([]string, 0, len(seen))
	for token := range seen {
		keywords = append(keywords, token)
	}
	sort.Strings(keywords)
	return keywords
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
