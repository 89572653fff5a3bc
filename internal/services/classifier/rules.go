package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/vigil/internal/models"
)

// keywordWeights map defacement-indicator tokens to prior weights.
// Matching is case-insensitive whole-word.
var keywordWeights = map[string]float64{
	"hacked":       0.9,
	"defaced":      0.95,
	"pwned":        0.8,
	"owned":        0.8,
	"unauthorized": 0.7,
	"breached":     0.7,
	"compromised":  0.7,
	"attacked":     0.6,
	"vandalized":   0.8,
	"hijacked":     0.8,
}

type scoredPattern struct {
	re     *regexp.Regexp
	weight float64
	label  string
}

// patternWeights catch attacker signatures that single keywords miss
var patternWeights = []scoredPattern{
	{regexp.MustCompile(`(?i)hacked\s+by\s+\w+`), 0.95, "hacked by <handle>"},
	{regexp.MustCompile(`(?i)defaced\s+by\s+\w+`), 0.95, "defaced by <handle>"},
	{regexp.MustCompile(`(?i)owned\s+by\s+\w+`), 0.9, "owned by <handle>"},
	{regexp.MustCompile(`(?i)pwn(?:ed|3d)\s+by\s+\w+`), 0.9, "pwned by <handle>"},
	{regexp.MustCompile(`(?i)\bgr[e3][e3]tz?\b`), 0.85, "greetz shout-out"},
	{regexp.MustCompile(`(?i)security\s+breach(?:ed)?`), 0.7, "security breach"},
	{regexp.MustCompile(`(?i)your\s+(?:site|website|server)\s+(?:is|was|has\s+been)\s+(?:hacked|owned|pwned)`), 0.95, "your site is hacked"},
	{regexp.MustCompile(`(?i)\bfree\s+palestine\b|\bcyber\s+(?:army|team|caliphate)\b`), 0.8, "hacktivist slogan"},
}

// benignIndicators dampen scores for legitimate operational content
var benignIndicators = []scoredPattern{
	{regexp.MustCompile(`(?i)scheduled\s+maintenance|under\s+maintenance|maintenance\s+mode`), 0.3, "maintenance notice"},
	{regexp.MustCompile(`(?i)(?:software|security|system)\s+update|recently\s+updated`), 0.2, "update notice"},
	{regexp.MustCompile(`(?i)coming\s+soon|under\s+construction`), 0.2, "construction notice"},
}

var wordBoundaryCache = map[string]*regexp.Regexp{}

func init() {
	for token := range keywordWeights {
		wordBoundaryCache[token] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`)
	}
}

// RulesClassifier scores content against the keyword and pattern tables.
// It never abstains and needs no network, so it anchors the ensemble when
// the other classifiers fail.
type RulesClassifier struct{}

// NewRulesClassifier creates the rule-based classifier
func NewRulesClassifier() *RulesClassifier {
	return &RulesClassifier{}
}

// Classify scans normalized text, text blocks, title and meta description.
// Score is the max matched weight minus any benign dampening.
func (c *RulesClassifier) Classify(content *models.ExtractedContent) models.SubResult {
	corpus := strings.Join([]string{
		content.NormalizedText,
		strings.Join(content.TextBlocks, " "),
		content.Title,
		content.MetaDescription,
	}, " ")

	var score float64
	var evidence []string

	for token, weight := range keywordWeights {
		if wordBoundaryCache[token].MatchString(corpus) {
			evidence = append(evidence, fmt.Sprintf("keyword %q (%.2f)", token, weight))
			if weight > score {
				score = weight
			}
		}
	}

	for _, p := range patternWeights {
		if p.re.MatchString(corpus) {
			evidence = append(evidence, fmt.Sprintf("pattern %q (%.2f)", p.label, p.weight))
			if p.weight > score {
				score = p.weight
			}
		}
	}

	var dampening float64
	for _, p := range benignIndicators {
		if p.re.MatchString(corpus) {
			evidence = append(evidence, fmt.Sprintf("benign indicator %q (-%.2f)", p.label, p.weight))
			if p.weight > dampening {
				dampening = p.weight
			}
		}
	}
	score -= dampening
	if score < 0 {
		score = 0
	}

	var verdict models.Verdict
	switch {
	case score >= 0.85:
		verdict = models.VerdictDefacement
	case score >= 0.6:
		verdict = models.VerdictSuspicious
	default:
		verdict = models.VerdictBenign
	}

	confidence := score
	if verdict == models.VerdictBenign {
		// no indicators at all is a strong benign signal; dampened
		// indicators less so
		confidence = 1 - score
	}

	return models.SubResult{
		Kind:       models.ClassifierRules,
		Verdict:    verdict,
		Confidence: confidence,
		Evidence:   evidence,
		Reasoning:  fmt.Sprintf("rule score %.2f from %d indicator(s)", score, len(evidence)),
	}
}
