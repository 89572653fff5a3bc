package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
	<title>Acme Widgets</title>
	<meta name="description" content="Quality widgets since 1985">
	<script>var tracking = "abc123";</script>
	<style>.hero { color: red; }</style>
</head>
<body>
	<nav><a href="/about">About</a></nav>
	<div class="hero" id="main-hero">
		<h1>Welcome to Acme Widgets</h1>
		<p>We manufacture the finest widgets available anywhere.</p>
	</div>
	<section>
		<h2>Latest News</h2>
		<p>Our catalog was updated on 2024-03-15 at 10:30 am.</p>
	</section>
	<form action="/contact" method="post">
		<input type="email" name="email" required>
		<input type="submit" value="Send">
	</form>
	<a href="https://partner.example.org/deals">Partner deals</a>
	<footer>&copy; 2024 Acme Corp</footer>
</body>
</html>`

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(Config{}, arbor.NewLogger())
}

func TestExtract(t *testing.T) {
	svc := newTestService(t)

	content, prints, err := svc.Extract(samplePage, "https://acme.example.com/")
	require.NoError(t, err)

	assert.Equal(t, "Acme Widgets", content.Title)
	assert.Equal(t, "Quality widgets since 1985", content.MetaDescription)
	assert.False(t, content.Truncated)

	// Script and style bodies never reach the text layer
	assert.NotContains(t, content.NormalizedText, "tracking")
	assert.NotContains(t, content.NormalizedText, "color: red")

	assert.Contains(t, content.NormalizedText, "finest widgets")
	assert.Contains(t, content.Keywords, "widgets")
	assert.NotContains(t, content.Keywords, "the")

	require.NotEmpty(t, prints.Content)
	require.NotEmpty(t, prints.Structure)
	require.NotEmpty(t, prints.TextBlock)
	require.NotEmpty(t, prints.Semantic)
}

func TestExtractTextBlocks(t *testing.T) {
	svc := newTestService(t)

	content, _, err := svc.Extract(samplePage, "https://acme.example.com/")
	require.NoError(t, err)

	var found bool
	for _, block := range content.TextBlocks {
		if strings.Contains(block, "finest widgets") {
			found = true
		}
	}
	assert.True(t, found, "paragraph text should appear as a text block")
}

func TestExtractOutline(t *testing.T) {
	svc := newTestService(t)

	content, _, err := svc.Extract(samplePage, "https://acme.example.com/")
	require.NoError(t, err)

	var hero bool
	for _, elem := range content.Outline {
		if elem.Tag == "div" && elem.ID == "main-hero" {
			hero = true
			assert.Contains(t, elem.Classes, "hero")
		}
	}
	assert.True(t, hero, "outline should include the hero div with id and classes")
}

func TestExtractOutlineDepthBound(t *testing.T) {
	svc := newTestService(t)

	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		sb.WriteString("<div>")
	}
	sb.WriteString("deep")
	for i := 0; i < 20; i++ {
		sb.WriteString("</div>")
	}
	sb.WriteString("</body></html>")

	content, _, err := svc.Extract(sb.String(), "https://acme.example.com/")
	require.NoError(t, err)

	for _, elem := range content.Outline {
		assert.LessOrEqual(t, elem.Depth, maxOutlineDepth)
	}
}

func TestExtractLinks(t *testing.T) {
	svc := newTestService(t)

	content, _, err := svc.Extract(samplePage, "https://acme.example.com/")
	require.NoError(t, err)

	var internal, external bool
	for _, link := range content.Links {
		switch {
		case strings.HasSuffix(link.URL, "/about"):
			internal = true
			assert.False(t, link.External)
		case strings.Contains(link.URL, "partner.example.org"):
			external = true
			assert.True(t, link.External)
		}
	}
	assert.True(t, internal)
	assert.True(t, external)
}

func TestExtractForms(t *testing.T) {
	svc := newTestService(t)

	content, _, err := svc.Extract(samplePage, "https://acme.example.com/")
	require.NoError(t, err)

	require.Len(t, content.Forms, 1)
	form := content.Forms[0]
	assert.Equal(t, "/contact", form.Action)
	assert.Equal(t, "post", form.Method)
	require.Len(t, form.Inputs, 2)
	assert.Equal(t, "email", form.Inputs[0].Name)
	assert.True(t, form.Inputs[0].Required)
}

func TestExtractTruncation(t *testing.T) {
	svc := NewService(Config{MaxContentBytes: 256}, arbor.NewLogger())

	big := "<html><body><p>" + strings.Repeat("widgets ", 200) + "</p></body></html>"
	content, _, err := svc.Extract(big, "https://acme.example.com/")
	require.NoError(t, err)
	assert.True(t, content.Truncated)
}

func TestExtractMalformedHTML(t *testing.T) {
	svc := newTestService(t)

	content, prints, err := svc.Extract("<div><p>unclosed tags everywhere", "https://acme.example.com/")
	require.NoError(t, err)
	assert.Contains(t, content.NormalizedText, "unclosed tags everywhere")
	assert.NotEmpty(t, prints.Content)
}

func TestNormalizeTextStripsDynamicContent(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		absent string
	}{
		{"iso date", "updated 2024-03-15 today", "2024-03-15"},
		{"datetime", "at 2024-03-15T10:30:00 sharp", "10:30"},
		{"clock time", "opens 9:45 am daily", "9:45"},
		{"copyright", "© 2024 Acme Corp", "2024"},
		{"copyright range", "copyright 2020-2024 acme", "2020"},
		{"session id", "visit ?sessionid=a1b2c3 now", "a1b2c3"},
		{"csrf token", "csrf_token=deadbeef99 hidden", "deadbeef99"},
		{"hex blob", "cache " + strings.Repeat("a1", 20) + " bust", strings.Repeat("a1", 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NormalizeText(tt.input)
			assert.NotContains(t, out, tt.absent)
		})
	}
}

func TestNormalizeTextDeterministic(t *testing.T) {
	a := NormalizeText("Hello   World\n\tupdated 2024-01-01")
	b := NormalizeText("hello world updated 2024-06-30")
	assert.Equal(t, a, b, "dynamic dates must not affect normalization")
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("the quick brown fox and the lazy dog go go")

	assert.Contains(t, keywords, "quick")
	assert.Contains(t, keywords, "brown")
	assert.NotContains(t, keywords, "the", "stopwords removed")
	assert.NotContains(t, keywords, "go", "short tokens removed")

	// deduplicated and sorted
	seen := make(map[string]int)
	for _, k := range keywords {
		seen[k]++
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "keyword %q duplicated", k)
	}
}
