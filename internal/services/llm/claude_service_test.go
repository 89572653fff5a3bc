package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    models.Verdict
		wantErr bool
	}{
		{
			"plain json",
			`{"verdict": "defacement", "confidence": 0.95, "reasoning": "attacker handle present"}`,
			models.VerdictDefacement,
			false,
		},
		{
			"fenced json",
			"```json\n{\"verdict\": \"benign\", \"confidence\": 0.8, \"reasoning\": \"routine update\"}\n```",
			models.VerdictBenign,
			false,
		},
		{
			"surrounding prose",
			`Here is my assessment: {"verdict": "suspicious", "confidence": 0.6, "reasoning": "odd"} hope that helps`,
			models.VerdictSuspicious,
			false,
		},
		{
			"uppercase verdict",
			`{"verdict": "UNCLEAR", "confidence": 0.4, "reasoning": "mixed"}`,
			models.VerdictUnclear,
			false,
		},
		{"no json", "I cannot determine this", "", true},
		{"unknown verdict", `{"verdict": "maybe", "confidence": 0.5}`, "", true},
		{"malformed json", `{"verdict": "benign", `, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Verdict)
		})
	}
}

func TestParseVerdictClampsConfidence(t *testing.T) {
	got, err := parseVerdict(`{"verdict": "benign", "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Confidence)

	got, err = parseVerdict(`{"verdict": "benign", "confidence": -0.2}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := buildUserPrompt(interfaces.PromptContext{
		SiteURL:         "https://acme.example.com",
		Title:           "HACKED",
		PriorVerdict:    models.VerdictBenign,
		StaticContext:   []string{"corporate product site"},
		ChangedExcerpts: []string{"# HACKED BY DARKSTORM"},
	})

	assert.Contains(t, prompt, "https://acme.example.com")
	assert.Contains(t, prompt, "HACKED")
	assert.Contains(t, prompt, "benign")
	assert.Contains(t, prompt, "corporate product site")
	assert.Contains(t, prompt, "DARKSTORM")
}

func TestRenderExcerpts(t *testing.T) {
	excerpts := RenderExcerpts("https://acme.example.com", []string{
		"<h1>HACKED BY DARKSTORM</h1><p>greetz</p>",
		"",
	})

	require.Len(t, excerpts, 1)
	assert.Contains(t, excerpts[0], "HACKED BY DARKSTORM")
	assert.NotContains(t, excerpts[0], "<h1>")
}

func TestRenderExcerptsCaps(t *testing.T) {
	var fragments []string
	for i := 0; i < 10; i++ {
		fragments = append(fragments, "<p>"+strings.Repeat("change ", 300)+"</p>")
	}

	excerpts := RenderExcerpts("", fragments)
	assert.Len(t, excerpts, maxExcerpts)
	for _, e := range excerpts {
		assert.LessOrEqual(t, len(e), maxExcerptLength)
	}
}
