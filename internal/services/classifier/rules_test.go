package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/vigil/internal/models"
)

func contentWithText(text, title string) *models.ExtractedContent {
	return &models.ExtractedContent{
		NormalizedText: text,
		Title:          title,
	}
}

func TestRulesClassify(t *testing.T) {
	c := NewRulesClassifier()

	tests := []struct {
		name    string
		text    string
		title   string
		verdict models.Verdict
	}{
		{
			"attacker signature",
			"this site was hacked by zer0cool greetz to the crew",
			"HACKED",
			models.VerdictDefacement,
		},
		{
			"defaced keyword",
			"your homepage has been defaced",
			"",
			models.VerdictDefacement,
		},
		{
			"moderate indicator",
			"the server was attacked last night",
			"",
			models.VerdictSuspicious,
		},
		{
			"clean content",
			"welcome to acme widgets the finest widgets anywhere",
			"Acme Widgets",
			models.VerdictBenign,
		},
		{
			"maintenance dampens",
			"the system was attacked by scheduled maintenance jokes aside we are under maintenance",
			"",
			models.VerdictBenign,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(contentWithText(tt.text, tt.title))
			assert.Equal(t, tt.verdict, result.Verdict)
			assert.Equal(t, models.ClassifierRules, result.Kind)
			assert.False(t, result.Abstained)
		})
	}
}

func TestRulesWholeWordMatching(t *testing.T) {
	c := NewRulesClassifier()

	// "shacked" must not match "hacked"
	result := c.Classify(contentWithText("the cabin shacked under the storm", ""))
	assert.Equal(t, models.VerdictBenign, result.Verdict)
	assert.Empty(t, result.Evidence)
}

func TestRulesEvidenceCollected(t *testing.T) {
	c := NewRulesClassifier()

	result := c.Classify(contentWithText("hacked by darkstorm", ""))
	assert.Equal(t, models.VerdictDefacement, result.Verdict)
	assert.NotEmpty(t, result.Evidence)
	assert.GreaterOrEqual(t, len(result.Evidence), 2, "keyword and pattern should both match")
}

func TestRulesTitleScanned(t *testing.T) {
	c := NewRulesClassifier()

	result := c.Classify(contentWithText("ordinary page body", "PWNED by someone"))
	assert.Equal(t, models.VerdictDefacement, result.Verdict)
}

func TestRulesTextBlocksScanned(t *testing.T) {
	c := NewRulesClassifier()

	content := &models.ExtractedContent{
		NormalizedText: "clean text",
		TextBlocks:     []string{"this server was compromised"},
	}
	result := c.Classify(content)
	assert.Equal(t, models.VerdictSuspicious, result.Verdict)
}
