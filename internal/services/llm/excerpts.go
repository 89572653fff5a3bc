package llm

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// maxExcerptLength bounds a single excerpt in the prompt
const maxExcerptLength = 1500

// maxExcerpts bounds how many changed blocks reach the prompt
const maxExcerpts = 5

var excerptTagRe = regexp.MustCompile(`<[^>]+>`)

// RenderExcerpts converts changed HTML fragments into markdown suitable
// for the classification prompt. Conversion failures fall back to tag
// stripping; excerpts are clipped and capped in number.
func RenderExcerpts(baseURL string, fragments []string) []string {
	converter := md.NewConverter(baseURL, true, nil)

	var excerpts []string
	for _, fragment := range fragments {
		if len(excerpts) >= maxExcerpts {
			break
		}

		rendered, err := converter.ConvertString(fragment)
		if err != nil || strings.TrimSpace(rendered) == "" {
			rendered = excerptTagRe.ReplaceAllString(fragment, " ")
		}
		rendered = strings.TrimSpace(rendered)
		if rendered == "" {
			continue
		}
		if len(rendered) > maxExcerptLength {
			rendered = rendered[:maxExcerptLength]
		}
		excerpts = append(excerpts, rendered)
	}

	return excerpts
}
