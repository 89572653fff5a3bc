package models

// ExtractedContent is the transient, normalized representation of a fetched
// page produced by the extractor and consumed by the detector and
// classifier. It is never persisted as-is.
type ExtractedContent struct {
	NormalizedText  string       `json:"normalized_text"`
	Keywords        []string     `json:"keywords"`
	Outline         []DOMElement `json:"outline"`
	TextBlocks      []string     `json:"text_blocks"`
	Links           []Link       `json:"links"`
	Forms           []Form       `json:"forms"`
	Title           string       `json:"title"`
	MetaDescription string       `json:"meta_description"`
	WordCount       int          `json:"word_count"`
	Truncated       bool         `json:"truncated"`
}

// KeywordSet returns the keyword list as a set for similarity computation
func (c *ExtractedContent) KeywordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Keywords))
	for _, kw := range c.Keywords {
		set[kw] = struct{}{}
	}
	return set
}

// DOMElement is one entry of the depth-first DOM outline
type DOMElement struct {
	Tag     string   `json:"tag"`
	Depth   int      `json:"depth"`
	Classes []string `json:"classes,omitempty"`
	ID      string   `json:"id,omitempty"`
}

// Link is a hyperlink discovered on the page
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	External bool   `json:"external"`
}

// Form captures form structure; new login/upload forms are a defacement signal
type Form struct {
	Action string      `json:"action"`
	Method string      `json:"method"`
	Inputs []FormInput `json:"inputs"`
}

// FormInput is metadata for a single form field
type FormInput struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
}
