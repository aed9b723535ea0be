// Package sanitize cleans user-authored biography HTML before it is stored.
package sanitize

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips markup outside the rich-text allow-list. Callers must
// not invoke Sanitize on blank input; blank biographies are stored absent
// without touching the sanitizer.
type Sanitizer interface {
	Sanitize(html string) string
}

type policySanitizer struct {
	policy *bluemonday.Policy
}

// NewBiography builds the sanitizer policy for person biographies: common
// formatting tags, lists, tables, links and images.
func NewBiography() Sanitizer {
	policy := bluemonday.NewPolicy()

	policy.AllowElements(
		"p", "br", "strong", "b", "em", "i", "u",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "a", "img", "div", "span", "sub", "sup",
		"table", "thead", "tbody", "tr", "th", "td", "hr",
	)
	policy.AllowAttrs("href", "target").OnElements("a")
	policy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	policy.AllowAttrs("class", "style", "title").Globally()
	policy.AllowURLSchemes("http", "https", "data")
	policy.RequireNoFollowOnLinks(false)

	return &policySanitizer{policy: policy}
}

func (s *policySanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
