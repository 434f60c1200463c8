package present

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Renderer turns entry descriptions written in Markdown into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "em", "strong")
	policy.RequireNoFollowOnLinks(true)
	return &Renderer{
		md:     goldmark.New(),
		policy: policy,
	}
}

// Render returns "" for blank input. Conversion errors fall back to the
// escaped source text.
func (r *Renderer) Render(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(strings.TrimSpace(r.policy.Sanitize(buf.String())))
}
