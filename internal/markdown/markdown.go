// Package markdown turns the markdown written by the association's board
// into HTML that is safe to embed in the dashboard.
package markdown

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown to sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer returns a renderer supporting GitHub flavoured markdown.
func NewRenderer() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoReferrerOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
	}
}

// Render converts src to HTML. The output passed the sanitizer, so it is
// marked as safe for html/template.
func (r *Renderer) Render(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}

	// #nosec G203 -- sanitized by bluemonday above.
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// RenderAll renders every source in order.
func (r *Renderer) RenderAll(srcs []string) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(srcs))
	for _, src := range srcs {
		h, err := r.Render(src)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
