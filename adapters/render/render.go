// Package render produces the htmx out-of-band markup fragments the
// chat client swaps into its transcript.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/tandarun/coach/usecase"
)

//go:embed templates/*.html
var templateFS embed.FS

type HTMXRenderer struct {
	templates *template.Template
}

func NewHTMXRenderer() (*HTMXRenderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing chat templates: %w", err)
	}
	return &HTMXRenderer{templates: t}, nil
}

type bubbleParams struct {
	MessageID string
	IsSystem  bool
	Body      template.HTML
}

func (r *HTMXRenderer) MessageBubble(text string, isSystem bool, messageID string) (string, error) {
	return r.execute("message.html", bubbleParams{
		MessageID: messageID,
		IsSystem:  isSystem,
		Body:      htmlBody(text),
	})
}

func (r *HTMXRenderer) StreamAppend(messageID, fragment string) (string, error) {
	return r.execute("append.html", bubbleParams{
		MessageID: messageID,
		Body:      htmlBody(fragment),
	})
}

func (r *HTMXRenderer) FinalMessage(messageID, text string) (string, error) {
	return r.execute("final.html", bubbleParams{
		MessageID: messageID,
		Body:      htmlBody(text),
	})
}

func (r *HTMXRenderer) ClearTranscript() (string, error) {
	return r.execute("clear.html", bubbleParams{})
}

func (r *HTMXRenderer) execute(name string, params bubbleParams) (string, error) {
	var b strings.Builder
	if err := r.templates.ExecuteTemplate(&b, name, params); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// htmlBody escapes user/model text and turns newlines into explicit
// line-break markers so streamed appends stay well-formed.
func htmlBody(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped)
}

var _ usecase.Renderer = (*HTMXRenderer)(nil)
