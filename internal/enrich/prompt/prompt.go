// Package prompt holds the enrichment prompts and output schema.
package prompt

import (
	"bytes"
	_ "embed"
	"text/template"

	"github.com/lumireader/descry/internal/types"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

// SystemPrompt returns the system prompt for description enrichment.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the user prompt for one description candidate.
func UserPrompt(d types.CompleteDescription) string {
	var buf bytes.Buffer
	data := struct {
		Text string
		Type string
	}{Text: d.Text, Type: string(d.Type)}
	if err := userTemplate.Execute(&buf, data); err != nil {
		// Fallback to raw template on error
		return userPromptTmpl
	}
	return buf.String()
}
