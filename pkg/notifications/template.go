package notifications

import (
	"errors"
	"fmt"
	"text/template"

	"github.com/shipctl/ship/pkg/notifications/templates"
)

// errParseTemplate indicates a custom notification template failed to parse.
var errParseTemplate = errors.New("failed to parse notification template")

// DefaultTemplate renders a plain-text run summary.
const DefaultTemplate = `
{{- if .Host}}ship on {{.Host}}: {{end}}{{len .Updated}} updated, {{len .Failed}} failed of {{.Scanned}} scanned
{{- if .Updated}}
Updated: {{Join .Updated ", "}}
{{- end}}
{{- if .Failed}}
Failed: {{Join .Failed ", "}}
{{- end}}
{{- if .RateLimited}}
Could not confirm (rate limited): {{Join .RateLimited ", "}}
{{- end}}
{{- with .Prune}}
Pruned {{.ImagesDeleted}} dangling images
{{- end}}`

// parseTemplate parses tplString, or DefaultTemplate when it is empty.
func parseTemplate(tplString string) (*template.Template, error) {
	if tplString == "" {
		tplString = DefaultTemplate
	}

	tpl, err := template.New("notification").Funcs(templates.Funcs).Parse(tplString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errParseTemplate, err)
	}

	return tpl, nil
}

// Preview renders tplString against sample data.
//
// Parameters:
//   - tplString: Template to render; empty selects DefaultTemplate.
//
// Returns:
//   - string: Rendered message.
//   - error: Non-nil if the template fails to parse or execute.
func Preview(tplString string) (string, error) {
	tpl, err := parseTemplate(tplString)
	if err != nil {
		return "", err
	}

	return render(tpl, Data{
		StaticData:  StaticData{Title: "ship", Host: "docker-01"},
		Scanned:     12,
		Updated:     []string{"gitea", "nextcloud"},
		Failed:      []string{"immich"},
		RateLimited: []string{"jellyfin"},
	})
}
