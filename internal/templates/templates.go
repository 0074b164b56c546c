// Package templates provides embedded templates for policy scaffolding.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed policy/*.tmpl
var policyTemplates embed.FS

// StarterData parameterizes the starter policy document.
type StarterData struct {
	// Unlisted is the fallback state for unmatched capabilities,
	// "prompt" or "denied".
	Unlisted string
	// Requires pins a minimum gatelet version, empty for none.
	Requires string
}

// StarterPolicy renders the starter policy document. The output parses
// and validates as a policy, so a fresh setup starts from a working
// file rather than an empty one.
func StarterPolicy(data StarterData) ([]byte, error) {
	if data.Unlisted == "" {
		data.Unlisted = "prompt"
	}

	tmpl, err := template.ParseFS(policyTemplates, "policy/starter.yaml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse starter policy template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render starter policy: %w", err)
	}
	return buf.Bytes(), nil
}
