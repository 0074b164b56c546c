package policy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gatelet-dev/gatelet/internal/version"
	"github.com/goccy/go-yaml"
)

// Load loads and validates a policy document from a YAML file.
func Load(path string) (*Document, error) {
	// Security: Use os.OpenRoot to prevent path traversal attacks
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy directory: %w", err)
	}
	defer func() {
		_ = root.Close() // Best-effort cleanup
	}()

	file, err := root.Open(base)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy: %w", err)
	}
	defer func() {
		_ = file.Close() // Best-effort cleanup
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}

	return Parse(data)
}

// Parse parses and validates a policy document from raw YAML. The
// document comes back normalized: file: URLs in path-kind allow lists
// are already rewritten to plain paths.
func Parse(data []byte) (*Document, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}

	if err := doc.Normalize(); err != nil {
		return nil, err
	}

	if err := CheckRequires(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// CheckRequires verifies the document's version constraint against the
// running build.
func CheckRequires(doc *Document) error {
	if doc.Requires == "" {
		return nil
	}
	ok, err := version.Compatible(doc.Requires)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("policy requires gatelet %s, this build is %s", doc.Requires, version.Version)
	}
	return nil
}
