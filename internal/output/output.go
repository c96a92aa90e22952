// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates and normalizes a format string. An empty value
// selects fallback.
func ParseFormat(value string, fallback Format, allowed ...Format) (Format, error) {
	normalized := Format(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		normalized = fallback
	}
	if normalized == "yml" {
		normalized = FormatYAML
	}
	for _, f := range allowed {
		if f == normalized {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", value)
}

// Extension is the file suffix used when writing format to a directory.
func Extension(format Format) string {
	switch format {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "txt"
	}
}

// JSON renders v as indented JSON with a trailing newline.
func JSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// YAML renders v as YAML with two-space indentation.
func YAML(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
