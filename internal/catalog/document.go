// Package catalog reads, writes and imports catalog documents: one
// environment with its routes, responses and rules in a single JSON or YAML
// file.
package catalog

import (
	"bytes"
	"encoding/json"
	"time"
)

// FormatVersion is written to metadata.version on export
const FormatVersion = "1.0"

// Document is the portable form of one environment
type Document struct {
	Environment Environment `json:"environment" yaml:"environment"`
	Routes      []Route     `json:"routes" yaml:"routes"`
	Metadata    *Metadata   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Environment describes the environment a document creates or replaces
type Environment struct {
	ID          int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	BaseURL     string `json:"base_url" yaml:"base_url"`
	IsActive    *bool  `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

// Route is a route and its responses
type Route struct {
	ID          int64      `json:"id,omitempty" yaml:"id,omitempty"`
	Path        string     `json:"path" yaml:"path"`
	Method      string     `json:"method" yaml:"method"`
	Description string     `json:"description" yaml:"description"`
	IsActive    *bool      `json:"is_active,omitempty" yaml:"is_active,omitempty"`
	Responses   []Response `json:"responses" yaml:"responses"`
}

// Response is a response and its rules
type Response struct {
	ID         int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name       string `json:"name" yaml:"name"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Headers    Text   `json:"headers" yaml:"headers"`
	Body       Text   `json:"body" yaml:"body"`
	DelayMs    int    `json:"delay_ms" yaml:"delay_ms"`
	IsDefault  bool   `json:"is_default" yaml:"is_default"`
	Priority   int    `json:"priority" yaml:"priority"`
	Rules      []Rule `json:"rules" yaml:"rules"`
}

// Rule is a single response selection rule
type Rule struct {
	ID        int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string `json:"name" yaml:"name"`
	RuleType  string `json:"rule_type" yaml:"rule_type"`
	FieldName string `json:"field_name" yaml:"field_name"`
	Operator  string `json:"operator" yaml:"operator"`
	Value     string `json:"value" yaml:"value"`
	Priority  int    `json:"priority" yaml:"priority"`
}

// Metadata is written on export and ignored on import
type Metadata struct {
	ExportedAt  time.Time `json:"exported_at" yaml:"exported_at"`
	Version     string    `json:"version" yaml:"version"`
	TotalRoutes int       `json:"total_routes" yaml:"total_routes"`
}

// Text is a string field that also accepts a structured JSON value, which is
// kept as compact JSON text. Response headers and bodies use it so documents
// can embed objects instead of escaped strings.
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

// isActive resolves an optional active flag; absent means active
func isActive(flag *bool) bool {
	return flag == nil || *flag
}

func boolPtr(b bool) *bool {
	return &b
}
