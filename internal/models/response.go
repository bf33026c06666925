package models

import (
	"encoding/json"
	"strings"
)

// Response is one candidate reply attached to a route
type Response struct {
	ID         int64  `json:"id" yaml:"id"`
	RouteID    int64  `json:"route_id" yaml:"route_id"`
	Name       string `json:"name" yaml:"name"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Headers    string `json:"headers" yaml:"headers"` // JSON object text, stored as written
	Body       string `json:"body" yaml:"body"`       // Returned verbatim
	DelayMs    int    `json:"delay_ms" yaml:"delay_ms"`
	IsDefault  bool   `json:"is_default" yaml:"is_default"`
	Priority   int    `json:"priority" yaml:"priority"` // Higher = tried first
}

// ResponseInput represents input for creating a response
type ResponseInput struct {
	Name       string `json:"name" binding:"required"`
	StatusCode int    `json:"status_code"`
	Headers    string `json:"headers"`
	Body       string `json:"body"`
	DelayMs    int    `json:"delay_ms"`
	IsDefault  bool   `json:"is_default"`
	Priority   int    `json:"priority"`
}

// ResponseUpdate represents input for updating a response
type ResponseUpdate struct {
	Name       *string `json:"name,omitempty"`
	StatusCode *int    `json:"status_code,omitempty"`
	Headers    *string `json:"headers,omitempty"`
	Body       *string `json:"body,omitempty"`
	DelayMs    *int    `json:"delay_ms,omitempty"`
	IsDefault  *bool   `json:"is_default,omitempty"`
	Priority   *int    `json:"priority,omitempty"`
}

// DecodeHeaders parses the stored headers JSON object.
// Absent or malformed headers yield an empty map; non-string values keep their JSON text.
func (r *Response) DecodeHeaders() map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(r.Headers) == "" {
		return result
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(r.Headers), &raw); err != nil {
		return result
	}

	for name, value := range raw {
		if string(value) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			result[name] = s
			continue
		}
		result[name] = string(value)
	}
	return result
}

// EncodeHeaders renders a header map into the stored JSON form
func EncodeHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return "{}"
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "{}"
	}
	return string(data)
}
