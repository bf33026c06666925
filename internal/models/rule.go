package models

// Rule is a single predicate deciding whether a response applies to a request
type Rule struct {
	ID         int64  `json:"id" yaml:"id"`
	ResponseID int64  `json:"response_id" yaml:"response_id"`
	Name       string `json:"name" yaml:"name"`
	RuleType   string `json:"rule_type" yaml:"rule_type"`   // header, query, body, custom
	FieldName  string `json:"field_name" yaml:"field_name"` // Header name, query key or body field
	Operator   string `json:"operator" yaml:"operator"`     // equals, contains, regex, exists, not_exists
	Value      string `json:"value" yaml:"value"`
	Priority   int    `json:"priority" yaml:"priority"`
}

// RuleInput represents input for creating a rule
type RuleInput struct {
	Name      string `json:"name"`
	RuleType  string `json:"rule_type" binding:"required"`
	FieldName string `json:"field_name"`
	Operator  string `json:"operator" binding:"required"`
	Value     string `json:"value"`
	Priority  int    `json:"priority"`
}

// RuleUpdate represents input for updating a rule
type RuleUpdate struct {
	Name      *string `json:"name,omitempty"`
	RuleType  *string `json:"rule_type,omitempty"`
	FieldName *string `json:"field_name,omitempty"`
	Operator  *string `json:"operator,omitempty"`
	Value     *string `json:"value,omitempty"`
	Priority  *int    `json:"priority,omitempty"`
}

// Supported rule types
const (
	RuleTypeHeader = "header"
	RuleTypeQuery  = "query"
	RuleTypeBody   = "body"
	RuleTypeCustom = "custom"
)

// Supported rule operators
const (
	OpEquals    = "equals"
	OpContains  = "contains"
	OpRegex     = "regex"
	OpExists    = "exists"
	OpNotExists = "not_exists"
)

// ValidRuleTypes returns all valid rule types
func ValidRuleTypes() []string {
	return []string{RuleTypeHeader, RuleTypeQuery, RuleTypeBody, RuleTypeCustom}
}

// ValidOperators returns all valid rule operators
func ValidOperators() []string {
	return []string{OpEquals, OpContains, OpRegex, OpExists, OpNotExists}
}
