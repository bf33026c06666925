package models

// Outcome names how a resolution ended
type Outcome string

const (
	OutcomeMatchedRules  Outcome = "matched_rules"
	OutcomeDefault       Outcome = "default"
	OutcomeFirst         Outcome = "first"
	OutcomeRouteNotFound Outcome = "route_not_found"
	OutcomeNoResponses   Outcome = "no_responses"
)
