package models

import (
	"time"
)

// Trace represents a captured mock request and the resolution that answered it
type Trace struct {
	ID            string        `json:"id"`
	EnvironmentID int64         `json:"environmentId,omitempty"`
	RouteID       int64         `json:"routeId,omitempty"`
	RoutePath     string        `json:"routePath,omitempty"`
	ResponseID    int64         `json:"responseId,omitempty"`
	ResponseName  string        `json:"responseName,omitempty"`
	Outcome       string        `json:"outcome"`
	Timestamp     time.Time     `json:"timestamp"`
	Duration      int64         `json:"duration"` // Duration in nanoseconds
	Request       TraceRequest  `json:"request"`
	Response      TraceResponse `json:"response"`
}

// TraceRequest represents the captured request
type TraceRequest struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Path    string              `json:"path"`
	Query   map[string][]string `json:"query"`
	Headers map[string][]string `json:"headers"`
	Body    string              `json:"body"`
}

// TraceResponse represents the captured response
type TraceResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// TraceFilter represents filters for querying traces
type TraceFilter struct {
	EnvironmentID int64     `json:"environmentId,omitempty"`
	RouteID       int64     `json:"routeId,omitempty"`
	Method        string    `json:"method,omitempty"`
	Outcome       string    `json:"outcome,omitempty"`
	StatusCode    int       `json:"statusCode,omitempty"`
	StartTime     time.Time `json:"startTime,omitempty"`
	EndTime       time.Time `json:"endTime,omitempty"`
	Limit         int       `json:"limit,omitempty"`
	Offset        int       `json:"offset,omitempty"`
}
