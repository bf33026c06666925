package models

import (
	"sync/atomic"
	"time"
)

// GlobalStats represents global statistics
type GlobalStats struct {
	TotalRequests      int64        `json:"totalRequests"`
	TotalErrors        int64        `json:"totalErrors"`
	Unmatched          int64        `json:"unmatched"` // Requests answered with the synthesized 404
	ActiveEnvironments int          `json:"activeEnvironments"`
	TotalRoutes        int          `json:"totalRoutes"`
	AvgResponseTimeMs  float64      `json:"avgResponseTimeMs"`
	RequestsPerSecond  float64      `json:"requestsPerSecond"`
	StartTime          time.Time    `json:"startTime"`
	Uptime             string       `json:"uptime"`
	TopRoutes          []RouteStat  `json:"topRoutes"`
	RecentErrors       []ErrorStat  `json:"recentErrors"`
	RequestsByHour     []HourlyStat `json:"requestsByHour"`
}

// EnvironmentStats represents statistics for a specific environment
type EnvironmentStats struct {
	EnvironmentID     int64       `json:"environmentId"`
	EnvironmentName   string      `json:"environmentName"`
	TotalRequests     int64       `json:"totalRequests"`
	TotalErrors       int64       `json:"totalErrors"`
	AvgResponseTimeMs float64     `json:"avgResponseTimeMs"`
	Routes            []RouteStat `json:"routes"`
}

// RouteStat represents statistics for a specific route
type RouteStat struct {
	RouteID           int64            `json:"routeId"`
	EnvironmentID     int64            `json:"environmentId"`
	Method            string           `json:"method"`
	Path              string           `json:"path"`
	TotalRequests     int64            `json:"totalRequests"`
	TotalErrors       int64            `json:"totalErrors"`
	AvgResponseTimeMs float64          `json:"avgResponseTimeMs"`
	MinResponseTimeMs float64          `json:"minResponseTimeMs"`
	MaxResponseTimeMs float64          `json:"maxResponseTimeMs"`
	LastRequestTime   string           `json:"lastRequestTime,omitempty"`
	Outcomes          map[string]int64 `json:"outcomes,omitempty"`
}

// ErrorStat represents an error occurrence
type ErrorStat struct {
	Timestamp  time.Time `json:"timestamp"`
	RouteID    int64     `json:"routeId,omitempty"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	StatusCode int       `json:"statusCode"`
	Error      string    `json:"error"`
}

// HourlyStat represents hourly request statistics
type HourlyStat struct {
	Hour     string `json:"hour"`
	Requests int64  `json:"requests"`
	Errors   int64  `json:"errors"`
}

// AtomicRouteStat is a thread-safe version of route statistics
type AtomicRouteStat struct {
	RouteID         int64
	EnvironmentID   int64
	Method          string
	Path            string
	TotalRequests   atomic.Int64
	TotalErrors     atomic.Int64
	TotalTimeNs     atomic.Int64
	MinTimeNs       atomic.Int64
	MaxTimeNs       atomic.Int64
	LastRequestTime atomic.Value // stores time.Time
	RuleMatches     atomic.Int64
	DefaultHits     atomic.Int64
	FirstHits       atomic.Int64
}

// ToRouteStat converts to a regular RouteStat
func (a *AtomicRouteStat) ToRouteStat() RouteStat {
	totalReqs := a.TotalRequests.Load()
	totalTimeNs := a.TotalTimeNs.Load()
	var avgMs float64
	if totalReqs > 0 {
		avgMs = float64(totalTimeNs) / float64(totalReqs) / 1e6
	}

	var lastReqTime string
	if t, ok := a.LastRequestTime.Load().(time.Time); ok && !t.IsZero() {
		lastReqTime = t.Format(time.RFC3339)
	}

	return RouteStat{
		RouteID:           a.RouteID,
		EnvironmentID:     a.EnvironmentID,
		Method:            a.Method,
		Path:              a.Path,
		TotalRequests:     totalReqs,
		TotalErrors:       a.TotalErrors.Load(),
		AvgResponseTimeMs: avgMs,
		MinResponseTimeMs: float64(a.MinTimeNs.Load()) / 1e6,
		MaxResponseTimeMs: float64(a.MaxTimeNs.Load()) / 1e6,
		LastRequestTime:   lastReqTime,
		Outcomes: map[string]int64{
			string(OutcomeMatchedRules): a.RuleMatches.Load(),
			string(OutcomeDefault):      a.DefaultHits.Load(),
			string(OutcomeFirst):        a.FirstHits.Load(),
		},
	}
}
