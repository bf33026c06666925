package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// Request is one served mock request as seen by the collector.
// RouteID is zero when no route matched.
type Request struct {
	EnvironmentID int64
	RouteID       int64
	Method        string
	Path          string
	Outcome       string
	StatusCode    int
	Duration      time.Duration
}

// Collector collects and aggregates statistics
type Collector struct {
	mu             sync.RWMutex
	startTime      time.Time
	routes         map[int64]*models.AtomicRouteStat // routeID -> stats
	unmatched      int64
	unmatchedTime  int64
	recentErrors   []models.ErrorStat
	hourlyStats    map[string]*hourlyCounter // "YYYY-MM-DD-HH" -> counter
	maxErrors      int
	maxHourlySlots int
}

type hourlyCounter struct {
	Hour     string
	Requests int64
	Errors   int64
}

// NewCollector creates a new statistics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:      time.Now(),
		routes:         make(map[int64]*models.AtomicRouteStat),
		recentErrors:   make([]models.ErrorStat, 0),
		hourlyStats:    make(map[string]*hourlyCounter),
		maxErrors:      100,
		maxHourlySlots: 168, // 7 days
	}
}

// RecordRequest records a request for statistics
func (c *Collector) RecordRequest(req Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	isError := req.StatusCode >= 400
	c.recordHourly(isError)

	if req.RouteID == 0 {
		c.unmatched++
		c.unmatchedTime += req.Duration.Nanoseconds()
		return
	}

	// Get or create route stats
	routeStats, ok := c.routes[req.RouteID]
	if !ok {
		routeStats = &models.AtomicRouteStat{
			RouteID:       req.RouteID,
			EnvironmentID: req.EnvironmentID,
			Method:        req.Method,
			Path:          req.Path,
		}
		routeStats.MinTimeNs.Store(req.Duration.Nanoseconds())
		c.routes[req.RouteID] = routeStats
	}

	// Update stats
	routeStats.TotalRequests.Add(1)
	routeStats.TotalTimeNs.Add(req.Duration.Nanoseconds())
	routeStats.LastRequestTime.Store(time.Now())

	// Update min/max
	durationNs := req.Duration.Nanoseconds()
	for {
		currentMin := routeStats.MinTimeNs.Load()
		if durationNs >= currentMin || routeStats.MinTimeNs.CompareAndSwap(currentMin, durationNs) {
			break
		}
	}
	for {
		currentMax := routeStats.MaxTimeNs.Load()
		if durationNs <= currentMax || routeStats.MaxTimeNs.CompareAndSwap(currentMax, durationNs) {
			break
		}
	}

	if isError {
		routeStats.TotalErrors.Add(1)
	}

	switch models.Outcome(req.Outcome) {
	case models.OutcomeMatchedRules:
		routeStats.RuleMatches.Add(1)
	case models.OutcomeDefault:
		routeStats.DefaultHits.Add(1)
	case models.OutcomeFirst:
		routeStats.FirstHits.Add(1)
	}
}

// recordHourly updates the current hour bucket. Callers hold the write lock.
func (c *Collector) recordHourly(isError bool) {
	hourKey := time.Now().Format("2006-01-02-15")
	hourly, ok := c.hourlyStats[hourKey]
	if !ok {
		hourly = &hourlyCounter{Hour: hourKey}
		c.hourlyStats[hourKey] = hourly
		c.cleanupOldHourlyStats()
	}
	hourly.Requests++
	if isError {
		hourly.Errors++
	}
}

// RecordError records an error
func (c *Collector) RecordError(routeID int64, path, method string, statusCode int, err string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	errorStat := models.ErrorStat{
		Timestamp:  time.Now(),
		RouteID:    routeID,
		Path:       path,
		Method:     method,
		StatusCode: statusCode,
		Error:      err,
	}

	c.recentErrors = append(c.recentErrors, errorStat)
	if len(c.recentErrors) > c.maxErrors {
		c.recentErrors = c.recentErrors[1:]
	}
}

// cleanupOldHourlyStats removes hourly stats older than maxHourlySlots
func (c *Collector) cleanupOldHourlyStats() {
	if len(c.hourlyStats) <= c.maxHourlySlots {
		return
	}

	// Get sorted keys
	keys := make([]string, 0, len(c.hourlyStats))
	for k := range c.hourlyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Remove oldest entries
	toRemove := len(keys) - c.maxHourlySlots
	for i := 0; i < toRemove; i++ {
		delete(c.hourlyStats, keys[i])
	}
}

// GetGlobalStats returns global statistics
func (c *Collector) GetGlobalStats(activeEnvironments, totalRoutes int) *models.GlobalStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalRequests := c.unmatched
	totalErrors := c.unmatched
	totalTimeNs := c.unmatchedTime

	routeStats := make([]models.RouteStat, 0, len(c.routes))
	for _, r := range c.routes {
		stat := r.ToRouteStat()
		routeStats = append(routeStats, stat)
		totalRequests += stat.TotalRequests
		totalErrors += stat.TotalErrors
		totalTimeNs += r.TotalTimeNs.Load()
	}

	// Sort by total requests (descending), then route ID
	sort.Slice(routeStats, func(i, j int) bool {
		if routeStats[i].TotalRequests != routeStats[j].TotalRequests {
			return routeStats[i].TotalRequests > routeStats[j].TotalRequests
		}
		return routeStats[i].RouteID < routeStats[j].RouteID
	})

	// Top 10 routes
	topRoutes := routeStats
	if len(topRoutes) > 10 {
		topRoutes = topRoutes[:10]
	}

	// Calculate average response time
	var avgResponseTimeMs float64
	if totalRequests > 0 {
		avgResponseTimeMs = float64(totalTimeNs) / float64(totalRequests) / 1e6
	}

	// Calculate requests per second
	uptime := time.Since(c.startTime).Seconds()
	var requestsPerSecond float64
	if uptime > 0 {
		requestsPerSecond = float64(totalRequests) / uptime
	}

	recentErrors := make([]models.ErrorStat, len(c.recentErrors))
	copy(recentErrors, c.recentErrors)

	return &models.GlobalStats{
		TotalRequests:      totalRequests,
		TotalErrors:        totalErrors,
		Unmatched:          c.unmatched,
		ActiveEnvironments: activeEnvironments,
		TotalRoutes:        totalRoutes,
		AvgResponseTimeMs:  avgResponseTimeMs,
		RequestsPerSecond:  requestsPerSecond,
		StartTime:          c.startTime,
		Uptime:             formatDuration(time.Since(c.startTime)),
		TopRoutes:          topRoutes,
		RecentErrors:       recentErrors,
		RequestsByHour:     c.buildHourlyStats(),
	}
}

// GetEnvironmentStats returns statistics for a specific environment
func (c *Collector) GetEnvironmentStats(envID int64, envName string) *models.EnvironmentStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalRequests, totalErrors, totalTimeNs int64
	routeStats := make([]models.RouteStat, 0)

	for _, r := range c.routes {
		if r.EnvironmentID != envID {
			continue
		}

		stat := r.ToRouteStat()
		routeStats = append(routeStats, stat)
		totalRequests += stat.TotalRequests
		totalErrors += stat.TotalErrors
		totalTimeNs += r.TotalTimeNs.Load()
	}

	sort.Slice(routeStats, func(i, j int) bool {
		return routeStats[i].RouteID < routeStats[j].RouteID
	})

	var avgResponseTimeMs float64
	if totalRequests > 0 {
		avgResponseTimeMs = float64(totalTimeNs) / float64(totalRequests) / 1e6
	}

	return &models.EnvironmentStats{
		EnvironmentID:     envID,
		EnvironmentName:   envName,
		TotalRequests:     totalRequests,
		TotalErrors:       totalErrors,
		AvgResponseTimeMs: avgResponseTimeMs,
		Routes:            routeStats,
	}
}

// GetRouteStats returns statistics for a specific route
func (c *Collector) GetRouteStats(routeID int64) *models.RouteStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if r, ok := c.routes[routeID]; ok {
		stat := r.ToRouteStat()
		return &stat
	}

	return nil
}

// buildHourlyStats builds the hourly statistics array
func (c *Collector) buildHourlyStats() []models.HourlyStat {
	// Get sorted keys for the last 24 hours
	now := time.Now()
	stats := make([]models.HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		hourKey := hour.Format("2006-01-02-15")

		stat := models.HourlyStat{
			Hour: hour.Format("15:00"),
		}

		if hourly, ok := c.hourlyStats[hourKey]; ok {
			stat.Requests = hourly.Requests
			stat.Errors = hourly.Errors
		}

		stats = append(stats, stat)
	}

	return stats
}

// Reset resets all statistics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.routes = make(map[int64]*models.AtomicRouteStat)
	c.unmatched = 0
	c.unmatchedTime = 0
	c.recentErrors = make([]models.ErrorStat, 0)
	c.hourlyStats = make(map[string]*hourlyCounter)
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
