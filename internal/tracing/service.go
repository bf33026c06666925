package tracing

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// DefaultMaxTraces is used when no positive buffer size is configured
const DefaultMaxTraces = 1000

// subscriberBuffer is how many traces a slow subscriber may fall behind
// before new ones are dropped for it
const subscriberBuffer = 100

type subscriber struct {
	ch     chan *models.Trace
	filter models.TraceFilter
}

// Service keeps the most recent resolution traces and fans new ones out to
// live subscribers
type Service struct {
	mu          sync.RWMutex
	traces      []*models.Trace // arrival order, oldest first
	maxTraces   int
	retention   time.Duration
	subscribers map[string]subscriber
}

// Stats describes the trace buffer
type Stats struct {
	TotalTraces       int    `json:"totalTraces"`
	MaxTraces         int    `json:"maxTraces"`
	Retention         string `json:"retention"`
	ActiveSubscribers int    `json:"activeSubscribers"`
}

// NewService creates a new tracing service. Traces older than retention are
// dropped as new ones arrive; zero keeps them until evicted by maxTraces.
func NewService(maxTraces int, retention time.Duration) *Service {
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}

	return &Service{
		maxTraces:   maxTraces,
		retention:   retention,
		subscribers: make(map[string]subscriber),
	}
}

// RecordTrace stores trace, assigning an ID and timestamp when missing, and
// hands it to every subscriber whose filter it matches. Subscribers that are
// not keeping up miss the trace rather than block the caller.
func (s *Service) RecordTrace(trace *models.Trace) {
	if trace.ID == "" {
		trace.ID = uuid.New().String()
	}
	if trace.Timestamp.IsZero() {
		trace.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.traces = append(s.traces, trace)
	if over := len(s.traces) - s.maxTraces; over > 0 {
		s.traces = slices.Delete(s.traces, 0, over)
	}
	s.expireLocked(time.Now())

	defer s.mu.Unlock()

	// Sends never block, and holding the lock keeps Unsubscribe from
	// closing a channel mid-send
	for _, sub := range s.subscribers {
		if !matches(trace, &sub.filter) {
			continue
		}
		select {
		case sub.ch <- trace:
		default:
		}
	}
}

// expireLocked drops traces older than the retention window. Traces are kept
// in arrival order, so the expired ones form a prefix.
func (s *Service) expireLocked(now time.Time) {
	if s.retention <= 0 {
		return
	}

	cutoff := now.Add(-s.retention)
	i := 0
	for i < len(s.traces) && s.traces[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.traces = slices.Delete(s.traces, 0, i)
	}
}

// GetTraces returns traces matching the filter, newest first. A nil filter
// matches everything.
func (s *Service) GetTraces(filter *models.TraceFilter) []*models.Trace {
	if filter == nil {
		filter = &models.TraceFilter{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Trace, 0)
	skipped := 0

	for i := len(s.traces) - 1; i >= 0; i-- {
		trace := s.traces[i]
		if !matches(trace, filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}

		result = append(result, trace)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result
}

func matches(trace *models.Trace, filter *models.TraceFilter) bool {
	switch {
	case filter.EnvironmentID != 0 && trace.EnvironmentID != filter.EnvironmentID:
		return false
	case filter.RouteID != 0 && trace.RouteID != filter.RouteID:
		return false
	case filter.Method != "" && trace.Request.Method != filter.Method:
		return false
	case filter.Outcome != "" && trace.Outcome != filter.Outcome:
		return false
	case filter.StatusCode != 0 && trace.Response.StatusCode != filter.StatusCode:
		return false
	case !filter.StartTime.IsZero() && trace.Timestamp.Before(filter.StartTime):
		return false
	case !filter.EndTime.IsZero() && trace.Timestamp.After(filter.EndTime):
		return false
	}
	return true
}

// GetTrace returns a single trace by ID, or nil
func (s *Service) GetTrace(id string) *models.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := slices.IndexFunc(s.traces, func(t *models.Trace) bool { return t.ID == id })
	if i < 0 {
		return nil
	}
	return s.traces[i]
}

// ClearTraces removes all traces
func (s *Service) ClearTraces() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = nil
}

// ClearTracesByEnvironment removes the traces of one environment
func (s *Service) ClearTracesByEnvironment(envID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces = slices.DeleteFunc(s.traces, func(t *models.Trace) bool {
		return t.EnvironmentID == envID
	})
}

// Subscribe registers a live subscriber receiving new traces that match
// filter. Paging and time-window fields of the filter are ignored.
func (s *Service) Subscribe(filter models.TraceFilter) (string, <-chan *models.Trace) {
	filter.Limit, filter.Offset = 0, 0
	filter.StartTime, filter.EndTime = time.Time{}, time.Time{}

	sub := subscriber{
		ch:     make(chan *models.Trace, subscriberBuffer),
		filter: filter,
	}
	id := uuid.New().String()

	s.mu.Lock()
	s.subscribers[id] = sub
	s.mu.Unlock()

	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subscribers[id]; ok {
		close(sub.ch)
		delete(s.subscribers, id)
	}
}

// GetStats returns tracing statistics
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		TotalTraces:       len(s.traces),
		MaxTraces:         s.maxTraces,
		Retention:         s.retention.String(),
		ActiveSubscribers: len(s.subscribers),
	}
}
