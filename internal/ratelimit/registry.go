package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultMaxClients bounds the number of per-client limiters kept in memory
const DefaultMaxClients = 10000

// Registry hands out one token bucket per client key
type Registry struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	all   *lru.Cache[string, *rate.Limiter]
}

// New creates a registry allowing rps requests per second per key with the
// given burst. A burst below one is raised to ceil(rps).
func New(rps float64, burst, maxClients int) *Registry {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if burst < 1 {
		burst = int(math.Ceil(rps))
		if burst < 1 {
			burst = 1
		}
	}
	c, _ := lru.New[string, *rate.Limiter](maxClients)
	return &Registry{limit: rate.Limit(rps), burst: burst, all: c}
}

// Get returns the limiter for key, creating it on first use
func (r *Registry) Get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.all.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(r.limit, r.burst)
	r.all.Add(key, lim)
	return lim
}

// Allow reports whether key may make a request now
func (r *Registry) Allow(key string) bool {
	return r.Get(key).Allow()
}

// Len returns the number of tracked clients
func (r *Registry) Len() int {
	return r.all.Len()
}

// Middleware rejects requests over the per-client-IP rate with 429. A nil
// registry lets everything through.
func Middleware(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil || r.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		retry := 1
		if r.limit > 0 {
			retry = int(math.Ceil(1 / float64(r.limit)))
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
