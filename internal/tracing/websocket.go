package tracing

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/prasenjit/go-mockenv/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// maxBacklog caps the number of stored traces replayed on connect
	maxBacklog = 500
)

// WebSocketHandler streams traces to live clients. Query parameters
// environmentId, routeId, method, outcome and statusCode narrow the stream;
// backlog=N first replays the N most recent matching traces, oldest first.
type WebSocketHandler struct {
	service  *Service
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(service *Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ParseStreamFilter reads stream filters and the backlog size from URL query
// values
func ParseStreamFilter(q url.Values) (models.TraceFilter, int, error) {
	var (
		filter  models.TraceFilter
		backlog int
		err     error
	)

	if v := q.Get("environmentId"); v != "" {
		if filter.EnvironmentID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return filter, 0, err
		}
	}
	if v := q.Get("routeId"); v != "" {
		if filter.RouteID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return filter, 0, err
		}
	}
	if v := q.Get("statusCode"); v != "" {
		if filter.StatusCode, err = strconv.Atoi(v); err != nil {
			return filter, 0, err
		}
	}
	if v := q.Get("backlog"); v != "" {
		if backlog, err = strconv.Atoi(v); err != nil {
			return filter, 0, err
		}
		backlog = min(max(backlog, 0), maxBacklog)
	}
	filter.Method = strings.ToUpper(q.Get("method"))
	filter.Outcome = q.Get("outcome")

	return filter, backlog, nil
}

// ServeHTTP upgrades the connection and streams matching traces until either
// side goes away
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, backlog, err := ParseStreamFilter(r.URL.Query())
	if err != nil {
		http.Error(w, `{"error":"invalid stream filter"}`, http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Subscribe before replaying so nothing recorded in between is lost
	subID, traces := h.service.Subscribe(filter)
	defer h.service.Unsubscribe(subID)

	h.logger.Debug("Trace stream opened",
		zap.String("subscription", subID),
		zap.Int64("environment_id", filter.EnvironmentID),
		zap.Int("backlog", backlog))

	if backlog > 0 {
		recent := filter
		recent.Limit = backlog
		replay := h.service.GetTraces(&recent)
		for i := len(replay) - 1; i >= 0; i-- {
			if err := h.send(conn, replay[i]); err != nil {
				return
			}
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Clients only send control frames; reading surfaces disconnects
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case trace, ok := <-traces:
			if !ok {
				return
			}
			if err := h.send(conn, trace); err != nil {
				h.logger.Debug("Trace stream closed", zap.String("subscription", subID), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-gone:
			return
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, trace *models.Trace) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(trace)
}
