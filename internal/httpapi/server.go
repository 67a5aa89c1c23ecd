package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/solvegate/solvegate/internal/engine"
)

const (
	writeTimeout     = 10 * time.Second
	reconcileTimeout = 30 * time.Second
	limiterTTL       = 5 * time.Minute
)

type ServerConfig struct {
	// APIToken guards every /v1 route when set. WebSocket clients may pass it
	// as a ?token= query parameter since browsers cannot set headers there.
	APIToken           string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	Logger             *zap.SugaredLogger
}

type Server struct {
	engine *engine.Engine
	cfg    ServerConfig
	log    *zap.SugaredLogger
	hub    *eventHub

	limiterMu sync.Mutex
	limiters  map[string]*clientLimiter
}

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

func NewServer(eng *engine.Engine, cfg ServerConfig) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		engine:   eng,
		cfg:      cfg,
		log:      logger,
		hub:      newEventHub(),
		limiters: map[string]*clientLimiter{},
	}
}

// Broadcast is wired in as the engine's notifier.
func (s *Server) Broadcast(event engine.Event) {
	s.hub.broadcast(event)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/blocked" && r.Method == http.MethodGet {
		s.handleBlockPage(w, r)
		return
	}

	if !strings.HasPrefix(r.URL.Path, "/v1/") {
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
		return
	}

	correlationID := getCorrelationID(r)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if authErr := s.authorize(r); authErr != nil {
		writeError(w, authErr.status, authErr.code, authErr.message, correlationID)
		return
	}
	if !s.allowClient(r) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", correlationID)
		return
	}

	switch {
	case r.URL.Path == "/v1/state" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.engine.Snapshot())
	case r.URL.Path == "/v1/activity" && r.Method == http.MethodPost:
		s.handleActivity(w, r, correlationID)
	case r.URL.Path == "/v1/policy/evaluate" && r.Method == http.MethodPost:
		s.handleEvaluate(w, r, correlationID)
	case r.URL.Path == "/v1/bypass" && r.Method == http.MethodPost:
		writeJSON(w, http.StatusOK, s.engine.ActivateBypass())
	case r.URL.Path == "/v1/sync" && r.Method == http.MethodPost:
		s.handleSync(w, r)
	case r.URL.Path == "/v1/settings" && r.Method == http.MethodPost:
		s.handleSettings(w, r, correlationID)
	case r.URL.Path == "/v1/events" && r.Method == http.MethodGet:
		s.handleEvents(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", correlationID)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request, correlationID string) {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}
	if err := validateBody(activitySchema, body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid activity payload", correlationID)
		return
	}
	var event engine.ActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return
	}
	if event.CorrelationID == "" {
		event.CorrelationID = correlationID
	}
	writeJSON(w, http.StatusAccepted, s.engine.RecordActivity(event))
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, correlationID string) {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}
	if err := validateBody(evaluateSchema, body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid evaluate payload", correlationID)
		return
	}
	var req struct {
		URL     string `json:"url"`
		Focused bool   `json:"focused"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Evaluate(req.URL, req.Focused))
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reconcileTimeout)
	defer cancel()
	err := s.engine.Reconcile(ctx, engine.TriggerInteractive)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "snapshot": s.engine.Snapshot()})
	case errors.Is(err, engine.ErrRateLimited):
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "reason": "Sync requested too recently"})
	case errors.Is(err, engine.ErrNotConfigured):
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "reason": "No account configured"})
	case errors.Is(err, engine.ErrAuthRequired):
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "reason": "Sign-in required"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "reason": "Remote service unavailable"})
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, correlationID string) {
	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}
	if err := validateBody(settingsSchema, body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid settings payload", correlationID)
		return
	}
	req := struct {
		Username         string `json:"username"`
		DailyGoal        int    `json:"dailyGoal"`
		RequireDaily     bool   `json:"requireDaily"`
		NotifyOnComplete *bool  `json:"notifyOnComplete"`
	}{}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", correlationID)
		return
	}
	notify := true
	if req.NotifyOnComplete != nil {
		notify = *req.NotifyOnComplete
	}

	ctx, cancel := context.WithTimeout(r.Context(), reconcileTimeout)
	defer cancel()
	if err := s.engine.UpdateSettings(ctx, req.Username, req.DailyGoal, req.RequireDaily, notify); err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "bad_request", "dailyGoal must be between 1 and 30", correlationID)
			return
		}
		// Settings are committed even when the follow-up sync fails; report
		// the applied state.
		s.log.Debugw("post-settings reconcile failed", "error", err)
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

type authError struct {
	status  int
	code    string
	message string
}

func (s *Server) authorize(r *http.Request) *authError {
	token := strings.TrimSpace(s.cfg.APIToken)
	if token == "" {
		return nil
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if subtleEqual(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), token) {
			return nil
		}
		return &authError{status: http.StatusUnauthorized, code: "unauthorized", message: "invalid bearer token"}
	}
	if subtleEqual(r.URL.Query().Get("token"), token) {
		return nil
	}
	return &authError{status: http.StatusUnauthorized, code: "unauthorized", message: "missing bearer token"}
}

func subtleEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

func (s *Server) allowClient(r *http.Request) bool {
	if s.cfg.RateLimitPerMinute <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	now := time.Now()
	for key, entry := range s.limiters {
		if now.After(entry.expires) {
			delete(s.limiters, key)
		}
	}
	entry, ok := s.limiters[host]
	if !ok {
		burst := s.cfg.RateLimitPerMinute / 2
		if burst < 1 {
			burst = 1
		}
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.cfg.RateLimitPerMinute)), burst),
		}
		s.limiters[host] = entry
	}
	entry.expires = now.Add(limiterTTL)
	return entry.limiter.Allow()
}

func getCorrelationID(r *http.Request) string {
	return r.Header.Get("X-Correlation-Id")
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}
