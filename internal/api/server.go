// Package api provides the HTTP server for Kudimu.
// Handlers are thin: they decode the request, call one service operation and
// map domain error kinds onto status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kudimu-insights/kudimu/internal/app/credit"
	"github.com/kudimu-insights/kudimu/internal/app/engagement"
	"github.com/kudimu-insights/kudimu/internal/app/submission"
	"github.com/kudimu-insights/kudimu/internal/domain"
	"github.com/kudimu-insights/kudimu/internal/health"
)

// UserHeader carries the caller's user id.
const UserHeader = "X-User-ID"

// Services bundles the operations the API exposes.
type Services struct {
	Submissions *submission.Service
	Profiles    *engagement.Profiles
	Ledger      *engagement.Ledger
	Rewards     *credit.RewardEngine
	Withdrawals *credit.WithdrawalProcessor
	Health      *health.Checker
}

// Options tunes the router.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	Metrics        bool
}

// Server is the Kudimu HTTP API server.
type Server struct {
	svc  Services
	opts Options
	log  *zap.Logger
}

// NewServer creates a new API server.
func NewServer(svc Services, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{svc: svc, opts: opts, log: log}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/answers", s.handleSubmit)

	r.Route("/reputation", func(r chi.Router) {
		r.Get("/ranking", s.handleRanking)
		r.Get("/{user}", s.handleProfile)
		r.Get("/{user}/medals", s.handleMedals)
	})

	r.Route("/rewards", func(r chi.Router) {
		r.Get("/{user}/history", s.handleHistory)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/validate", s.handleValidateReward)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/withdrawals", s.handlePendingWithdrawals)
		r.Post("/withdrawals/{id}/confirm", s.handleConfirmWithdrawal)
		r.Post("/rewards/credit", s.handleCredit)
		r.Patch("/answers/{id}", s.handleOverrideAnswer)
		r.Post("/reputation/{user}/actions", s.handleApplyAction)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.svc.Health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.svc.Health.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// callerID returns the X-User-ID header or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header")
		return "", false
	}
	return id, true
}

// decode reads a JSON body into v or writes a 400.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps a service error onto a status code and body.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	body := map[string]interface{}{
		"message": de.Error(),
		"type":    string(de.Kind),
	}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	writeJSON(w, statusFor(de.Kind), map[string]interface{}{"error": body})
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindValidationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// corsMiddleware adds CORS headers for the configured origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.opts.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
