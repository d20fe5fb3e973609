package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"civicvoice/internal/auth"
	"civicvoice/internal/logging"
	"civicvoice/internal/metrics"
	"civicvoice/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

type HTTPServer struct {
	service        *Service
	corsOrigin     string
	metricsHandler http.Handler
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

// NewHTTPServer wires the JSON API. metricsHandler is mounted at /metrics when non-nil.
func NewHTTPServer(service *Service, corsOrigin string, metricsHandler http.Handler) *HTTPServer {
	return &HTTPServer{
		service:        service,
		corsOrigin:     corsOrigin,
		metricsHandler: metricsHandler,
		logger:         service.logger,
		metrics:        service.metrics,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.handleAuthSignUp)
		r.Post("/signin", s.handleAuthSignIn)
		r.Post("/reset-password/request", s.handleAuthRequestReset)
		r.Post("/reset-password", s.handleAuthResetPassword)
	})

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleSession)
		r.Post("/guest", s.handleSessionGuest)
		r.Post("/refresh", s.handleSessionRefresh)
		r.Post("/logout", s.handleSessionLogout)
	})
	r.Get("/api/me", s.handleMe)

	r.Route("/api/complaints", func(r chi.Router) {
		r.Post("/", s.handleCreateComplaint)
		r.Get("/", s.handleListComplaints)
		r.Route("/{complaintID}", func(r chi.Router) {
			r.Get("/", s.handleGetComplaint)
			r.Delete("/", s.handleDeleteComplaint)
			r.Put("/status", s.handleTransitionStatus)
			r.Get("/attachment", s.handleAttachment)
			r.Post("/feedback", s.handleSubmitFeedback)
		})
	})

	r.Get("/api/feedback", s.handleListFeedback)
	r.Post("/api/sentiment/analyze", s.handleAnalyzeSentiment)
	r.Get("/api/admin/summary", s.handleSummary)

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	results, err := s.service.Ping(ctx)
	if err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	for name, checkErr := range results {
		if checkErr != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": checkErr.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// requireActor authenticates the bearer token and insists on a principal.
func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	actor, err := s.service.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return Actor{}, false
	}
	if !actor.Authenticated() {
		s.writeServiceError(w, r, authenticationRequired())
		return Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), s.logger).Error("request failed",
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = util.NewID("req")
		}
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.metrics.IncrementHTTPRequest(r.Method, strconv.Itoa(writer.status))
		s.logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Status != 0 {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Session expired or invalid", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fieldInvalid(name, name+" must be a positive number.")
	}
	return value, nil
}
