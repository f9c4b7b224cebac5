package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"toursync/internal/config"
	"toursync/internal/domain"
	"toursync/internal/metrics"
	"toursync/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP transport in front of a Gateway.
type Server struct {
	cfg     config.GatewayConfig
	gateway *Gateway
	hub     *Hub
	limiter ratelimit.Limiter
	auth    *HTTPAuth
	logger  zerolog.Logger
	router  chi.Router
	server  *http.Server
}

// NewServer wires routes. limiter and hub may be nil to disable rate
// limiting and the event stream.
func NewServer(cfg config.GatewayConfig, gw *Gateway, hub *Hub, limiter ratelimit.Limiter, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		gateway: gw,
		hub:     hub,
		limiter: limiter,
		auth:    NewHTTPAuth(cfg),
		logger:  zerolog.Nop(),
	}
	if logger != nil {
		s.logger = logger.With().Str("component", "http").Logger()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Wrap)
		r.Use(s.rateLimit)

		r.Get("/api/v1/channels", s.handleChannels)
		r.Post("/api/v1/invoke/{channel}", s.handleInvoke)
		if hub != nil {
			r.Get(eventsPath, hub.HandleWS)
		}
	})

	s.router = r
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("gateway listening")
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		allowed, err := s.limiter.Allow(r.Context(), rateLimitKey(r))
		if err != nil {
			s.logger.Warn().Err(err).Msg("rate limiter error, allowing request")
			allowed = true
		}
		if !allowed {
			metrics.IncRateLimited()
			writeJSON(w, http.StatusTooManyRequests, Response{Error: &ErrorBody{Kind: "rate_limited", Message: "rate limit exceeded"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.gateway.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database not connected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"channels": channelInfos()})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	ch := Channel(chi.URLParam(r, "channel"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeFailure(w, r, fmt.Errorf("%w: read body: %v", domain.ErrValidation, err))
		return
	}

	result, err := s.gateway.Invoke(r.Context(), ch, body)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	if ch.FireAndForget() {
		writeJSON(w, http.StatusAccepted, Response{})
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.writeFailure(w, r, fmt.Errorf("encode %s result: %w", ch, err))
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: raw})
}

// writeFailure maps an error kind to a status. Connection and internal
// messages are replaced so driver text never reaches the client.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, message := statusFor(kind, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("kind", string(kind)).Msg("invoke error")
	}
	writeJSON(w, status, Response{Error: &ErrorBody{Kind: kind, Message: message}})
}

func statusFor(kind domain.Kind, err error) (int, string) {
	switch kind {
	case domain.KindConnection:
		return http.StatusServiceUnavailable, "database unavailable"
	case domain.KindValidation:
		return http.StatusBadRequest, err.Error()
	case domain.KindNotFound:
		return http.StatusNotFound, err.Error()
	case domain.KindReferentialIntegrity:
		return http.StatusConflict, err.Error()
	case domain.KindUnknownChannel:
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
