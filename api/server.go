// Package api exposes the detection pipeline and the seat store over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/khaledhikmat/seat-go/pipeline"
	"github.com/khaledhikmat/seat-go/service/lgr"
)

const serviceName = "seat-detector"

type Server struct {
	svcs     pipeline.ServicesFactory
	pipeline *pipeline.Pipeline
	router   *mux.Router
	now      func() time.Time
}

func NewServer(svcs pipeline.ServicesFactory, p *pipeline.Pipeline) *Server {
	s := &Server{
		svcs:     svcs,
		pipeline: p,
		router:   mux.NewRouter(),
		now:      time.Now,
	}

	s.router.Use(requestID)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/ping", s.handlePing).Methods("GET")
	s.router.HandleFunc("/detect", s.handleDetect).Methods("POST")
	s.router.HandleFunc(pipeline.ResultsRoute+"{fname}", s.handleResult).Methods("GET")
	s.router.HandleFunc("/seats", s.handleSeats).Methods("GET")
	s.addMonitoringRoutes()

	return s
}

// Handler is the root handler. CORS runs before routing so preflights never reach mux, every
// other request is served under a server span.
func (s *Server) Handler() http.Handler {
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	}
	if s.svcs.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(s.svcs.TracerProvider))
	}
	return cors(otelhttp.NewHandler(s.router, serviceName, opts...))
}

func (s *Server) addMonitoringRoutes() {
	if registry := s.svcs.Metrics.Registry(); registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"service": serviceName,
		"time":    s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Connected to Library Wi-Fi",
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		headers := r.Header.Get("Access-Control-Request-Headers")
		if headers == "" {
			headers = "Content-Type"
		}
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Add("Vary", "Access-Control-Request-Headers")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		lgr.FromContext(r.Context()).Debug("request served",
			slog.String("requestID", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("took", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lgr.Logger.Error("error encoding response", slog.Any("error", xerrors.New(err)))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
