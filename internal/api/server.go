// Package api serves the fusion pipeline's state and controls over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.fusion/internal/db"
	"github.com/banshee-data/motion.fusion/internal/fusion"
	"github.com/banshee-data/motion.fusion/internal/monitoring"
	"github.com/banshee-data/motion.fusion/internal/report"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

var logf = monitoring.Prefixed("api")

// Pipeline is the part of fusion.Pipeline the API drives.
type Pipeline interface {
	Latest() *fusion.State
	StartListening()
	StopListening()
	Listening() bool
	ResetEstimator()
	RefreshRates() map[string]float64
	TickInterval() time.Duration
}

// Recording starts and stops a recorded run alongside listening.
type Recording interface {
	Start(notes string) error
	Stop() uuid.UUID
	Active() bool
}

// RunStore lists recorded runs and their ticks.
type RunStore interface {
	report.RunStore
	GetRun(id uuid.UUID) (db.Run, error)
}

type Server struct {
	pipeline Pipeline
	runs     RunStore  // nil without a database
	rec      Recording // nil without a database
	units    string
}

// NewServer serves p. runs and rec may be nil when no database is
// configured; the run endpoints then answer 404.
func NewServer(p Pipeline, runs RunStore, rec Recording, units string) *Server {
	return &Server{pipeline: p, runs: runs, rec: rec, units: units}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/transition", s.showTransition)
	mux.HandleFunc("/api/listen/start", s.startListening)
	mux.HandleFunc("/api/listen/stop", s.stopListening)
	mux.HandleFunc("/api/kalman/reset", s.resetEstimator)
	mux.HandleFunc("/api/rates", s.showRates)
	mux.HandleFunc("/api/runs", s.listRuns)
	if s.runs != nil {
		mux.Handle("/api/chart", report.ChartHandler(s.runs))
	}
	return mux
}
