package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mdpipe/infra/multicast"
)

// Server is the HTTP query surface over the metrics store.
type Server struct {
	store *Store
	hub   *Hub
	sub   *multicast.Subscriber
	log   *zap.Logger
}

// NewServer wires the handlers. sub may be nil in tests; it only feeds the
// /api/v1/stats payload.
func NewServer(store *Store, hub *Hub, sub *multicast.Subscriber, log *zap.Logger) *Server {
	return &Server{store: store, hub: hub, sub: sub, log: log}
}

// Routes builds the handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/v1/books", s.handleBooks)
	mux.HandleFunc("GET /api/v1/books/{symbol}", s.handleBook)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.ServeWS)
	}
	return s.logging(mux)
}

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.log.Debug("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Int("bytes", sw.n),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbols": s.store.Symbols()})
}

func (s *Server) handleBooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"books": s.store.All()})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	m, ok := s.store.Get(symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"store": s.store.Stats()}
	if s.sub != nil {
		resp["subscriber"] = s.sub.Stats()
	}
	if s.hub != nil {
		resp["ws_publish_drops"] = s.hub.PublishDrops()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
