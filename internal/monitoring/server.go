package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
)

// LaneSnapshotter reports the state of every scheduled lane.
type LaneSnapshotter interface {
	Snapshot() []model.LaneState
}

// Pinger checks a backing dependency, typically the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter mounts /metrics, /healthz and /lanes. Nil lanes or db drop the
// corresponding detail rather than the route.
func NewRouter(m *Metrics, lanes LaneSnapshotter, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/lanes", func(w http.ResponseWriter, _ *http.Request) {
		states := []model.LaneState{}
		if lanes != nil {
			states = lanes.Snapshot()
		}
		writeJSON(w, http.StatusOK, states)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("monitoring: write response failed", zap.Error(err))
	}
}

// Server is the metrics and status listener used by the schedule command.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr. Serving starts with Serve.
func Listen(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, eris.Wrapf(err, "monitoring: listen on %s", addr)
	}
	return &Server{
		srv: &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	zap.L().Info("monitoring: server listening", zap.String("component", "monitoring"), zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "monitoring: serve")
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return eris.Wrap(s.srv.Shutdown(ctx), "monitoring: shutdown")
}
