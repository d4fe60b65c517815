// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/captain108/FileToLink-cap/internal/balancer"
	"github.com/captain108/FileToLink-cap/internal/delivery"
	"github.com/captain108/FileToLink-cap/internal/link"
	"github.com/captain108/FileToLink-cap/internal/logging"
	"github.com/captain108/FileToLink-cap/internal/metrics"
	"github.com/captain108/FileToLink-cap/internal/preview"
	"github.com/captain108/FileToLink-cap/internal/quota"
)

// DefaultProjectURL is where GET / redirects to.
const DefaultProjectURL = "https://github.com/fyaz05/FileToLink"

// Options holds the server's static settings.
type Options struct {
	Version     string
	ProjectURL  string
	BotUsername string
	StartTime   time.Time
}

// Server is the HTTP server.
type Server struct {
	gateway  *delivery.Gateway
	registry *balancer.Registry
	renderer *preview.Renderer
	limiter  *quota.RateLimiter
	opts     Options
}

// NewServer creates a new server.
func NewServer(
	gateway *delivery.Gateway,
	registry *balancer.Registry,
	renderer *preview.Renderer,
	limiter *quota.RateLimiter,
	opts Options,
) *Server {
	if opts.ProjectURL == "" {
		opts.ProjectURL = DefaultProjectURL
	}
	if opts.StartTime.IsZero() {
		opts.StartTime = time.Now()
	}
	if limiter == nil {
		limiter = quota.NewRateLimiter(0)
	}
	return &Server{
		gateway:  gateway,
		registry: registry,
		renderer: renderer,
		limiter:  limiter,
		opts:     opts,
	}
}

// Handler returns the HTTP handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("OPTIONS /", s.handleOptions)
	mux.HandleFunc("GET /watch/{path...}", s.handlePreview)
	mux.HandleFunc("GET /{path...}", s.handleMedia)

	// Metrics sit directly on the mux so r.Pattern is set when they record.
	var h http.Handler = metrics.Middleware(mux)
	h = quota.RateLimitMiddleware(s.limiter)(h)
	h = rejectHEAD(h)
	h = cors(h)
	h = logging.Middleware(h)
	h = middleware.Recoverer(h)
	return middleware.RealIP(h)
}

// ─── Root / Status / Preflight ──────────────────────────────────────────────

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.opts.ProjectURL, http.StatusFound)
}

type statusResponse struct {
	Server serverStatus `json:"server"`
	Bot    botStatus    `json:"bot"`
}

type serverStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

type botStatus struct {
	Username      string         `json:"username"`
	ActiveClients int            `json:"active_clients"`
	Workloads     map[string]int `json:"workloads"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	username := ""
	if s.opts.BotUsername != "" {
		username = "@" + s.opts.BotUsername
	}
	s.sendJSON(w, http.StatusOK, statusResponse{
		Server: serverStatus{
			Status:  "operational",
			Version: s.opts.Version,
			Uptime:  readableDuration(time.Since(s.opts.StartTime)),
		},
		Bot: botStatus{
			Username:      username,
			ActiveClients: s.registry.Count(),
			Workloads:     s.registry.Workloads(),
		},
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusOK)
}

// ─── Preview / Media ────────────────────────────────────────────────────────

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lnk, err := link.Parse(rawPath(r, "/watch/"), r.URL.Query())
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	page, err := s.renderer.Render(ctx, lnk.ObjectID, lnk.SecretHash, preview.ActionStream)
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, page)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.gateway.Serve(w, r, rawPath(r, "/"))
}

// rawPath returns the still-escaped request path after prefix. Link decoding
// does its own unescaping, so the mux's decoded wildcard is not used.
func rawPath(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.EscapedPath(), prefix)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// sendError writes the generic response for err and logs the cause.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := delivery.StatusFor(err)
	logging.WithContext(r.Context()).Debug("request rejected",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err))
	http.Error(w, msg, status)
}
