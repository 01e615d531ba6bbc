package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/callbridge/internal/call"
	"github.com/ent0n29/callbridge/internal/config"
	"github.com/ent0n29/callbridge/internal/observability"
)

// Server exposes the telephony-facing HTTP surface: websocket endpoints for
// the media stream and the observer leg, TwiML issuance and static
// configuration.
type Server struct {
	cfg      config.Config
	registry *call.Registry
	metrics  *observability.Metrics
	log      *zap.Logger
	upgrader websocket.Upgrader
	twiml    string
}

func New(cfg config.Config, registry *call.Registry, metrics *observability.Metrics, twimlTemplate string, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		metrics:  metrics,
		log:      logger,
		twiml:    twimlTemplate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Telephony media streams do not send a browser Origin; the
				// observer leg may. Origin checking is configurable so local
				// dashboards can connect.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/public-url", s.handlePublicURL)
	r.Get("/twiml", s.handleTwiML)
	r.Post("/twiml", s.handleTwiML)

	r.Get("/call", s.handleCall)
	r.Get("/logs", s.handleLogs)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.registry.ActiveCount(),
	})
}

func (s *Server) handlePublicURL(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"publicUrl": s.cfg.PublicURL})
}

func (s *Server) handleTwiML(w http.ResponseWriter, _ *http.Request) {
	if strings.TrimSpace(s.cfg.PublicURL) == "" {
		respondError(w, http.StatusInternalServerError, "unconfigured", "PUBLIC_URL is not configured")
		return
	}
	if strings.TrimSpace(s.twiml) == "" {
		respondError(w, http.StatusInternalServerError, "unconfigured", "TwiML template not loaded")
		return
	}

	wsURL, err := StreamURL(s.cfg.PublicURL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "bad_public_url", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(strings.ReplaceAll(s.twiml, "{{WS_URL}}", wsURL)))
}

// StreamURL derives the websocket media-stream URL from the public HTTP URL:
// https becomes wss, http becomes ws, and the /call path is appended.
func StreamURL(publicURL string) (string, error) {
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host + strings.TrimRight(u.Path, "/") + "/call", nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
