package overlay

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chzzk-auction/auctionsync/go/internal/auction/reconciler"
	"github.com/chzzk-auction/auctionsync/go/internal/auction/view"
	"github.com/chzzk-auction/auctionsync/go/internal/models"
)

// StateProvider is the read side of a running session
type StateProvider interface {
	View() view.View
	Canonical() reconciler.Canonical
}

// StateResponse is the canonical state as served on /api/state
type StateResponse struct {
	State   *models.GameState `json:"state"`
	Teams   []models.Team     `json:"teams"`
	Players []models.Player   `json:"players"`
	Seq     uint64            `json:"seq"`
}

// Handler serves the read-only overlay endpoints
type Handler struct {
	provider StateProvider
	gatherer prometheus.Gatherer
}

// NewHandler creates a new overlay handler. A nil gatherer disables /metrics.
func NewHandler(provider StateProvider, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		provider: provider,
		gatherer: gatherer,
	}
}

// HandleView handles GET /api/view
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.provider.View())
}

// HandleState handles GET /api/state
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c := h.provider.Canonical()
	resp := StateResponse{
		State:   c.State,
		Teams:   c.Teams,
		Players: c.Players,
		Seq:     c.Seq,
	}
	if resp.Teams == nil {
		resp.Teams = []models.Team{}
	}
	if resp.Players == nil {
		resp.Players = []models.Player{}
	}
	writeJSON(w, resp)
}

// HandleHealth reports ready once a baseline has been loaded
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !h.provider.Canonical().Initialized() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("SYNCING"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// RegisterRoutes registers the overlay routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/view", h.HandleView)
	mux.HandleFunc("/api/state", h.HandleState)
	mux.HandleFunc("/health", h.HandleHealth)
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// NewServer builds the overlay HTTP server with CORS and h2c.
func NewServer(port string, h *Handler) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode overlay response")
	}
}
