package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/medimesh/go-netdicom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"v.io/x/lib/vlog"
)

type associationView struct {
	CallingAETitle     string   `json:"calling_ae_title"`
	CalledAETitle      string   `json:"called_ae_title"`
	RemoteAddr         string   `json:"remote_addr,omitempty"`
	PeerMaxPDUSize     int      `json:"peer_max_pdu_size"`
	PeerImplementation string   `json:"peer_implementation,omitempty"`
	AcceptedContexts   []string `json:"accepted_contexts"`
}

func newAssociationView(c netdicom.ConnectionState) associationView {
	v := associationView{
		CallingAETitle:     c.CallingAETitle,
		CalledAETitle:      c.CalledAETitle,
		PeerMaxPDUSize:     c.PeerMaxPDUSize,
		PeerImplementation: c.PeerImplementationClassUID,
		AcceptedContexts:   []string{},
	}
	if c.RemoteAddr != nil {
		v.RemoteAddr = c.RemoteAddr.String()
	}
	for _, ctx := range c.Contexts {
		if ctx.Accepted() {
			v.AcceptedContexts = append(v.AcceptedContexts, ctx.AbstractSyntax)
		}
	}
	return v
}

type healthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	AETitle      string    `json:"ae_title"`
	Objects      int       `json:"objects"`
	Associations int       `json:"associations"`
}

// newAdminRouter serves the operational endpoints of the server: Prometheus
// metrics, a health check and the list of established associations.
func newAdminRouter(aeTitle string, sp *netdicom.ServiceProvider, ix *index, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, healthResponse{
			Status:       "healthy",
			Timestamp:    time.Now(),
			AETitle:      aeTitle,
			Objects:      ix.len(),
			Associations: len(sp.Associations()),
		})
	})
	r.Get("/associations", func(w http.ResponseWriter, _ *http.Request) {
		views := []associationView{}
		for _, c := range sp.Associations() {
			views = append(views, newAssociationView(c))
		}
		writeJSON(w, views)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		vlog.Errorf("admin: encode response: %v", err)
	}
}
