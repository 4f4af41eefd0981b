package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technosupport/hikbridge/internal/bridge"
	"github.com/technosupport/hikbridge/internal/data"
	"github.com/technosupport/hikbridge/internal/state"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Repo     data.DeviceRepository
	Creds    data.CredentialRepository
	Manager  *bridge.Manager
	States   *state.Store
	Listener http.Handler // device notification callbacks
	Hub      *Hub
	// ListenerPath is where devices POST alerts, normally /api/hikvision.
	ListenerPath string
}

func NewRouter(deps RouterDeps) http.Handler {
	devices := &DeviceHandler{Repo: deps.Repo, Creds: deps.Creds, Manager: deps.Manager}
	events := &EventHandler{Manager: deps.Manager, States: deps.States}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Device-facing callback: cameras and recorders POST alerts here. It
	// must stay outside /api/v1 because the path is pushed to devices.
	path := deps.ListenerPath
	if path == "" {
		path = "/api/hikvision"
	}
	r.Handle(path, deps.Listener)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Post("/", devices.Create)
			r.Get("/", devices.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", devices.Get)
				r.Put("/", devices.Update)
				r.Delete("/", devices.Delete)
				r.Get("/model", devices.Model)
				r.Get("/diagnostics", devices.Diagnostics)
				r.Post("/reboot", devices.Reboot)
				r.Put("/holiday", devices.SetHoliday)
				r.Put("/io/{port}", devices.SetOutputPort)
				r.Route("/channels/{channel}", func(r chi.Router) {
					r.Get("/snapshot", events.Snapshot)
					r.Get("/events/{event}", events.GetEventState)
					r.Put("/events/{event}", events.SetEventState)
				})
			})
		})
		r.Get("/alerts", events.ActiveAlerts)
		if deps.Hub != nil {
			r.Get("/events/ws", deps.Hub.ServeWS)
		}
	})

	return r
}
