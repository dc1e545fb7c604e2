package api

import (
	"io/fs"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/summerlia/zhuhaibay/services"
	"github.com/summerlia/zhuhaibay/storage"
	"github.com/summerlia/zhuhaibay/utils"
)

// Deps are the collaborators the HTTP layer needs. Static may be nil.
type Deps struct {
	Store     storage.SnapshotStore
	Refresher RefreshController
	Insights  *services.InsightService
	Registry  *prometheus.Registry
	Static    fs.FS
	Logger    *utils.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = utils.Discard()
	}
	if d.Insights == nil {
		d.Insights = services.NewInsightService(d.Logger)
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	h := &Handler{
		store:     d.Store,
		refresher: d.Refresher,
		insights:  d.Insights,
		logger:    d.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/records", h.Records)
	mux.HandleFunc("GET /api/latest", h.Latest)
	mux.HandleFunc("GET /api/properties", h.Properties)
	mux.HandleFunc("GET /api/properties/latest", h.LatestProperties)
	mux.HandleFunc("GET /api/property/{name}", h.PropertyHistory)
	mux.HandleFunc("POST /api/refresh", h.Refresh)
	mux.HandleFunc("GET /api/refresh/status", h.RefreshStatus)
	mux.HandleFunc("GET /api/insights", h.Insights)
	mux.HandleFunc("GET /api/", h.NotFound)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	if d.Static != nil {
		mux.Handle("GET /", http.FileServerFS(d.Static))
	}

	return Chain(mux,
		Recovery(d.Logger),
		WithRequestID(),
		CORS(),
		Instrument(d.Registry),
		Logging(d.Logger),
	)
}
