package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timothyfroehlich/DisPinMap-sub000/pkg/health"
)

type statsResponse struct {
	Service   string          `json:"service"`
	Available bool            `json:"available"`
	Scheduler health.Snapshot `json:"scheduler"`
}

// NewRouter creates the restful web service reporting information about the worker
func NewRouter(service string, reporter health.Reporter) chi.Router {
	router := chi.NewRouter()

	// setup middleware
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.Timeout(30 * time.Second))

	router.With(render.SetContentType(render.ContentTypeJSON)).Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		result := statsResponse{
			Service: service,
		}
		if reporter != nil {
			result.Scheduler = reporter.Snapshot()
			result.Available = result.Scheduler.Running
		}

		if !result.Available {
			render.Status(r, http.StatusServiceUnavailable)
		}
		render.JSON(w, r, result)
	})

	router.Handle("/metrics", promhttp.Handler())

	return router
}

// NewHTTPServer creates the http server for the router on the given port
func NewHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
}
