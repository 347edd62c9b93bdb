package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/poslane/api/controllers"
	"github.com/angelmondragon/poslane/api/middleware"
	"github.com/angelmondragon/poslane/internal/carts"
	"github.com/angelmondragon/poslane/internal/scan"
	"github.com/angelmondragon/poslane/internal/tabs"
	"github.com/angelmondragon/poslane/pkg/config"
	"github.com/angelmondragon/poslane/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Identity controllers.Identity

	TabStore   *tabs.Store
	Deletion   *tabs.DeletionController
	Reconciler controllers.ReconcileRunner
	CartSvc    *carts.Service
	Session    *scan.Session
	Queue      *scan.Queue

	// Pingers back the readiness probe; nil entries report as skipped.
	Pingers map[string]controllers.Pinger

	// Gatherer backs /metrics; nil hides the endpoint, as in tests.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the localhost API surface the lane UI talks to.
func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger
	identity := deps.Identity

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, logg, deps.Pingers))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tabs", func(r chi.Router) {
			r.Get("/", controllers.TabsList(deps.TabStore, identity, logg))
			r.Post("/", controllers.TabsCreate(deps.CartSvc, logg))
			r.Post("/reconcile", controllers.TabsReconcile(deps.Reconciler, identity, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/activate", controllers.TabsActivate(deps.TabStore, identity, logg))
				r.Delete("/", controllers.TabsDelete(deps.Deletion, identity, logg))
				r.Post("/checkout", controllers.Checkout(deps.CartSvc, logg))
				r.Route("/items/{itemID}", func(r chi.Router) {
					r.Post("/", controllers.ItemAdjust(deps.CartSvc, logg))
					r.Put("/price", controllers.ItemPrice(deps.CartSvc, logg))
					r.Delete("/", controllers.ItemDelete(deps.CartSvc, logg))
				})
			})
		})

		r.Route("/scan", func(r chi.Router) {
			r.Post("/", controllers.ScanSubmit(deps.Session, logg))
			r.Get("/queue", controllers.ScanQueue(deps.Queue))
			r.Route("/session", func(r chi.Router) {
				r.Get("/", controllers.ScanSessionStatus(deps.Session))
				r.Post("/", controllers.ScanSessionStart(deps.Session, logg))
				r.Delete("/", controllers.ScanSessionStop(deps.Session))
			})
		})
	})

	return r
}
