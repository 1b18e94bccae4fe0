package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calderonlabs/tienda-backend/api/controllers"
	"github.com/calderonlabs/tienda-backend/api/middleware"
	"github.com/calderonlabs/tienda-backend/internal/cart"
	"github.com/calderonlabs/tienda-backend/internal/catalog"
	"github.com/calderonlabs/tienda-backend/pkg/config"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
	"github.com/calderonlabs/tienda-backend/pkg/metrics"
	"github.com/calderonlabs/tienda-backend/pkg/redis"
	"github.com/calderonlabs/tienda-backend/pkg/twilio"
)

// Deps carries everything the HTTP surface needs. Agent-facing fields may be
// nil: the webhook route is only mounted when a turn runner exists.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    *redis.Client
	Catalog  catalog.Service
	Cart     cart.Service
	Agent    controllers.TurnRunner
	Sender   twilio.Sender
	Metrics  *metrics.AgentMetrics
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(deps.Config))
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, readyCache(deps.Redis)))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(deps.Catalog, deps.Logger))
			r.Get("/{categoryID}", controllers.GetCategory(deps.Catalog, deps.Logger))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Catalog, deps.Logger))
			r.Get("/{productID}", controllers.GetProduct(deps.Catalog, deps.Logger))
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.CreateCart(deps.Cart, deps.Logger))
			r.Put("/{cartID}", controllers.UpdateCart(deps.Cart, deps.Logger))
			r.Get("/{cartID}", controllers.GetCartByID(deps.Cart, deps.Logger))
			r.Get("/phone/{phone}", controllers.GetCartByPhone(deps.Cart, deps.Logger))
			r.Post("/phone/{phone}/items", controllers.MergeCartItems(deps.Cart, deps.Logger))
		})

		if deps.Agent != nil {
			r.Route("/chat", func(r chi.Router) {
				r.Post("/webhook/twilio", controllers.TwilioWebhook(
					deps.Agent, deps.Sender, deps.Redis, deps.Logger, deps.Metrics,
				))
			})
		}
	})

	return r
}

// readyCache hides the typed-nil pitfall when no Redis is configured.
func readyCache(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}
