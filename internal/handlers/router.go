package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/upfront-market/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	metrics     http.Handler
	media       http.Handler

	public     RouteRegistrar
	storefront RouteRegistrar
	me         RouteRegistrar
	vendor     RouteRegistrar
	admin      RouteRegistrar
	webhooks   RouteRegistrar

	webhookMiddlewares []func(http.Handler) http.Handler
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the API route groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}
	if cfg.media != nil {
		r.Method(http.MethodGet, "/media/*", cfg.media)
		r.Method(http.MethodHead, "/media/*", cfg.media)
	}

	r.Route(cfg.basePath, func(api chi.Router) {
		mount := func(path string, registrar RouteRegistrar, name string, groupMW []func(http.Handler) http.Handler) {
			api.Route(path, func(group chi.Router) {
				for _, mw := range groupMW {
					if mw != nil {
						group.Use(mw)
					}
				}
				if registrar != nil {
					registrar(group)
					return
				}
				registerNotImplemented(group, name)
			})
		}

		mount("/public", cfg.public, "public", nil)
		mount("/me", cfg.me, "me", nil)
		mount("/vendor", cfg.vendor, "vendor", nil)
		mount("/admin", cfg.admin, "admin", nil)
		mount("/webhooks", cfg.webhooks, "webhooks", cfg.webhookMiddlewares)
		if cfg.storefront != nil {
			api.Group(func(group chi.Router) {
				cfg.storefront(group)
			})
		} else {
			for _, path := range []string{"/cart", "/cart-detail", "/orders", "/coupon", "/checkout", "/payment-success", "/order", "/reviews"} {
				mount(path, nil, "storefront", nil)
			}
		}
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithMetricsHandler exposes the Prometheus scrape endpoint at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.metrics = h
	}
}

// WithMediaHandler serves /media/* outside the API prefix.
func WithMediaHandler(h http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.media = h
	}
}

// WithPublicRoutes configures the registrar responsible for public catalog endpoints.
func WithPublicRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.public = reg
	}
}

// WithStorefrontRoutes configures the cart, order, coupon, payment and review endpoints mounted directly
// under the API prefix.
func WithStorefrontRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.storefront = reg
	}
}

// WithMeRoutes configures the registrar responsible for buyer scoped endpoints.
func WithMeRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.me = reg
	}
}

// WithVendorRoutes configures the registrar responsible for the vendor dashboard.
func WithVendorRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.vendor = reg
	}
}

// WithAdminRoutes configures the registrar responsible for admin endpoints.
func WithAdminRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.admin = reg
	}
}

// WithWebhookRoutes configures the registrar responsible for webhook endpoints.
func WithWebhookRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.webhooks = reg
	}
}

// WithWebhookMiddlewares configures middlewares applied to the /webhooks group.
func WithWebhookMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.webhookMiddlewares = append(cfg.webhookMiddlewares, mw...)
	}
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
