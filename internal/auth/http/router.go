package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/aussiebroadwan/kanban/pkg/httpx"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RateLimits are the profiles applied per route group. Zero values disable
// limiting for that group.
type RateLimits struct {
	Strict   httpx.RateLimitConfig `envPrefix:"STRICT_"`
	Moderate httpx.RateLimitConfig `envPrefix:"MODERATE_"`
	Lenient  httpx.RateLimitConfig `envPrefix:"LENIENT_"`
}

// DefaultRateLimits returns the built-in profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     httpx.TokenVerifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	SessionService *service.SessionService
	UserService    *service.UserService
	Principals     *service.PrincipalResolver

	// Gatherer backs /metrics. Nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer
	Limits   RateLimits
}

func NewRouter(
	verifier httpx.TokenVerifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Principals:   &service.PrincipalResolver{Store: st},
		Limits:       DefaultRateLimits(),
	}
}

// ApplyRoutes registers every endpoint. Services must be set first.
func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Authenticate(r.verifier, principalAdapter{r.Principals}),
	}

	r.registerAuth()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured wraps h for endpoints that need a signed-in user.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.RequireAuth,
		httpx.RateLimitByPrincipal(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Sessions: r.SessionService}

	// Credential endpoints: strict per-address limits against guessing.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister), httpx.RateLimitByIP(r.Limits.Strict)),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin), httpx.RateLimitByIP(r.Limits.Strict)),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh), httpx.RateLimitByIP(r.Limits.Moderate)),
	)

	r.Mux.Handle("POST /v1/auth/logout", r.secured(h.HandleLogout, r.Limits.Moderate))
	r.Mux.Handle("GET /v1/auth/sessions", r.secured(h.HandleSessions, r.Limits.Lenient))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{Users: r.UserService}

	r.Mux.Handle("GET /v1/users/me", r.secured(h.HandleMe, r.Limits.Lenient))
	r.Mux.Handle("DELETE /v1/users/me", r.secured(h.HandleDelete, r.Limits.Strict))
	r.Mux.Handle("PUT /v1/users/me/image", r.secured(h.HandlePutImage, r.Limits.Moderate))
	r.Mux.Handle("GET /v1/users/me/image", r.secured(h.HandleGetImage, r.Limits.Lenient))
}

func (r *Router) registerSystem() {
	// Monitoring may poll often; probes are not rate limited.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}))
	}
}
