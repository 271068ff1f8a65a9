package careserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
	// Roles restricts the route to these roles; empty allows any authenticated caller.
	Roles []identity.Role
}

// APIPrefix is where every authenticated route is mounted.
const APIPrefix = "/api/v1"

// ApiHandleFunctions groups the handlers of each API.
type ApiHandleFunctions struct {
	ApplicationAPI ApplicationAPI
	PaymentAPI     PaymentAPI
	HandoverAPI    HandoverAPI
}

type routerConfig struct {
	authenticator  *Authenticator
	verifyLimiter  *KeyedLimiter
	metricsHandler http.Handler
	readiness      func() error
}

// RouterOption customises the router.
type RouterOption func(*routerConfig)

// WithAuthenticator verifies bearer tokens on every /api/v1 route.
func WithAuthenticator(a *Authenticator) RouterOption {
	return func(cfg *routerConfig) { cfg.authenticator = a }
}

// WithVerifyLimiter throttles handover verification per caller.
func WithVerifyLimiter(l *KeyedLimiter) RouterOption {
	return func(cfg *routerConfig) { cfg.verifyLimiter = l }
}

// WithMetricsHandler exposes h on GET /metrics.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(cfg *routerConfig) { cfg.metricsHandler = h }
}

// WithReadiness makes /healthz report 503 while check fails.
func WithReadiness(check func() error) RouterOption {
	return func(cfg *routerConfig) { cfg.readiness = check }
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions, opts ...RouterOption) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), handleFunctions, opts...)
}

// NewRouterWithGinEngine adds the routes to an existing gin engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions, opts ...RouterOption) *gin.Engine {
	cfg := routerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	router.GET("/healthz", healthHandler(cfg.readiness))
	if cfg.metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.metricsHandler))
	}

	api := router.Group(APIPrefix)
	api.Use(authenticate(cfg.authenticator))
	for _, route := range getRoutes(handleFunctions, cfg) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		handlers := []gin.HandlerFunc{}
		if len(route.Roles) > 0 {
			handlers = append(handlers, requireRoles(route.Roles...))
		}
		handlers = append(handlers, route.HandlerFunc)
		switch route.Method {
		case http.MethodGet:
			api.GET(route.Pattern, handlers...)
		case http.MethodPost:
			api.POST(route.Pattern, handlers...)
		case http.MethodPut:
			api.PUT(route.Pattern, handlers...)
		case http.MethodPatch:
			api.PATCH(route.Pattern, handlers...)
		case http.MethodDelete:
			api.DELETE(route.Pattern, handlers...)
		}
	}
	return router
}

// DefaultHandleFunc is the default handler for routes without one.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

var (
	ownerOnly = []identity.Role{identity.RoleOwner}
	staffOnly = []identity.Role{identity.RoleStaff, identity.RoleAdmin}
	adminOnly = []identity.Role{identity.RoleAdmin}
)

func getRoutes(h ApiHandleFunctions, cfg routerConfig) []Route {
	verify := h.HandoverAPI.VerifyHandover
	if cfg.verifyLimiter != nil {
		verify = chain(cfg.verifyLimiter.Middleware(), verify)
	}
	return []Route{
		{"SubmitApplication", http.MethodPost, "/applications", h.ApplicationAPI.SubmitApplication, ownerOnly},
		{"ListApplications", http.MethodGet, "/applications", h.ApplicationAPI.ListApplications, staffOnly},
		{"ListMyApplications", http.MethodGet, "/applications/mine", h.ApplicationAPI.ListMyApplications, ownerOnly},
		{"GetApplication", http.MethodGet, "/applications/:id", h.ApplicationAPI.GetApplication, nil},
		{"SetPricing", http.MethodPost, "/applications/:id/pricing", h.ApplicationAPI.SetPricing, staffOnly},
		{"RejectPricing", http.MethodPost, "/applications/:id/reject-pricing", h.ApplicationAPI.RejectPricing, ownerOnly},
		{"ApproveApplication", http.MethodPost, "/applications/:id/approve", h.ApplicationAPI.Approve, staffOnly},
		{"RejectApplication", http.MethodPost, "/applications/:id/reject", h.ApplicationAPI.Reject, staffOnly},
		{"GenerateFinalBill", http.MethodPost, "/applications/:id/final-bill", h.ApplicationAPI.GenerateFinalBill, staffOnly},
		{"SubmitFeedback", http.MethodPost, "/applications/:id/feedback", h.ApplicationAPI.SubmitFeedback, ownerOnly},
		{"CancelApplication", http.MethodPost, "/applications/:id/cancel", h.ApplicationAPI.Cancel, ownerOnly},
		{"OverrideCancel", http.MethodPost, "/applications/:id/override-cancel", h.ApplicationAPI.OverrideCancel, adminOnly},
		{"ListPayments", http.MethodGet, "/payments/:applicationId", h.PaymentAPI.ListPayments, nil},
		{"RecordPayment", http.MethodPost, "/payments/:applicationId/:kind", h.PaymentAPI.RecordPayment, nil},
		{"CreatePaymentOrder", http.MethodPost, "/payments/:applicationId/:kind/order", h.PaymentAPI.CreateOrder, ownerOnly},
		{"RequestHandoverOTP", http.MethodPost, "/handover/otp", h.HandoverAPI.RequestOTP, ownerOnly},
		{"VerifyHandover", http.MethodPost, "/handover/verify", verify, staffOnly},
	}
}

// chain runs middleware before handler within one route slot.
func chain(middleware gin.HandlerFunc, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware(c)
		if c.IsAborted() {
			return
		}
		handler(c)
	}
}
