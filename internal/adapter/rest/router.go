package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds the optional pieces of the HTTP router
type RouterConfig struct {
	// Limits POST /payments/verify; nil disables limiting
	RateLimiter *RateLimiter
	// Serves /metrics when set
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	// Rewrites RemoteAddr from X-Real-IP / X-Forwarded-For; only safe behind a trusted proxy
	TrustProxyHeaders bool
	Logger            *zap.Logger
}

// NewRouter builds the chi router for the ticketing API
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	verify := r.With()
	if cfg.RateLimiter != nil {
		verify = r.With(cfg.RateLimiter.Middleware)
	}
	verify.Post("/payments/verify", h.VerifyPayment)

	r.Route("/tickets", func(r chi.Router) {
		r.Post("/validate", h.ValidateTicket)
		r.Get("/by-transaction/{transactionID}", h.GetTicketByTransaction)
		r.Get("/{ticketID}", h.GetTicket)
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		})
	}
}
