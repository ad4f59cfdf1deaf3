package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/bakame-ivr/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bakame-ivr/internal/http/middleware"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger       *logging.Logger
	IVR          *handlers.IVRHandler
	CallStatus   *handlers.CallStatusHandler
	Interactions *handlers.InteractionsHandler
	// MediaStream is nil when live transcription is disabled.
	MediaStream    *handlers.MediaStreamHandler
	MetricsHandler http.Handler

	// Carrier webhook protection (both optional)
	TwilioAuthToken string
	PublicBaseURL   string
	RateLimiter     *httpmiddleware.RateLimiter

	AnalyticsToken string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.IVR == nil {
		panic("router: ivr handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handlers.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Carrier callbacks
	r.Group(func(carrier chi.Router) {
		carrier.Use(httpmiddleware.TwilioSignature(cfg.TwilioAuthToken, cfg.PublicBaseURL, cfg.Logger))
		if cfg.RateLimiter != nil {
			carrier.Use(cfg.RateLimiter.Throttle(http.HandlerFunc(handlers.Unavailable)))
		}
		for _, route := range cfg.IVR.Routes() {
			carrier.Post(route.Path, route.Handler)
		}
		if cfg.CallStatus != nil {
			carrier.Method(http.MethodPost, "/call-status", cfg.CallStatus)
		}
	})

	// The media websocket carries no form body to sign.
	if cfg.MediaStream != nil {
		r.Method(http.MethodGet, "/media-stream", cfg.MediaStream)
	}

	if cfg.Interactions != nil {
		r.With(requireAnalyticsToken(cfg.AnalyticsToken)).
			Method(http.MethodGet, "/sessions/{callSID}/interactions", cfg.Interactions)
	}

	return r
}
