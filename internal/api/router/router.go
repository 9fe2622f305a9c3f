// Package router assembles the HTTP surface: public webhooks plus the
// JWT-protected operator API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/consigdesk/consig-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/consigdesk/consig-ai-platform/internal/http/middleware"
	"github.com/consigdesk/consig-ai-platform/internal/inboxstream"
	"github.com/consigdesk/consig-ai-platform/internal/leads"
	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Health             *handlers.HealthHandler
	EvolutionWebhook   *handlers.EvolutionWebhookHandler
	Inbox              *handlers.AdminInboxHandler
	Sales              *handlers.AdminSalesHandler
	LeadsHandler       *leads.Handler
	InboxStream        *inboxstream.Hub
	MetricsHandler     http.Handler
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Webhook abuse guard; zero disables rate limiting.
	WebhookRatePerSec float64
	WebhookBurst      int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: webhooks and health checks.
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Check)
		}
		if cfg.EvolutionWebhook != nil {
			webhook := public
			if cfg.WebhookRatePerSec > 0 {
				webhook = public.With(httpmiddleware.RateLimit(cfg.WebhookRatePerSec, cfg.WebhookBurst))
			}
			webhook.Post("/webhooks/evolution", cfg.EvolutionWebhook.HandleMessages)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operator API behind the admin JWT.
	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.Inbox != nil {
				admin.Route("/inbox", func(inbox chi.Router) {
					inbox.Get("/", cfg.Inbox.ListInbox)
					inbox.Route("/{leadID}", func(conv chi.Router) {
						conv.Get("/", cfg.Inbox.GetConversation)
						conv.Post("/messages", cfg.Inbox.SendMessage)
						conv.Post("/autopilot", cfg.Inbox.SetAutoPilot)
						conv.Post("/transfer", cfg.Inbox.Transfer)
						conv.Post("/close", cfg.Inbox.CloseConversation)
						conv.Post("/reset", cfg.Inbox.ResetContext)
						conv.Post("/auth-status", cfg.Inbox.SetAuthStatus)
						conv.Get("/runs", cfg.Inbox.ListRuns)
					})
				})
			}
			if cfg.LeadsHandler != nil {
				admin.Route("/leads", func(lr chi.Router) {
					lr.Get("/", cfg.LeadsHandler.List)
					lr.Post("/", cfg.LeadsHandler.Create)
					lr.Post("/import", cfg.LeadsHandler.Import)
					lr.Get("/{leadID}", cfg.LeadsHandler.Get)
				})
			}
			if cfg.Sales != nil {
				admin.Route("/sales", func(sr chi.Router) {
					sr.Get("/", cfg.Sales.ListSales)
					sr.Post("/", cfg.Sales.CreateSale)
					sr.Get("/summary", cfg.Sales.GetSummary)
					sr.Put("/{saleID}", cfg.Sales.UpdateSale)
					sr.Patch("/{saleID}/status", cfg.Sales.UpdateSaleStatus)
					sr.Delete("/{saleID}", cfg.Sales.DeleteSale)
				})
			}
			if cfg.InboxStream != nil {
				admin.Get("/inbox-stream", cfg.InboxStream.HandleWS)
			}
		})
	}

	return r
}
