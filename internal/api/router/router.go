package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clearlane/tradein-platform/internal/http/handlers"
	httpmiddleware "github.com/clearlane/tradein-platform/internal/http/middleware"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Wizard             *handlers.WizardHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// OTP endpoints get their own per-IP budget on top of the gate's
	// attempt counter, so a scripted caller cannot burn SMS spend.
	OTPRequestsPerSecond float64
	OTPBurst             int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
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

	r.Get("/health", cfg.Wizard.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/wizard", func(api chi.Router) {
		api.Post("/sessions", cfg.Wizard.CreateSession)

		api.Route("/sessions/{visitID}", func(session chi.Router) {
			session.Get("/state", cfg.Wizard.GetState)
			session.Patch("/state/vehicle", cfg.Wizard.PatchVehicle)
			session.Patch("/state/condition", cfg.Wizard.PatchCondition)
			session.Patch("/state/user", cfg.Wizard.PatchUser)
			session.Put("/step", cfg.Wizard.SetStep)
			session.Post("/reset", cfg.Wizard.ResetFlow)

			session.Post("/valuation", cfg.Wizard.RequestValuation)
			session.Post("/condition/sync", cfg.Wizard.SyncCondition)
			session.Post("/journey", cfg.Wizard.PersistJourney)

			session.Get("/branches", cfg.Wizard.SearchBranches)
			session.Get("/branches/{branchID}/slots", cfg.Wizard.ListSlots)
			session.Post("/slots/select", cfg.Wizard.SelectSlot)

			session.Route("/otp", func(gate chi.Router) {
				if cfg.OTPRequestsPerSecond > 0 {
					gate.Use(httpmiddleware.RateLimit(cfg.OTPRequestsPerSecond, cfg.OTPBurst))
				}
				gate.Post("/request", cfg.Wizard.RequestOTP)
				gate.Post("/verify", cfg.Wizard.VerifyOTP)
				gate.Post("/resend", cfg.Wizard.ResendOTP)
			})

			session.Post("/booking", cfg.Wizard.SubmitBooking)
		})
	})

	return r
}
