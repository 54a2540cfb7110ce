package app

import (
	"database/sql"
	"net/http"
	"time"

	"quizhub/internal/app/observability"
	"quizhub/internal/attempt"
	"quizhub/internal/identity"
	"quizhub/internal/quiz"
	"quizhub/internal/report"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(cfg Config, db *sql.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)

	identitySvc := identity.NewService(db, identity.ServiceConfig{
		SessionTTL: cfg.SessionTTL,
	})
	identityHandler := identity.NewHandler(identitySvc)

	quizSvc := quiz.NewService(db)
	quizHandler := quiz.NewHandler(quizSvc)

	attemptSvc := attempt.NewService(db, quizSvc)
	attemptHandler := attempt.NewHandler(attemptSvc)

	reportSvc := report.NewService(db)
	reportHandler := report.NewHandler(reportSvc)

	loginLimiter := NewIPRateLimiter(cfg.LoginRateLimitPerMin, time.Minute)
	startLimiter := NewIPRateLimiter(cfg.StartRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(identityHandler.WithSession)
		api.Use(collector.Middleware)
		api.Use(CSRFMiddleware(cfg.CSRFEnforced))

		api.With(RateLimitMiddleware(loginLimiter)).Post("/auth/login", identityHandler.Login)
		api.Post("/auth/logout", identityHandler.Logout)
		api.With(identityHandler.RequireAuth).Get("/auth/me", identityHandler.Me)

		api.Get("/quizzes", quizHandler.List)
		api.Get("/quizzes/{slug}", quizHandler.Get)

		// Attempts are open to anonymous test-takers; ownership is proven
		// per request by session or attempt token.
		api.With(RateLimitMiddleware(startLimiter)).Post("/quizzes/{slug}/attempts", attemptHandler.Start)
		api.Get("/attempts/{id}", attemptHandler.GetAttempt)
		api.Put("/attempts/{id}/answers/{questionID}", attemptHandler.SaveAnswer)
		api.Post("/attempts/{id}/complete", attemptHandler.Complete)

		api.Group(func(admin chi.Router) {
			admin.Use(identityHandler.RequireAuth)
			admin.Use(identityHandler.RequireRoles("admin"))
			admin.Get("/admin/quizzes/{id}/report", reportHandler.QuizSummary)
			admin.Get("/admin/quizzes/{id}/attempts/export", reportHandler.ExportAttempts)
		})
	})

	return r
}
