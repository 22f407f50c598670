package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/hr-workforce-api/internal/application/activity"
	"github.com/hr-workforce-api/internal/application/auth"
	"github.com/hr-workforce-api/internal/application/notify"
	"github.com/hr-workforce-api/internal/application/otp"
	"github.com/hr-workforce-api/internal/application/policy"
	"github.com/hr-workforce-api/internal/application/refresh"
	"github.com/hr-workforce-api/internal/application/session"
	"github.com/hr-workforce-api/internal/application/user"
	"github.com/hr-workforce-api/internal/config"
	"github.com/hr-workforce-api/internal/infrastructure/cache"
	"github.com/hr-workforce-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/hr-workforce-api/internal/infrastructure/jwt"
	"github.com/hr-workforce-api/internal/infrastructure/smtp"
	"github.com/hr-workforce-api/internal/infrastructure/sns"
	"github.com/hr-workforce-api/internal/pkg/password"
	"github.com/hr-workforce-api/internal/transport/http/handler"
	appmiddleware "github.com/hr-workforce-api/internal/transport/http/middleware"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      *dynamo.UserRepo
	SessionRepo   *dynamo.SessionRepo
	RefreshRepo   *dynamo.RefreshTokenRepo
	AllowedIPRepo *dynamo.AllowedIPRepo
	Cache         *cache.Store
	Mailer        smtp.Mailer
	SMSSender     sns.SMSSender
	JWTProvider   *jwtinfra.Provider
	Activity      activity.Recorder
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)

	// 5 requests/second with a burst of 10 for sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	sessionSvc := session.NewService(deps.SessionRepo, deps.Cache, cfg.SessionTTL)
	rotator := refresh.NewService(deps.RefreshRepo, deps.Cache, cfg.RefreshTTL)
	otpSvc := otp.NewService(deps.Cache, cfg.OTPLength)
	gateway := notify.NewGateway(deps.Mailer, deps.SMSSender)
	policyEngine := policy.NewEngine(deps.AllowedIPRepo)
	hasher := password.NewHasher(cfg.BcryptCost)

	authSvc := auth.NewService(auth.ServiceDeps{
		Users:       deps.UserRepo,
		Pending:     deps.Cache,
		OTPs:        otpSvc,
		Policy:      policyEngine,
		Sessions:    sessionSvc,
		Rotator:     rotator,
		Issuer:      deps.JWTProvider,
		Dispatcher:  gateway,
		Activity:    deps.Activity,
		Hasher:      hasher,
		OTPTTL:      cfg.OTPTTL,
		LoginOTPTTL: cfg.LoginOTPTTL,
	})
	userSvc := user.NewService(deps.UserRepo, deps.Activity)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	userH := handler.NewUserHandler(userSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/register/verify", authH.ConfirmRegistration)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/login/verify", authH.VerifyLogin)
		r.Post("/auth/refresh", authH.Refresh)
		r.With(sensitiveRL.Limit).Post("/auth/password/forgot", authH.ForgotPassword)
		r.With(sensitiveRL.Limit).Post("/auth/password/reset", authH.ResetPassword)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/auth/logout", authH.Logout)
			r.Put("/auth/password", authH.ChangePassword)
			r.Get("/sessions/current", sessionH.GetCurrent)
			r.Get("/users/me", userH.GetMe)
			r.Put("/users/me", userH.UpdateMe)
		})
	})

	return r
}
