package routes

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/lovedoctor-backend/internal/handlers"
	"github.com/AnshRaj112/lovedoctor-backend/internal/middleware"
	"github.com/AnshRaj112/lovedoctor-backend/internal/models"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Production      bool
	ServiceName     string
	AllowedOrigins  []string
	AllowedHosts    []string
	CoachHostPrefix string
	SiteDir         string
	CoachSiteDir    string
	InternalAPIKey  string
	TrustProxy      bool

	// Redis backs the cross-instance verify limit; nil disables it.
	Redis        *redis.Client
	VerifyLimit  int
	VerifyWindow time.Duration

	Sessions middleware.SessionReader
	Cookie   middleware.SessionCookie
	Log      *zap.Logger
}

// NewRouter builds the full HTTP stack. API routes are served at the root
// and again under /api with the grouped paths the web client uses.
func NewRouter(h *handlers.Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(opts.Log, opts.TrustProxy))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing(opts.ServiceName))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Production {
		for _, mw := range middleware.ProductionSecurity(opts.AllowedHosts, opts.TrustProxy) {
			r.Use(mw)
		}
	}
	r.Use(middleware.CoachHost(opts.CoachHostPrefix))
	r.Use(middleware.Session(opts.Sessions, opts.Cookie))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	rt := &router{
		h:           h,
		opts:        opts,
		authLimit:   middleware.AuthRateLimit(opts.TrustProxy),
		verifyLimit: middleware.RedisRateLimit(opts.Redis, "verify", opts.VerifyLimit, opts.VerifyWindow, opts.TrustProxy),
	}
	rt.flat(r)
	r.Route("/api", rt.grouped)

	if opts.CoachSiteDir != "" {
		coachSite := http.StripPrefix(middleware.CoachSitePrefix, http.FileServer(http.Dir(opts.CoachSiteDir)))
		r.Handle(middleware.CoachSitePrefix, coachSite)
		r.Handle(middleware.CoachSitePrefix+"/*", coachSite)
	}
	if opts.SiteDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.SiteDir)))
	}
	return r
}

// router shares one limiter of each kind across the root and /api paths.
type router struct {
	h           *handlers.Handler
	opts        Options
	authLimit   func(http.Handler) http.Handler
	verifyLimit func(http.Handler) http.Handler
}

func (rt *router) internal() func(http.Handler) http.Handler {
	return middleware.InternalKey(rt.opts.InternalAPIKey)
}

// flat registers the root level paths.
func (rt *router) flat(r chi.Router) {
	h := rt.h
	verify := r.With(rt.authLimit, rt.verifyLimit)
	verify.Post("/verify-token", h.VerifyToken)
	verify.Post("/verify-otp", h.SignIn(models.RoleUser))
	verify.Post("/user-auth/session", h.SignIn(models.RoleUser))
	verify.Post("/coach-auth/session", h.SignIn(models.RoleCoach))

	resolve := r.With(rt.authLimit, rt.internal())
	resolve.Post("/user-auth", h.ResolveAccount(models.RoleUser))
	resolve.Post("/coach-auth", h.ResolveAccount(models.RoleCoach))

	r.Post("/logout", h.Logout)
	r.Get("/session", h.Session)
	r.With(middleware.RequireSession).Get("/user-info", h.UserInfo)

	user := r.With(middleware.RequireRole(models.RoleUser))
	user.Post("/submit-user-info", h.SubmitUserInfo)
	user.Post("/chat/handoff", h.ChatHandoff)

	rt.coachProfile(r, "/coach/profile")
	r.Get("/coaches", h.ListCoaches)
	r.With(middleware.RequireRole(models.RoleCoach)).Get("/ws/leads", h.LeadFeed)

	r.Post("/track-event", h.TrackEvent)
	r.Post("/submit-lead", h.SubmitLead)
	r.Post("/send-message", h.SendMessage)
}

// grouped registers the /api paths.
func (rt *router) grouped(r chi.Router) {
	h := rt.h
	r.Route("/auth", func(r chi.Router) {
		verify := r.With(rt.authLimit, rt.verifyLimit)
		verify.Post("/verify-token", h.VerifyToken)
		verify.Post("/verify-otp", h.SignIn(models.RoleUser))
		verify.Post("/user-auth/session", h.SignIn(models.RoleUser))
		r.With(rt.authLimit, rt.internal()).Post("/user-auth", h.ResolveAccount(models.RoleUser))
		r.With(middleware.RequireSession).Get("/user-info", h.UserInfo)
		r.Get("/session", h.Session)
		r.Post("/logout", h.Logout)
	})
	r.Route("/chat", func(r chi.Router) {
		r.Post("/send-message", h.SendMessage)
		user := r.With(middleware.RequireRole(models.RoleUser))
		user.Post("/submit-user-info", h.SubmitUserInfo)
		user.Post("/handoff", h.ChatHandoff)
	})
	r.Route("/coach", func(r chi.Router) {
		r.With(rt.authLimit, rt.internal()).Post("/auth", h.ResolveAccount(models.RoleCoach))
		r.With(rt.authLimit, rt.verifyLimit).Post("/auth/session", h.SignIn(models.RoleCoach))
		rt.coachProfile(r, "/profile")
	})
	r.Get("/coaches", h.ListCoaches)
	r.Post("/track-event", h.TrackEvent)
	r.Post("/submit-lead", h.SubmitLead)
}

func (rt *router) coachProfile(r chi.Router, path string) {
	r.Get(path, rt.h.GetCoachProfile)
	coach := r.With(middleware.RequireRole(models.RoleCoach))
	coach.Put(path, rt.h.UpdateCoachProfile)
	coach.Post(path+"/image", rt.h.UploadCoachImage)
}
