package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/taply/backend/internal/metrics"
	"github.com/taply/backend/internal/middleware"
	"github.com/taply/backend/internal/ratelimit"
	"github.com/taply/backend/internal/services"
)

// RouterConfig holds everything NewRouter wires together. Images, Limiter
// and Metrics are optional.
type RouterConfig struct {
	Accounts  *services.AccountService
	Profiles  *services.ProfileService
	Analytics *services.AnalyticsService
	Images    *services.ImageService

	MaxUploadSizeMB int64
	BodyLimitBytes  int64
	CORSOrigins     []string

	Limiter            ratelimit.Limiter
	RateLimitPerSecond int
	Metrics            bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Accounts)
	accountHandler := NewAccountHandler(cfg.Accounts)
	profileHandler := NewProfileHandler(cfg.Profiles, cfg.Analytics)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	if cfg.Metrics {
		r.Use(metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if cfg.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.Limiter, cfg.RateLimitPerSecond))

		r.Group(func(r chi.Router) {
			if cfg.BodyLimitBytes > 0 {
				r.Use(middleware.BodyLimit(cfg.BodyLimitBytes))
			}

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Route("/profile/{username}", func(r chi.Router) {
				r.Get("/", profileHandler.GetPublic)
				r.Post("/view", profileHandler.RecordView)
				r.Post("/click", profileHandler.RecordClick)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.BearerAuth(cfg.Accounts))
				r.Get("/me", accountHandler.GetMe)
				r.Put("/me", accountHandler.UpdateMe)
			})
		})

		if cfg.Images != nil {
			imageHandler := NewImageHandler(cfg.Images, cfg.MaxUploadSizeMB)
			r.Group(func(r chi.Router) {
				r.Use(middleware.BearerAuth(cfg.Accounts))
				r.Post("/upload", imageHandler.Upload)
				r.Delete("/upload/{imageId}", imageHandler.Delete)
			})
		}
	})

	if cfg.Images != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.Images.Dir()))))
	}

	r.Get("/go/{username}/{slug}", profileHandler.ShortLink)
	r.Get("/{username}", profileHandler.Vanity)

	return r
}
