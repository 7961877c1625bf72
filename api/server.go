/*
server.go - HTTP router and middleware configuration

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address for the login limiter
  3. Logger:     Request logging through logrus
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/login            Public, rate limited
  /api/health           Public
  everything else       Bearer token; mutations and admin areas need
                        the administrator role

SEE ALSO:
  - handlers.go: Handler implementations and the endpoint list
  - auth.go: Token verification and login throttling
  - cmd/library/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterConfig holds the knobs that are not handler dependencies.
type RouterConfig struct {
	CORSOrigins        []string
	LoginRatePerMinute int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if h.Log == nil {
		h.Log = logrus.StandardLogger()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	limiter := NewLoginLimiter(cfg.LoginRatePerMinute)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.With(limiter.Middleware).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Post("/logout", h.Logout)
			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.CurrentSession)
				r.Put("/password", h.ChangeOwnPassword)
				r.Get("/loans", h.OwnLoans)
			})

			// Category routes
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", h.ListCategories)
				r.Get("/{id}", h.GetCategory)
				r.With(h.RequireAdmin).Post("/", h.CreateCategory)
				r.With(h.RequireAdmin).Put("/{id}", h.UpdateCategory)
				r.With(h.RequireAdmin).Delete("/{id}", h.DeleteCategory)
			})

			// Book routes
			r.Route("/books", func(r chi.Router) {
				r.Get("/", h.ListBooks)
				r.Get("/isbn/{isbn}", h.GetBookByISBN)
				r.Get("/{id}", h.GetBook)
				r.With(h.RequireAdmin).Post("/", h.CreateBook)
				r.With(h.RequireAdmin).Put("/{id}", h.UpdateBook)
				r.With(h.RequireAdmin).Delete("/{id}", h.DeleteBook)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)

				// User routes
				r.Route("/users", func(r chi.Router) {
					r.Get("/", h.ListUsers)
					r.Post("/", h.CreateUser)
					r.Get("/{id}", h.GetUser)
					r.Put("/{id}", h.UpdateUser)
					r.Delete("/{id}", h.DeleteUser)
					r.Post("/{id}/deactivate", h.DeactivateUser)
					r.Post("/{id}/reset-password", h.ResetPassword)
					r.Get("/{id}/loans", h.UserLoans)
				})

				// Loan routes
				r.Route("/loans", func(r chi.Router) {
					r.Get("/", h.ListLoans)
					r.Post("/", h.Checkout)
					r.Get("/{id}", h.GetLoan)
					r.Post("/{id}/return", h.Return)
				})

				// Report routes
				r.Route("/reports", func(r chi.Router) {
					r.Get("/summary", h.Summary)
					r.Get("/top-books", h.TopBooks)
					r.Get("/top-users", h.TopUsers)
					r.Get("/overdue", h.OverdueReport)
					r.Post("/{kind}/render", h.RenderReport)
				})

				// Admin routes
				r.Route("/admin", func(r chi.Router) {
					r.Post("/sweep", h.TriggerSweep)
					r.Get("/sweeps", h.ListSweeps)
				})
			})
		})
	})

	return r
}

// requestLogger logs one line per request with the request id.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).Round(time.Millisecond).String(),
				"request_id": middleware.GetReqID(r.Context()),
				"remote":     r.RemoteAddr,
			}).Debug("http request")
		})
	}
}
