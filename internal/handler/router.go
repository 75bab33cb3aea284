package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/driveright-academy/internal/middleware"
	"github.com/mmeshcher/driveright-academy/internal/model"
)

const requestTimeout = 30 * time.Second

// SetupRouter настраивает HTTP-маршруты и middleware автошколы.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	origins := h.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		h.ok(w, "ok", nil)
	})
	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}

	admin := custommiddleware.RequireRole(model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authMiddleware.Optional)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.ProcessPayment)
			r.Post("/verify/{reference}", h.VerifyPayment)
			r.Get("/verify/{reference}", h.VerifyPayment)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/", h.ListPayments)
				r.Get("/{id}", h.GetPayment)
				r.Post("/{id}/confirm", h.ConfirmPayment)
				r.Post("/{id}/retry", h.RetryPayment)
				r.Post("/{id}/refund", h.RefundPayment)
			})
		})

		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", h.ListLessons)
			r.Get("/{id}", h.GetLesson)

			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", h.CreateLesson)
				r.Put("/{id}", h.UpdateLesson)
				r.Delete("/{id}", h.DeleteLesson)
			})
		})

		r.Route("/payment-methods", func(r chi.Router) {
			r.Get("/mobile-money", h.MobileMoneyProviders)
			r.Get("/banks", h.Banks)
		})
		r.Get("/locations/ghana", h.Locations)

		r.Route("/enroll", func(r chi.Router) {
			r.Post("/", h.StartEnrollment)
			r.Get("/{id}", h.GetEnrollmentSession)
			r.Post("/{id}/details", h.SubmitEnrollmentDetails)
			r.Post("/{id}/back", h.EnrollmentBack)
			r.Post("/{id}/payment", h.SubmitEnrollmentPayment)
			r.Post("/{id}/callback", h.EnrollmentCallback)
			r.Post("/{id}/cancel", h.CancelEnrollmentPayment)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/enrollments", h.ListUserEnrollments)
			r.With(admin).Get("/", h.ListUsers)
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Use(admin)
			r.Get("/", h.ListEnrollments)
			r.Get("/{id}", h.GetEnrollment)
			r.Patch("/{id}", h.UpdateEnrollment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin)
			r.Get("/dashboard", h.Dashboard)
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.fail(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
