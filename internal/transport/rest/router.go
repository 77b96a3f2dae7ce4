package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/frahmantamala/attendance-management/internal/feed"
	"github.com/frahmantamala/attendance-management/internal/identity"
	"github.com/frahmantamala/attendance-management/internal/report"
	"github.com/frahmantamala/attendance-management/internal/transport"
	"github.com/frahmantamala/attendance-management/internal/transport/middleware"
	"github.com/frahmantamala/attendance-management/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups the route handlers. Nil handlers leave their routes unmounted.
type Handlers struct {
	Health     *HealthHandler
	Identity   *identity.Handler
	Attendance *attendance.Handler
	Report     *report.Handler
	Stream     *feed.StreamHandler
	Socket     *feed.SocketHandler
}

type RouterConfig struct {
	AllowedOrigins string
	OpenAPIPath    string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, tokens middleware.TokenValidator, cfg RouterConfig, logger *slog.Logger) {
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	base := transport.NewBaseHandler(logger)
	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		base.WriteError(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		base.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Get("/openapi.yml", swagger.DocumentHandler(cfg.OpenAPIPath))
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		// Kiosk endpoints: the barcode is the credential.
		r.Route("/public", func(pr chi.Router) {
			if h.Identity != nil {
				pr.Get("/barcode-check", h.Identity.CheckBarcode)
			}
			if h.Attendance != nil {
				pr.Post("/barcode-scan", h.Attendance.BarcodeToggle)
			}
		})

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(tokens, logger))

			pr.Route("/attendance", func(ar chi.Router) {
				if h.Attendance != nil {
					ar.Post("/check-in", h.Attendance.CheckIn)
					ar.Post("/check-out", h.Attendance.CheckOut)
					ar.Post("/barcode/toggle", h.Attendance.BarcodeToggle)
					ar.Get("/today", h.Attendance.Today)
					ar.Get("/history", h.Attendance.History)
					ar.Get("/stats", h.Attendance.Stats)
				}

				if h.Report != nil {
					ar.Group(func(rr chi.Router) {
						rr.Use(middleware.RequirePermissions(logger, auth.ReportPermissions...))
						rr.Get("/admin/today-summary", h.Report.TodaySummary)
						rr.Get("/admin/on-duty", h.Report.OnDuty)
						rr.Get("/admin/absentees", h.Report.Absentees)
						rr.Get("/admin/late", h.Report.LateArrivals)
						rr.Get("/list-by-date", h.Report.ListByDate)
						rr.Get("/range-report", h.Report.RangeReport)
					})
				}
			})

			pr.Route("/events", func(er chi.Router) {
				if h.Stream != nil {
					er.Get("/stream", h.Stream.Stream)
				}
				if h.Socket != nil {
					er.Get("/ws", h.Socket.Serve)
				}
			})
		})
	})
}
