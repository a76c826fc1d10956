package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/rewear/internal/auth"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/imaging"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/metrics"
	"github.com/erazemk/rewear/internal/swap"
)

// Deps are the collaborators shared by all handlers.
type Deps struct {
	DB     *db.DB
	Log    *logger.Logger
	Issuer *auth.Issuer
	Engine *swap.Engine

	// Gatherer backs /metrics. The route is omitted when nil.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTP

	Images        imaging.Processor
	MaxImages     int
	AutoApprove   bool
	InitialPoints int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	authHandler := &AuthHandler{DB: d.DB, Issuer: d.Issuer, Log: d.Log, InitialPoints: d.InitialPoints}
	itemsHandler := &ItemsHandler{
		DB:          d.DB,
		Log:         d.Log,
		Images:      d.Images,
		MaxImages:   d.MaxImages,
		AutoApprove: d.AutoApprove,
	}
	swapsHandler := &SwapsHandler{DB: d.DB, Engine: d.Engine, Log: d.Log}
	adminHandler := &AdminHandler{DB: d.DB, Log: d.Log}
	usersHandler := &UsersHandler{DB: d.DB, Log: d.Log}
	publicHandler := &PublicHandler{DB: d.DB, Log: d.Log}

	authn := &Authenticator{DB: d.DB, Issuer: d.Issuer, Log: d.Log}

	r := chi.NewRouter()
	r.Use(RequestID(d.Log), Logging(d.Log, d.HTTPMetrics), Recoverer(d.Log))

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", publicHandler.Health)
		r.Get("/stats", publicHandler.Stats)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
				r.Put("/password", authHandler.ChangePassword)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/profile", usersHandler.Profile)
			r.Put("/profile", usersHandler.UpdateProfile)
			r.Get("/stats", usersHandler.Stats)
			r.Get("/points", usersHandler.Points)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemsHandler.List)
			r.Get("/featured", itemsHandler.Featured)
			r.Get("/{id}/images/{pos}", itemsHandler.GetImage)
			r.With(authn.Optional).Get("/{id}", itemsHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Get("/mine", itemsHandler.Mine)
				r.Post("/", itemsHandler.Create)
				r.Put("/{id}", itemsHandler.Update)
				r.Delete("/{id}", itemsHandler.Delete)
				r.Post("/{id}/images", itemsHandler.UploadImage)
			})
		})

		r.Route("/swaps", func(r chi.Router) {
			r.Use(authn.Required)
			r.Post("/", swapsHandler.Create)
			r.Get("/mine", swapsHandler.Mine)
			r.Get("/stats", swapsHandler.Stats)
			r.Get("/{id}", swapsHandler.Get)
			r.Put("/{id}/accept", swapsHandler.Accept)
			r.Put("/{id}/reject", swapsHandler.Reject)
			r.Put("/{id}/complete", swapsHandler.Complete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn.Required, RequireAdmin(d.Log))
			r.Get("/stats", adminHandler.Stats)
			r.Get("/categories", adminHandler.Categories)
			r.Get("/items", adminHandler.ListItems)
			r.Put("/items/{id}/approve", adminHandler.ApproveItem)
			r.Put("/items/{id}/reject", adminHandler.RejectItem)
			r.Delete("/items/{id}", adminHandler.DeleteItem)
			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{id}/admin", adminHandler.SetAdmin)
			r.Put("/users/{id}/points", adminHandler.AdjustPoints)
		})
	})

	return r
}
