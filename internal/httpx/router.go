package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/storefront-fulfillment/internal/auth"
	"github.com/jcmexdev/storefront-fulfillment/internal/httpx/middlewares"
)

func NewRouter(handler *Handler, validator *auth.Validator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.RequireAPIKey(validator))

		r.Route("/integrations", func(r chi.Router) {
			r.With(middlewares.RequireBearer(validator)).Post("/payments/simulate", handler.SimulatePayment)
			r.Post("/shipping/create", handler.CreateShipment)
			r.Post("/shipping/update", handler.UpdateShipment)
		})

		r.Post("/orders", handler.CreateOrder)
		r.Get("/orders/{id}", handler.GetOrderByID)
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
