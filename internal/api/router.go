package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/refresqueria/caja/internal/ledger"
	"github.com/refresqueria/caja/internal/reconciliation"
	"github.com/refresqueria/caja/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	ledgerSvc *ledger.Service,
	engine *reconciliation.Engine,
	cashoutRepo *repository.CashoutRepo,
	log *logrus.Logger,
) http.Handler {
	h := &Handlers{
		ledger:   ledgerSvc,
		engine:   engine,
		cashouts: cashoutRepo,
		log:      log,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Orders.
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Put("/orders/{id}", h.UpdateOrder)
		r.Patch("/orders/{id}/paid", h.SetOrderPaid)
		r.Delete("/orders/{id}", h.DeleteOrder)

		// Cashouts.
		r.Post("/cashouts", h.GenerateCashout)
		r.Get("/cashouts", h.ListCashouts)
		r.Get("/cashouts/{id}", h.GetCashout)
		r.Delete("/cashouts/{id}", h.DeleteCashout)

		// Operations.
		r.Get("/integrity", h.CheckIntegrity)
		r.Get("/summary", h.GetSummary)
	})

	return r
}
