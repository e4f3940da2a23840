package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/refresqueria/caja/internal/domain"
	"github.com/refresqueria/caja/internal/ledger"
	"github.com/refresqueria/caja/internal/reconciliation"
	"github.com/refresqueria/caja/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	ledger   *ledger.Service
	engine   *reconciliation.Engine
	cashouts *repository.CashoutRepo
	log      *logrus.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithField("component", "api").Errorf("encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// writeDomainError maps the engine/ledger error taxonomy onto HTTP codes.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNoPendingOrders):
		h.writeError(w, http.StatusConflict, "no_pending_orders", err.Error())
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrPartialCommit):
		h.writeError(w, http.StatusInternalServerError, "partial_commit", err.Error())
	case errors.Is(err, ledger.ErrInvalidOrder):
		h.writeError(w, http.StatusBadRequest, "invalid_order", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

type lineItemRequest struct {
	DrinkType string          `json:"drink_type"`
	Count     int             `json:"count"`
	Price     decimal.Decimal `json:"price"`
}

type orderRequest struct {
	Items []lineItemRequest `json:"items"`
	Fee   decimal.Decimal   `json:"fee"`
	Tip   decimal.Decimal   `json:"tip"`
}

func (req *orderRequest) lineItems() []domain.LineItem {
	items := make([]domain.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.LineItem{
			DrinkType: domain.DrinkType(it.DrinkType),
			Count:     it.Count,
			Price:     it.Price,
		}
	}
	return items
}

// --- orders ---

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid body: "+err.Error())
		return
	}

	order, err := h.ledger.CreateOrder(req.lineItems(), req.Fee, req.Tip)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.OrderFilter{
		Since: parseTime(q.Get("since")),
		Until: parseTime(q.Get("until")),
	}
	if v := q.Get("paid"); v != "" {
		paid := v == "true" || v == "1"
		filter.Paid = &paid
	}

	orders, err := h.ledger.ListOrders(filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  len(orders),
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	order, err := h.ledger.GetOrder(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid body: "+err.Error())
		return
	}

	order, err := h.ledger.UpdateOrder(id, req.lineItems(), req.Fee, req.Tip)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) SetOrderPaid(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	var req struct {
		IsPaid bool `json:"is_paid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid body: "+err.Error())
		return
	}

	if err := h.ledger.SetPaid(id, req.IsPaid); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_paid": req.IsPaid})
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	if err := h.ledger.DeleteOrder(id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// --- cashouts ---

func (h *Handlers) GenerateCashout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid body: "+err.Error())
		return
	}

	typ := domain.CashoutType(req.Type)
	if !domain.ValidCashoutType(typ) {
		h.writeError(w, http.StatusBadRequest, "bad_request", "type must be daily or monthly")
		return
	}

	cashout, err := h.engine.Generate(typ)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, cashout)
}

func (h *Handlers) ListCashouts(w http.ResponseWriter, r *http.Request) {
	cashouts, err := h.engine.List()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"cashouts": cashouts,
		"total":    len(cashouts),
	})
}

func (h *Handlers) GetCashout(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	cashout, err := h.engine.Get(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cashout)
}

func (h *Handlers) DeleteCashout(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid id")
		return
	}

	if err := h.engine.Delete(id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// --- operations ---

func (h *Handlers) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	issues, err := h.engine.VerifyIntegrity()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"issues": issues,
		"clean":  len(issues) == 0,
	})
}

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ledger.Summarize(h.cashouts, time.Now().UTC())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}
