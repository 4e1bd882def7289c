package contributions

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Handler exposes contribution endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the contributions handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// MountRoutes registers contribution routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ContributionsRecord)).Post("/", h.record)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ContributionsView))
		r.Get("/members/{id}", h.statement)
		r.Get("/members/{id}/payments", h.payments)
		r.Get("/compliance", h.compliance)
		r.Get("/defaulters", h.defaulters)
	})
}

type recordRequest struct {
	MemberID    int64           `json:"member_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required"`
	Type        string          `json:"type" validate:"omitempty,oneof=monthly other"`
	Purpose     string          `json:"purpose" validate:"max=255"`
	Notes       string          `json:"notes"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	verr := &shared.ValidationError{}
	date := httpx.ParseDate(verr, "payment_date", req.PaymentDate)
	if err := verr.OrNil(); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	payment, err := h.service.RecordContribution(r.Context(), RecordInput{
		MemberID:   req.MemberID,
		Amount:     req.Amount,
		Date:       date,
		Type:       PaymentType(req.Type),
		Purpose:    req.Purpose,
		Notes:      req.Notes,
		RecordedBy: shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	st, err := h.service.MemberContributions(r.Context(), id, httpx.QueryInt(r, "year", h.now().Year()))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	items, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) compliance(w http.ResponseWriter, r *http.Request) {
	year, asOf := h.period(r)
	report, err := h.service.Compliance(r.Context(), year, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) defaulters(w http.ResponseWriter, r *http.Request) {
	year, asOf := h.period(r)
	items, err := h.service.Defaulters(r.Context(), year, asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"year": year, "items": items})
}

// period reads ?year= and ?as_of=; a missing as_of selects the default for the year.
func (h *Handler) period(r *http.Request) (int, time.Month) {
	year := httpx.QueryInt(r, "year", h.now().Year())
	return year, time.Month(httpx.QueryInt(r, "as_of", -1))
}
