package debts

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Handler exposes debt endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the debts handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// MountRoutes registers debt routes. Debts share the contributions capabilities.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ContributionsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ContributionsRecord))
		r.Post("/", h.create)
		r.Post("/{id}/pay", h.pay)
	})
}

type createRequest struct {
	MemberID int64           `json:"member_id" validate:"required,gt=0"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason" validate:"required,max=255"`
	DueDate  string          `json:"due_date" validate:"required"`
}

type payRequest struct {
	Date string `json:"date"`
}

type debtView struct {
	Debt
	Overdue bool `json:"overdue"`
}

func (h *Handler) view(d Debt) debtView {
	return debtView{Debt: d, Overdue: d.Overdue(h.now())}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), ListFilter{
		MemberID: int64(httpx.QueryInt(r, "member_id", 0)),
		Status:   Status(r.URL.Query().Get("status")),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	views := make([]debtView, 0, len(items))
	for _, d := range items {
		views = append(views, h.view(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": views})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(d))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	verr := &shared.ValidationError{}
	due := httpx.ParseDate(verr, "due_date", req.DueDate)
	if err := verr.OrNil(); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	d, err := h.service.Create(r.Context(), Input{
		MemberID:  req.MemberID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		DueDate:   due,
		CreatedBy: shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.view(d))
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req payRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	var date time.Time
	if strings.TrimSpace(req.Date) != "" {
		verr := &shared.ValidationError{}
		date = httpx.ParseDate(verr, "date", req.Date)
		if err := verr.OrNil(); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	d, err := h.service.MarkPaid(r.Context(), shared.ActorID(r.Context()), id, date)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(d))
}
