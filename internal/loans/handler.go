package loans

import (
	"context"
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

// Handler exposes loan endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the loans handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers loan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(rbac.LoansManage))
	r.Get("/", h.list)
	r.Post("/", h.apply)
	r.Get("/{id}", h.get)
	r.Post("/{id}/disburse", h.disburse)
	r.Post("/{id}/repay", h.repay)
	r.Post("/{id}/default", h.markDefaulted)
}

type applyRequest struct {
	MemberID     int64           `json:"member_id" validate:"required,gt=0"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermMonths   int             `json:"term_months" validate:"required,gt=0"`
	Purpose      string          `json:"purpose" validate:"max=255"`
}

type transitionRequest struct {
	Date string `json:"date"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		MemberID: int64(httpx.QueryInt(r, "member_id", 0)),
		Status:   Status(r.URL.Query().Get("status")),
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	loan, err := h.service.Apply(r.Context(), ApplyInput{
		MemberID:     req.MemberID,
		Principal:    req.Principal,
		InterestRate: req.InterestRate,
		TermMonths:   req.TermMonths,
		Purpose:      req.Purpose,
		CreatedBy:    shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, loan)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	loan, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loan)
}

func (h *Handler) disburse(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Disburse)
}

func (h *Handler) repay(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Repay)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actorID, id int64, date time.Time) (Loan, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req transitionRequest
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
	loan, err := apply(r.Context(), shared.ActorID(r.Context()), id, date)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loan)
}

func (h *Handler) markDefaulted(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	loan, err := h.service.MarkDefaulted(r.Context(), shared.ActorID(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loan)
}
