package disasters

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Handler exposes disaster relief endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the disasters handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers disaster routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(rbac.DisastersManage))
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/", h.disburse)
}

type disburseRequest struct {
	MemberID    int64           `json:"member_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date" validate:"required"`
	Purpose     string          `json:"purpose" validate:"required,max=255"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), int64(httpx.QueryInt(r, "member_id", 0)))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) disburse(w http.ResponseWriter, r *http.Request) {
	var req disburseRequest
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
	p, err := h.service.Disburse(r.Context(), DisburseInput{
		MemberID: req.MemberID,
		Amount:   req.Amount,
		Date:     date,
		Purpose:  req.Purpose,
		AdminID:  shared.ActorID(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}
