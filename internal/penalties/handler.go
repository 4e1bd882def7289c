package penalties

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Handler exposes penalty endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the penalties handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers penalty routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(rbac.PenaltiesManage))
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/recalculate", h.recalculate)
	r.Post("/{id}/pay", h.pay)
}

type dateRequest struct {
	Date string `json:"date"`
}

// optionalDate reads {"date": "YYYY-MM-DD"} from a body that may be empty.
func optionalDate(r *http.Request) (time.Time, error) {
	var req dateRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			return time.Time{}, err
		}
	}
	if strings.TrimSpace(req.Date) == "" {
		return time.Time{}, nil
	}
	verr := &shared.ValidationError{}
	date := httpx.ParseDate(verr, "date", req.Date)
	return date, verr.OrNil()
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

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	asOf, err := optionalDate(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	summary, err := h.service.Recalculate(r.Context(), shared.ActorID(r.Context()), asOf)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	date, err := optionalDate(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	p, err := h.service.Pay(r.Context(), shared.ActorID(r.Context()), id, date)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
