// Package audithttp serves the audit trail over HTTP.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harambee-fund/harambee/internal/audit"
	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// Lister is the audit service surface the handler needs.
type Lister interface {
	List(ctx context.Context, filters audit.Filters) (audit.Result, error)
}

// Handler exposes the audit trail listing.
type Handler struct {
	logger  *slog.Logger
	service Lister
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service Lister, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// parseFilters defaults to the last seven days and rejects windows over ninety.
func (h *Handler) parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	verr := &shared.ValidationError{}

	to := h.now().UTC().Truncate(24 * time.Hour)
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to = httpx.ParseDate(verr, "to", raw)
	}
	from := to.Add(-defaultDateRange)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from = httpx.ParseDate(verr, "from", raw)
	}
	if err := verr.OrNil(); err != nil {
		return audit.Filters{}, err
	}
	if from.After(to) {
		verr.Add("from", "must not be after to")
	} else if to.Sub(from) > maxDateRange {
		verr.Add("from", "range must not exceed 90 days")
	}

	filters := audit.Filters{
		From:   from,
		To:     to,
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	if raw := strings.TrimSpace(q.Get("actor_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			verr.Add("actor_id", "must be a positive integer")
		}
		filters.ActorID = id
	}
	filters.Page = positive(verr, q.Get("page"), "page")
	filters.PageSize = positive(verr, q.Get("page_size"), "page_size")
	return filters, verr.OrNil()
}

func positive(verr *shared.ValidationError, raw, field string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		verr.Add(field, "must be a positive integer")
		return 0
	}
	return v
}
