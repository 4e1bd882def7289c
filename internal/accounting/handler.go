package accounting

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/rbac"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Handler serves the chart of accounts, journal and report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the accounting HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.AccountingView))
		r.Get("/accounts", h.listAccounts)
		r.Get("/accounts/{id}", h.getAccount)
		r.Get("/journals", h.listEntries)
		r.Get("/journals/{id}", h.getEntry)
		r.Get("/reports/trial-balance", h.trialBalance)
		r.Get("/reports/balance-sheet", h.balanceSheet)
		r.Get("/reports/income-statement", h.incomeStatement)
		r.Get("/reports/cash-flow", h.cashFlow)
		r.Get("/reports/summary", h.summary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.AccountingPost))
		r.Post("/accounts", h.createAccount)
		r.Put("/accounts/{id}", h.updateAccount)
		r.Delete("/accounts/{id}", h.deleteAccount)
		r.Post("/journals", h.createDraft)
		r.Post("/journals/post", h.createAndPost)
		r.Put("/journals/{id}", h.updateDraft)
		r.Delete("/journals/{id}", h.deleteDraft)
		r.Post("/journals/{id}/post", h.postEntry)
		r.Post("/journals/{id}/reverse", h.reverseEntry)
	})
}

type accountRequest struct {
	Code          string `json:"code" validate:"required,max=20"`
	Name          string `json:"name" validate:"required,max=120"`
	Type          string `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	Subtype       string `json:"subtype"`
	NormalBalance string `json:"normal_balance" validate:"omitempty,oneof=debit credit"`
	ParentID      *int64 `json:"parent_id"`
	IsActive      *bool  `json:"is_active"`
}

func (req accountRequest) input() AccountInput {
	return AccountInput{
		Code:          req.Code,
		Name:          req.Name,
		Type:          AccountType(req.Type),
		Subtype:       req.Subtype,
		NormalBalance: NormalBalance(req.NormalBalance),
		ParentID:      req.ParentID,
		IsActive:      req.IsActive,
	}
}

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"required"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo"`
}

type entryRequest struct {
	Date        string        `json:"entry_date" validate:"required"`
	Description string        `json:"description" validate:"required"`
	Reference   string        `json:"reference"`
	Lines       []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (req entryRequest) input(ctx context.Context) (EntryInput, error) {
	verr := &shared.ValidationError{}
	date := httpx.ParseDate(verr, "entry_date", req.Date)
	if err := verr.OrNil(); err != nil {
		return EntryInput{}, err
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
	}
	return EntryInput{
		Date:         date,
		Description:  req.Description,
		Reference:    req.Reference,
		SourceModule: SourceManual,
		CreatedBy:    shared.ActorID(ctx),
		Lines:        lines,
	}, nil
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required"`
	Date   string `json:"date"`
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	h.respond(w, http.StatusOK, accounts, err)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	acc, err := h.service.GetAccount(r.Context(), id)
	h.respond(w, http.StatusOK, acc, err)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	acc, err := h.service.CreateAccount(r.Context(), shared.ActorID(r.Context()), req.input())
	h.respond(w, http.StatusCreated, acc, err)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req accountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	acc, err := h.service.UpdateAccount(r.Context(), shared.ActorID(r.Context()), id, req.input())
	h.respond(w, http.StatusOK, acc, err)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 50))
	filter := EntryFilter{
		Status:       EntryStatus(r.URL.Query().Get("status")),
		SourceModule: r.URL.Query().Get("source_module"),
		Limit:        perPage,
		Offset:       (page - 1) * perPage,
	}
	if from, err := httpx.QueryDate(r, "from", time.Time{}); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	} else if !from.IsZero() {
		filter.From = &from
	}
	if to, err := httpx.QueryDate(r, "to", time.Time{}); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	} else if !to.IsZero() {
		filter.To = &to
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	h.respond(w, http.StatusOK, entries, err)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	h.respond(w, http.StatusOK, entry, err)
}

func (h *Handler) bindEntry(r *http.Request) (EntryInput, error) {
	var req entryRequest
	if err := httpx.Bind(r, &req); err != nil {
		return EntryInput{}, err
	}
	return req.input(r.Context())
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	in, err := h.bindEntry(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.CreateDraft(r.Context(), in)
	h.respond(w, http.StatusCreated, entry, err)
}

func (h *Handler) createAndPost(w http.ResponseWriter, r *http.Request) {
	in, err := h.bindEntry(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.CreateAndPost(r.Context(), in)
	h.respond(w, http.StatusCreated, entry, err)
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in, err := h.bindEntry(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.UpdateDraft(r.Context(), id, in)
	h.respond(w, http.StatusOK, entry, err)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteDraft(r.Context(), shared.ActorID(r.Context()), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entry, err := h.service.PostEntry(r.Context(), shared.ActorID(r.Context()), id)
	h.respond(w, http.StatusOK, entry, err)
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req reverseRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	in := ReverseInput{EntryID: id, ActorID: shared.ActorID(r.Context()), Reason: req.Reason}
	if req.Date != "" {
		verr := &shared.ValidationError{}
		date := httpx.ParseDate(verr, "date", req.Date)
		if err := verr.OrNil(); err != nil {
			httpx.RespondError(w, h.logger, err)
			return
		}
		in.Date = &date
	}
	entry, err := h.service.ReverseEntry(r.Context(), in)
	h.respond(w, http.StatusCreated, entry, err)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), asOf)
	if err == nil && !report.IsBalanced {
		h.logger.Error("trial balance out of balance", slog.String("difference", report.Difference.StringFixed(2)))
	}
	h.respond(w, http.StatusOK, report, err)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), asOf)
	h.respond(w, http.StatusOK, report, err)
}

func (h *Handler) rangeParams(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	from, err := httpx.QueryDate(r, "from", shared.MonthOf(now).Start())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := httpx.QueryDate(r, "to", now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeParams(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report, err := h.service.IncomeStatement(r.Context(), from, to)
	h.respond(w, http.StatusOK, report, err)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.rangeParams(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report, err := h.service.CashFlow(r.Context(), from, to)
	h.respond(w, http.StatusOK, report, err)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	report, err := h.service.Summary(r.Context(), asOf)
	h.respond(w, http.StatusOK, report, err)
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, status, body)
}
