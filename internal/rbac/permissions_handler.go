package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
)

// PermissionsHandler exposes the role matrix.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(SettingsManage))
		r.Get("/roles", h.listRoles)
	})
	r.Get("/me", h.me)
}

type roleView struct {
	Role         Role         `json:"role"`
	Capabilities []Capability `json:"capabilities"`
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, _ *http.Request) {
	out := make([]roleView, 0, len(Roles()))
	for _, role := range Roles() {
		out = append(out, roleView{Role: role, Capabilities: Capabilities(role)})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *PermissionsHandler) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorRole(r)
	if !ok {
		httpx.RespondError(w, h.rbac.Logger, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, roleView{Role: actor, Capabilities: Capabilities(actor)})
}
