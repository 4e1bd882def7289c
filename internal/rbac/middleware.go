package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/harambee-fund/harambee/internal/platform/httpx"
	"github.com/harambee-fund/harambee/internal/shared"
)

// Headers set by the upstream gateway that authenticated the caller.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Principal copies the gateway-supplied actor into the request context. Requests
// without a valid actor continue anonymously and fail any Require check.
func (m Middleware) Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawID := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if rawID == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id <= 0 {
			m.log("rbac parse actor id", slog.String("value", rawID))
			next.ServeHTTP(w, r)
			return
		}
		role, err := ParseRole(r.Header.Get(HeaderActorRole))
		if err != nil {
			m.log("rbac parse actor role", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		ctx := shared.ContextWithActor(r.Context(), shared.Actor{ID: id, Role: string(role)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require ensures the current actor's role grants capability.
func (m Middleware) Require(capability Capability) func(http.Handler) http.Handler {
	return m.RequireAny(capability)
}

// RequireAny ensures the current actor holds at least one of the capabilities.
func (m Middleware) RequireAny(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, m.Logger, httpx.ErrUnauthorized)
				return
			}
			for _, c := range caps {
				if Can(Role(actor.Role), c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.RespondError(w, m.Logger, httpx.ErrForbidden)
		})
	}
}

func (m Middleware) log(msg string, attrs ...any) {
	if m.Logger != nil {
		m.Logger.Warn(msg, attrs...)
	}
}

func actorRole(r *http.Request) (Role, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return "", false
	}
	return Role(actor.Role), true
}
