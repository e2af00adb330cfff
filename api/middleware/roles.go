package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RequireRole admits only tokens minted for one of the given roles. It must
// run after Auth.
func RequireRole(logg *logger.Logger, allowed ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.ActorRole(RoleFromContext(r.Context()))
			for _, want := range allowed {
				if role == want {
					next.ServeHTTP(w, r)
					return
				}
			}
			if logg != nil {
				logg.Warn(logg.WithFields(r.Context(), map[string]any{
					"subject": SubjectFromContext(r.Context()),
					"role":    role,
					"path":    r.URL.Path,
				}), "auth.role_denied")
			}
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
		})
	}
}
