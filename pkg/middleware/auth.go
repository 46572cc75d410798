package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/core/domain/entities/tenant"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/httpapi"
)

// TenantContext resolves the tenant for every request, either from the
// X-Tenant-ID header or from the request host, and stores it in the
// context. Paths under skipPrefixes (health, metrics) pass through
// untouched.
func TenantContext(tenants tenant.Repository, skipPrefixes ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range skipPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if header := r.Header.Get("X-Tenant-ID"); header != "" {
				tenantID, err := uuid.Parse(header)
				if err != nil {
					_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_TENANT", "X-Tenant-ID must be a uuid", nil)
					return
				}
				next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), tenantID)))
				return
			}

			host := r.Host
			if i := strings.IndexByte(host, ':'); i >= 0 {
				host = host[:i]
			}
			resolved, err := tenants.GetByDomain(r.Context(), host)
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNKNOWN_TENANT", "no tenant for host "+host, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), resolved.ID)))
		})
	}
}

// BasicAuth authenticates API requests with HTTP Basic credentials
// against the tenant's user directory. Unauthenticated requests to
// skipPrefixes pass through.
func BasicAuth(users user.Repository, skipPrefixes ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range skipPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			email, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="staffbridge"`)
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "credentials required", nil)
				return
			}

			account, err := composables.InTenantTxResult(r.Context(), func(txCtx context.Context) (user.User, error) {
				return users.GetByEmail(txCtx, email)
			})
			if err != nil || !account.CheckPassword(password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="staffbridge"`)
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid credentials", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithUser(r.Context(), account)))
		})
	}
}
