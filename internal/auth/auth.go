// Package auth defines the thin identity collaborator interface the core
// depends on. OIDC/JWT/session handling itself is out of scope (spec.md
// §6) — this package only wires an injected Authenticator into an
// HTTP middleware that enforces a required role.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cern-fcc/datacatalog/internal/apperr"
)

// Identity is the authenticated caller, per SPEC_FULL.md §4.11.
type Identity struct {
	Subject string
	Roles   []string
}

// HasRole reports whether id carries role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticator resolves the identity of an incoming request. A
// production implementation (OIDC/JWT/session) lives outside this
// repository.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, bool)
}

// AllowAll is a stub Authenticator for local development and tests: every
// request authenticates as an identity carrying the given roles.
type AllowAll struct {
	Roles []string
}

func (a AllowAll) Authenticate(r *http.Request) (Identity, bool) {
	return Identity{Subject: "local", Roles: a.Roles}, true
}

type contextKey int

const identityKey contextKey = iota

// FromContext returns the Identity stashed by RequireRole, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireRole wraps next, calling authn to resolve the caller's identity and
// refusing the request with apperr.Unauthorized (no identity) or
// apperr.Forbidden (identity lacks role) before next ever runs. On success
// the resolved Identity is attached to the request context. An empty role
// means "any authenticated identity", per spec.md §6: "absence = allow-any-
// authenticated".
func RequireRole(authn Authenticator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authn.Authenticate(r)
			if !ok {
				writeErr(w, apperr.Unauthorized("authentication required"))
				return
			}
			if role != "" && !id.HasRole(role) {
				writeErr(w, apperr.Forbidden(fmt.Sprintf("role %q required", role)))
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeErr writes the same {error, message} envelope internal/api uses for
// every other apperr.Error, limited to the two kinds this middleware can
// ever produce — the full kind-to-status table lives in internal/api.
func writeErr(w http.ResponseWriter, err *apperr.Error) {
	status := http.StatusForbidden
	if err.Kind == apperr.KindUnauthorized {
		status = http.StatusUnauthorized
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(err.Kind),
		"message": err.Message,
	})
}
