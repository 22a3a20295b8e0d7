package middleware

import (
	"net/http"
	"strings"
)

// Keys configures API-key auth. Read keys cover status and diagnostics
// endpoints; admin keys additionally cover mutations (hosts, adapter
// DNS, preferences). Empty sets disable the corresponding check, which
// is the normal local-desktop configuration.
type Keys struct {
	Read  []string
	Admin []string
}

func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func matches(given string, sets ...[]string) bool {
	if given == "" {
		return false
	}
	for _, set := range sets {
		for _, k := range set {
			if k == given {
				return true
			}
		}
	}
	return false
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireRead admits requests carrying any configured key. With no keys
// configured it admits everything.
func RequireRead(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Read) == 0 && len(keys.Admin) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matches(presentedKey(r), keys.Read, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireAdmin admits only admin keys. With no admin keys configured it
// admits everything.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Admin) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			if matches(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			if key == "" {
				deny(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			deny(w, http.StatusForbidden, "forbidden")
		})
	}
}
