package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func get(h http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireRead_NoKeysAdmitsEverything(t *testing.T) {
	h := RequireRead(Keys{})(okHandler())
	if rec := get(h, nil); rec.Code != http.StatusOK {
		t.Fatalf("open config: %d", rec.Code)
	}
}

func TestRequireRead_AcceptsAnyConfiguredKey(t *testing.T) {
	keys := Keys{Read: []string{"r1"}, Admin: []string{"a1"}}
	h := RequireRead(keys)(okHandler())

	if rec := get(h, map[string]string{"X-API-Key": "r1"}); rec.Code != http.StatusOK {
		t.Fatalf("read key: %d", rec.Code)
	}
	if rec := get(h, map[string]string{"X-API-Key": "a1"}); rec.Code != http.StatusOK {
		t.Fatalf("admin key on read route: %d", rec.Code)
	}
	if rec := get(h, map[string]string{"Authorization": "Bearer r1"}); rec.Code != http.StatusOK {
		t.Fatalf("bearer form: %d", rec.Code)
	}
	if rec := get(h, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: %d", rec.Code)
	}
	if rec := get(h, map[string]string{"X-API-Key": "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: %d", rec.Code)
	}
}

func TestRequireAdmin_Tiers(t *testing.T) {
	keys := Keys{Read: []string{"r1"}, Admin: []string{"a1"}}
	h := RequireAdmin(keys)(okHandler())

	if rec := get(h, map[string]string{"X-API-Key": "a1"}); rec.Code != http.StatusOK {
		t.Fatalf("admin key: %d", rec.Code)
	}
	if rec := get(h, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: %d", rec.Code)
	}
	// a valid read key is still not an admin key
	if rec := get(h, map[string]string{"X-API-Key": "r1"}); rec.Code != http.StatusForbidden {
		t.Fatalf("read key on admin route: %d", rec.Code)
	}
}

func TestRequireAdmin_NoAdminKeysAdmitsEverything(t *testing.T) {
	h := RequireAdmin(Keys{Read: []string{"r1"}})(okHandler())
	if rec := get(h, nil); rec.Code != http.StatusOK {
		t.Fatalf("open admin config: %d", rec.Code)
	}
}

func TestPresentedKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer  abc ")
	if got := presentedKey(req); got != "abc" {
		t.Fatalf("bearer: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", " xyz ")
	if got := presentedKey(req); got != "xyz" {
		t.Fatalf("x-api-key: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := presentedKey(req); got != "" {
		t.Fatalf("no header: %q", got)
	}
}
