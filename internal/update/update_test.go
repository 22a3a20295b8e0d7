package update

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestIsNewerVersion(t *testing.T) {
	cases := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.4", "1.2.3", true},
		{"1.2.3", "1.2.3", false},
		{"1.2.2", "1.2.3", false},
		{"2.0", "1.9.9", true},
		{"1.2.3.1", "1.2.3", true},
		{"1.2", "1.2.0", false},
		{"v1.3.0", "1.2.9", true},
		{"1.10.0", "1.9.0", true}, // numeric, not lexicographic
		{"abc", "1.0.0", false},   // bad segments count as zero
		{"1.0.0", "abc", true},
	}
	for _, c := range cases {
		if got := IsNewerVersion(c.latest, c.current); got != c.want {
			t.Errorf("IsNewerVersion(%q, %q) = %v, want %v", c.latest, c.current, got, c.want)
		}
	}
}

func newTestChecker(t *testing.T, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewChecker(zap.NewNop(), "1.2.3")
	c.HTTPClient = srv.Client()
	c.LatestURL = srv.URL + "/latest"
	c.ListURL = srv.URL + "/list"
	return c
}

func TestCheck_UpdateAvailable(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"tag_name":"v1.3.0","prerelease":false,"draft":false,"html_url":"https://example.com/rel"}`)
	})

	res := c.Check(context.Background(), false)
	if res.Err != "" {
		t.Fatalf("unexpected error: %q", res.Err)
	}
	if !res.UpdateAvailable || res.LatestVersion != "1.3.0" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.URL != "https://example.com/rel" {
		t.Fatalf("release url: %q", res.URL)
	}
	if res.CurrentVersion != "1.2.3" {
		t.Fatalf("current version: %q", res.CurrentVersion)
	}
}

func TestCheck_UpToDate(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"tag_name":"v1.2.3","html_url":"https://example.com/rel"}`)
	})

	res := c.Check(context.Background(), false)
	if res.UpdateAvailable {
		t.Fatalf("no update expected: %+v", res)
	}
}

func TestCheck_PrereleaseListSkipsDrafts(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[`+
			`{"tag_name":"v2.0.0-draft","draft":true},`+
			`{"tag_name":"v1.4.0","prerelease":true,"html_url":"https://example.com/pre"}`+
			`]`)
	})

	res := c.Check(context.Background(), true)
	if res.Err != "" {
		t.Fatalf("unexpected error: %q", res.Err)
	}
	if res.LatestVersion != "1.4.0" || !res.IsPrerelease || !res.UpdateAvailable {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheck_BadBodyIsSoftError(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `not json`)
	})

	res := c.Check(context.Background(), false)
	if res.Err != "invalid-response" {
		t.Fatalf("want invalid-response, got %q", res.Err)
	}
	if res.UpdateAvailable {
		t.Fatalf("no update on error: %+v", res)
	}
	if res.URL == "" {
		t.Fatal("fallback url must survive errors")
	}
}

func TestCheck_NetworkErrorIsSoftError(t *testing.T) {
	c := NewChecker(zap.NewNop(), "1.2.3")
	c.LatestURL = "http://127.0.0.1:1/latest" // nothing listens there

	res := c.Check(context.Background(), false)
	if res.Err != "update-check-failed" {
		t.Fatalf("want update-check-failed, got %q", res.Err)
	}
	if res.CurrentVersion != "1.2.3" {
		t.Fatalf("current version lost: %+v", res)
	}
}
