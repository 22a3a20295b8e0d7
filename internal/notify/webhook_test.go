package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhook_OK(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer ts.Close()

	wh := NewWebhook(ts.URL)
	if wh == nil {
		t.Fatal("expected webhook client")
	}
	if err := wh.Send(context.Background(), "Host unreachable", "router stopped replying"); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got["source"] != "pulsenet" || got["title"] != "Host unreachable" || got["text"] != "router stopped replying" {
		t.Fatalf("payload not as expected: %v", got)
	}
}

func TestWebhook_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	wh := NewWebhook(ts.URL)
	if err := wh.Send(context.Background(), "X", "Y"); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestNewWebhook_EmptyURL(t *testing.T) {
	if wh := NewWebhook(""); wh != nil {
		t.Fatalf("expected nil webhook for empty URL, got %v", wh)
	}
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) Send(ctx context.Context, title, text string) error {
	r.calls++
	return r.err
}

func TestMulti_FansOutAndKeepsFirstError(t *testing.T) {
	a := &recordingNotifier{err: errors.New("boom")}
	b := &recordingNotifier{err: errors.New("later")}
	c := &recordingNotifier{}

	m := Multi{nil, a, b, c}
	err := m.Send(context.Background(), "T", "X")
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected first error, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 1 {
		t.Fatalf("expected every notifier called once: %d %d %d", a.calls, b.calls, c.calls)
	}
}
