package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL: baseURL,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

// transientClassifier marks 503 responses retryable; everything else falls
// back to the default classification.
func transientClassifier(status int, err error) Class {
	if err == nil && status == http.StatusServiceUnavailable {
		return Retryable
	}
	return DefaultClassifier(status, err)
}

func TestInvokeSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	data, err := c.Invoke(context.Background(), IdempotentRead("test.read", 3), http.MethodGet, "/thing", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", data)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestInvokeTerminalMakesExactlyOneCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"title":"vehicle not found"}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Invoke(context.Background(), IdempotentRead("test.read", 3), http.MethodGet, "/thing", nil, nil)

	var terminal *TerminalServiceError
	if !errors.As(err, &terminal) {
		t.Fatalf("expected TerminalServiceError, got %v", err)
	}
	if terminal.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", terminal.StatusCode)
	}
	if terminal.Title != "vehicle not found" {
		t.Errorf("expected original title preserved, got %q", terminal.Title)
	}
	if calls != 1 {
		t.Errorf("terminal failure must make exactly one call, got %d", calls)
	}
}

func TestInvokeRetryableExhaustsBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	policy := Policy{Operation: "test.read", MaxAttempts: 3, Classify: transientClassifier}
	_, err := c.Invoke(context.Background(), policy, http.MethodGet, "/thing", nil, nil)

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", exhausted.Attempts)
	}
	if calls != 3 {
		t.Errorf("expected exactly maxAttempts calls, got %d", calls)
	}
}

func TestInvokeRecoversOnLaterAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	policy := Policy{Operation: "test.read", MaxAttempts: 3, Classify: transientClassifier}
	data, err := c.Invoke(context.Background(), policy, http.MethodGet, "/thing", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", data)
	}
	if calls != 3 {
		t.Errorf("expected recovery on attempt 3, got %d calls", calls)
	}
}

func TestInvokeAtMostOnceNeverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Invoke(context.Background(), AtMostOnce("sms.send"), http.MethodPost, "/messages", nil, []byte(`{}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("at-most-once policy must make exactly one call, got %d", calls)
	}
}

func TestInvokeClearsTokenOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stale-token" {
			t.Errorf("expected bearer header, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.Tokens().Set("stale-token")

	_, err := c.Invoke(context.Background(), IdempotentRead("test.read", 2), http.MethodGet, "/thing", nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := c.Tokens().Get(); got != "" {
		t.Errorf("expected token cleared after 401, still have %q", got)
	}
}

func TestInvokeHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Backoff: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	policy := Policy{Operation: "test.read", MaxAttempts: 3, Classify: transientClassifier}
	_, err = c.Invoke(ctx, policy, http.MethodGet, "/thing", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestTokenSourceLifecycle(t *testing.T) {
	ts := NewTokenSource()
	if ts.Get() != "" {
		t.Error("expected empty initial token")
	}
	ts.Set("abc")
	if ts.Get() != "abc" {
		t.Error("expected token to round-trip")
	}
	ts.Clear()
	if ts.Get() != "" {
		t.Error("expected token cleared")
	}
}
