package otp

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"
)

// fakeSender records sent messages so tests can read issued codes.
type fakeSender struct {
	mu       sync.Mutex
	sends    []string
	messages []string
	err      error
}

func (f *fakeSender) Send(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, phone)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

var codeRe = regexp.MustCompile(`\d{6}`)

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no messages sent")
	}
	code := codeRe.FindString(f.messages[len(f.messages)-1])
	if code == "" {
		t.Fatalf("no code in message %q", f.messages[len(f.messages)-1])
	}
	return code
}

func newGate(sender *fakeSender) *Gate {
	return NewGate(sender, 3, 5*time.Minute, nil, nil)
}

func TestRequestCodeRequiresOptIn(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)

	err := g.RequestCode(context.Background(), "+12125551234", false)
	if !errors.Is(err, ErrSMSOptInRequired) {
		t.Fatalf("expected ErrSMSOptInRequired, got %v", err)
	}
	if sender.sendCount() != 0 {
		t.Error("opt-out must not reach the SMS collaborator")
	}
	if g.State() != StateIdle {
		t.Errorf("expected gate to stay idle, got %s", g.State())
	}
}

func TestVerifyWithoutRequestFails(t *testing.T) {
	g := newGate(&fakeSender{})
	if err := g.Verify("123456"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode from idle, got %v", err)
	}
}

func TestHappyPathVerification(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)
	ctx := context.Background()

	if err := g.RequestCode(ctx, "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.State() != StateCodeRequested {
		t.Fatalf("expected code_requested, got %s", g.State())
	}

	if err := g.Verify(sender.lastCode(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.State() != StateVerified {
		t.Fatalf("expected verified, got %s", g.State())
	}
}

func TestWrongCodeThreeTimesLocksTheGate(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)
	ctx := context.Background()

	if err := g.RequestCode(ctx, "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	correct := sender.lastCode(t)
	wrong := "000000"
	if wrong == correct {
		wrong = "000001"
	}

	for i := 0; i < 3; i++ {
		if err := g.Verify(wrong); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i+1, err)
		}
	}
	if g.State() != StateLocked {
		t.Fatalf("expected locked after 3 failures, got %s", g.State())
	}

	// Even the correct code is rejected while locked, with no send.
	before := sender.sendCount()
	if err := g.Verify(correct); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if sender.sendCount() != before {
		t.Error("locked verification must not contact the backend")
	}
}

func TestResendFromLockedResetsAttempts(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)
	ctx := context.Background()

	if err := g.RequestCode(ctx, "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		g.Verify("999999x") // cannot collide with a 6-digit code
	}
	if g.State() != StateLocked {
		t.Fatalf("expected locked, got %s", g.State())
	}

	if err := g.Resend(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.State() != StateCodeRequested {
		t.Fatalf("expected code_requested after resend, got %s", g.State())
	}
	if err := g.Verify(sender.lastCode(t)); err != nil {
		t.Fatalf("expected verification to succeed after unlock, got %v", err)
	}
}

func TestResendFromFailedPreservesAttemptCounter(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)
	ctx := context.Background()

	if err := g.RequestCode(ctx, "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g.Verify("999999x")
	g.Verify("999999x")
	if g.State() != StateFailed {
		t.Fatalf("expected failed, got %s", g.State())
	}

	if err := g.Resend(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two failures carried over; one more locks.
	g.Verify("999999x")
	if g.State() != StateLocked {
		t.Fatalf("expected cumulative counter to lock the gate, got %s", g.State())
	}
}

func TestCodeExpiry(t *testing.T) {
	sender := &fakeSender{}
	current := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g := NewGate(sender, 3, 5*time.Minute, nil, nil).WithClock(func() time.Time { return current })
	ctx := context.Background()

	if err := g.RequestCode(ctx, "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	code := sender.lastCode(t)

	current = current.Add(6 * time.Minute)
	if err := g.Verify(code); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if g.State() != StateFailed {
		t.Fatalf("expected failed after expiry, got %s", g.State())
	}

	// Resend restores a verifiable code with a fresh expiry.
	if err := g.Resend(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Verify(sender.lastCode(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPhoneChangeResetsGate(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)
	ctx := context.Background()

	if err := g.RequestCode(ctx, "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	old := sender.lastCode(t)

	g.SetPhone("+13105559876")
	if g.State() != StateIdle {
		t.Fatalf("expected idle after phone change, got %s", g.State())
	}
	if err := g.Verify(old); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected stale code invalidated, got %v", err)
	}
}

func TestResendWithoutPhoneFails(t *testing.T) {
	g := newGate(&fakeSender{})
	if err := g.Resend(context.Background()); !errors.Is(err, ErrNoPhone) {
		t.Fatalf("expected ErrNoPhone, got %v", err)
	}
}

func TestSendFailureLeavesGateVerifiable(t *testing.T) {
	sender := &fakeSender{err: errors.New("provider down")}
	g := newGate(sender)

	err := g.RequestCode(context.Background(), "+12125551234", true)
	if err == nil {
		t.Fatal("expected error")
	}
	if g.State() != StateIdle {
		t.Fatalf("expected gate to remain idle after failed send, got %s", g.State())
	}

	// Recovery: the provider comes back and a new request succeeds.
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	if err := g.RequestCode(context.Background(), "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Verify(sender.lastCode(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyIsIdempotentOnceVerified(t *testing.T) {
	sender := &fakeSender{}
	g := newGate(sender)

	if err := g.RequestCode(context.Background(), "+12125551234", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	code := sender.lastCode(t)
	if err := g.Verify(code); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Verify(code); err != nil {
		t.Fatalf("expected verified state to stay terminal, got %v", err)
	}
}
