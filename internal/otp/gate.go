// Package otp gates booking confirmation behind phone-ownership proof.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/clearlane/tradein-platform/internal/observability/metrics"
	"github.com/clearlane/tradein-platform/internal/sms"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

var otpTracer = otel.Tracer("tradein.internal.otp")

// State is the gate's position in the verification lifecycle.
type State int

const (
	StateIdle State = iota
	StateCodeRequested
	StateVerified
	StateFailed
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCodeRequested:
		return "code_requested"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

var (
	// ErrSMSOptInRequired rejects entry to the gate without SMS opt-in.
	// This is a precondition failure, never retried.
	ErrSMSOptInRequired = errors.New("otp: sms opt-in required to verify phone")
	// ErrInvalidCode is a wrong or never-issued code.
	ErrInvalidCode = errors.New("otp: invalid code")
	// ErrCodeExpired is a correct-looking code past its expiry.
	ErrCodeExpired = errors.New("otp: code expired")
	// ErrLocked rejects verification after the attempt budget is spent.
	// No backend call is made while locked.
	ErrLocked = errors.New("otp: verification locked, resend to retry")
	// ErrNoPhone rejects resend before any code was ever requested.
	ErrNoPhone = errors.New("otp: no phone number on file")
)

const codeLength = 6

// Gate is the verification state machine for one booking attempt. Sends go
// through the SMS collaborator (which itself invokes the resilient client
// at most once); the gate holds no retry logic and only interprets
// success or terminal failure.
type Gate struct {
	mu          sync.Mutex
	state       State
	phone       string
	code        string
	expiresAt   time.Time
	attempts    int
	inFlight    bool
	maxAttempts int
	ttl         time.Duration
	sender      sms.Sender
	logger      *logging.Logger
	metrics     *metrics.WizardMetrics
	now         func() time.Time
}

func NewGate(sender sms.Sender, maxAttempts int, ttl time.Duration, logger *logging.Logger, m *metrics.WizardMetrics) *Gate {
	if sender == nil {
		panic("otp: sms sender required")
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gate{
		sender:      sender,
		maxAttempts: maxAttempts,
		ttl:         ttl,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// State reports the current machine state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Phone reports the number the gate is bound to.
func (g *Gate) Phone() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phone
}

// RequestCode issues a fresh passcode to the phone. A request arriving
// while a send is still in flight for the same phone is ignored rather
// than producing a duplicate text.
func (g *Gate) RequestCode(ctx context.Context, phone string, optedIn bool) error {
	if !optedIn {
		return ErrSMSOptInRequired
	}
	if strings.TrimSpace(phone) == "" {
		return ErrNoPhone
	}

	g.mu.Lock()
	if g.inFlight && g.phone == phone {
		g.mu.Unlock()
		g.logger.Debug("otp request ignored, send already in flight", "phone", phone)
		return nil
	}
	if g.phone != "" && g.phone != phone {
		// Number changed: any in-flight code is dead.
		g.resetLocked()
	}
	g.phone = phone
	g.inFlight = true
	g.mu.Unlock()

	return g.issue(ctx, phone, false)
}

// Resend re-issues a code with a fresh expiry. From Failed the cumulative
// attempt counter survives; from Locked it resets, which is what unlocks
// further verification.
func (g *Gate) Resend(ctx context.Context) error {
	g.mu.Lock()
	if g.phone == "" {
		g.mu.Unlock()
		return ErrNoPhone
	}
	if g.inFlight {
		g.mu.Unlock()
		return nil
	}
	resetAttempts := g.state == StateLocked
	g.inFlight = true
	phone := g.phone
	g.mu.Unlock()

	return g.issue(ctx, phone, resetAttempts)
}

// Verify checks a user-entered code against the last issued one.
func (g *Gate) Verify(code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateLocked:
		g.metrics.ObserveOTPVerify("locked")
		return ErrLocked
	case StateVerified:
		return nil
	case StateIdle:
		// Never silently succeed without an issued code.
		g.metrics.ObserveOTPVerify("invalid")
		return ErrInvalidCode
	}

	if g.now().After(g.expiresAt) {
		g.recordFailureLocked()
		g.metrics.ObserveOTPVerify("expired")
		return ErrCodeExpired
	}
	if code != g.code {
		g.recordFailureLocked()
		g.metrics.ObserveOTPVerify("invalid")
		return ErrInvalidCode
	}

	g.state = StateVerified
	g.code = ""
	g.metrics.ObserveOTPVerify("verified")
	g.logger.Info("otp verified", "phone", g.phone)
	return nil
}

// SetPhone changes the number, resetting the machine to Idle and
// invalidating any in-flight code.
func (g *Gate) SetPhone(phone string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	g.phone = phone
}

// Reset returns to Idle, used when the verification modal closes or the
// user navigates away from the booking step.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	g.phone = ""
}

func (g *Gate) issue(ctx context.Context, phone string, resetAttempts bool) error {
	ctx, span := otpTracer.Start(ctx, "otp.issue_code")
	defer span.End()

	code, err := generateCode()
	if err != nil {
		g.clearInFlight()
		span.RecordError(err)
		return fmt.Errorf("otp: generate code: %w", err)
	}

	err = g.sender.Send(ctx, phone, fmt.Sprintf("Your appointment verification code is %s", code))

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
	if err != nil {
		span.RecordError(err)
		g.metrics.ObserveOTPSend("failed")
		return fmt.Errorf("otp: send code: %w", err)
	}
	if resetAttempts {
		g.attempts = 0
	}
	g.state = StateCodeRequested
	g.code = code
	g.expiresAt = g.now().Add(g.ttl)
	g.metrics.ObserveOTPSend("sent")
	g.logger.Info("otp code issued", "phone", phone, "expires_at", g.expiresAt)
	return nil
}

func (g *Gate) recordFailureLocked() {
	g.attempts++
	if g.attempts >= g.maxAttempts {
		g.state = StateLocked
		g.logger.Warn("otp locked", "phone", g.phone, "attempts", g.attempts)
		return
	}
	g.state = StateFailed
}

func (g *Gate) resetLocked() {
	g.state = StateIdle
	g.code = ""
	g.attempts = 0
	g.inFlight = false
	g.expiresAt = time.Time{}
}

func (g *Gate) clearInFlight() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}

func generateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
