// Package branches resolves a ZIP code to nearby service branches.
package branches

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

// OpeningHours is one weekday's trading window, "15:04" wall-clock strings.
// A zero value means the branch is closed that day.
type OpeningHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Branch is a service location. Immutable once fetched; a new ZIP query
// replaces the whole list.
type Branch struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	AddressLine1  string                  `json:"addressLine1"`
	AddressLine2  string                  `json:"addressLine2,omitempty"`
	City          string                  `json:"city"`
	State         string                  `json:"state"`
	ZipCode       string                  `json:"zipCode"`
	Phone         string                  `json:"phone,omitempty"`
	Email         string                  `json:"email,omitempty"`
	Latitude      float64                 `json:"latitude"`
	Longitude     float64                 `json:"longitude"`
	DistanceMiles float64                 `json:"distanceMiles"`
	Hours         map[string]OpeningHours `json:"hours"`
}

// HoursFor returns the trading window for a weekday and whether the branch
// opens at all that day.
func (b Branch) HoursFor(day time.Weekday) (OpeningHours, bool) {
	h, ok := b.Hours[day.String()]
	if !ok || h.Open == "" || h.Close == "" {
		return OpeningHours{}, false
	}
	return h, true
}

var zipPattern = regexp.MustCompile(`^\d{5}$`)

// ErrInvalidZip rejects malformed ZIP input before any network call.
var ErrInvalidZip = errors.New("branches: zip code must be 5 digits")

// Locator finds eligible branches through the appraisal backend.
type Locator struct {
	client      *backend.Client
	maxAttempts int
	logger      *logging.Logger
}

func NewLocator(client *backend.Client, maxAttempts int, logger *logging.Logger) *Locator {
	if client == nil {
		panic("branches: backend client required")
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Locator{client: client, maxAttempts: maxAttempts, logger: logger}
}

type searchResponse struct {
	Branches []Branch `json:"branches"`
}

// Locate returns branches near the ZIP, nearest first. An empty result is
/// not an error: callers render the "no towing / visit a branch" fallback.
func (l *Locator) Locate(ctx context.Context, zip string) ([]Branch, error) {
	if !zipPattern.MatchString(zip) {
		return nil, ErrInvalidZip
	}
	q := url.Values{}
	q.Set("zipCode", zip)

	var resp searchResponse
	policy := backend.IdempotentRead("branches.search", l.maxAttempts)
	if err := l.client.InvokeJSON(ctx, policy, http.MethodGet, "/branches/search", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("branches: search zip %s: %w", zip, err)
	}

	out := append([]Branch(nil), resp.Branches...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMiles < out[j].DistanceMiles
	})
	l.logger.Debug("branch search completed", "zip", zip, "count", len(out))
	return out, nil
}
