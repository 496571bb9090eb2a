// Package sms delivers one-time passcodes over the messaging collaborator.
package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clearlane/tradein-platform/internal/backend"
	"github.com/clearlane/tradein-platform/pkg/logging"
)

// Sender delivers a single SMS message.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// ErrNotAccepted is returned when the provider rejects the message.
var ErrNotAccepted = errors.New("sms: message not accepted")

// Service sends messages through the resilient client. The send policy is
// at-most-once: a duplicated passcode text is a correctness bug, so the
// client never retries this operation.
type Service struct {
	client     *backend.Client
	fromNumber string
	profileID  string
	logger     *logging.Logger
}

func NewService(client *backend.Client, fromNumber, profileID string, logger *logging.Logger) *Service {
	if client == nil {
		panic("sms: backend client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{client: client, fromNumber: fromNumber, profileID: profileID, logger: logger}
}

type sendRequest struct {
	From               string `json:"from,omitempty"`
	PhoneNumber        string `json:"phoneNumber"`
	Message            string `json:"message"`
	MessagingProfileID string `json:"messagingProfileId,omitempty"`
}

type sendResponse struct {
	Accepted bool `json:"accepted"`
}

// Send dispatches one SMS, exactly one attempt.
func (s *Service) Send(ctx context.Context, phoneNumber, message string) error {
	if strings.TrimSpace(phoneNumber) == "" {
		return errors.New("sms: phone number required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("sms: message required")
	}

	req := sendRequest{
		From:               s.fromNumber,
		PhoneNumber:        phoneNumber,
		Message:            message,
		MessagingProfileID: s.profileID,
	}
	var resp sendResponse
	if err := s.client.InvokeJSON(ctx, backend.AtMostOnce("sms.send"), http.MethodPost, "/messages", nil, req, &resp); err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	if !resp.Accepted {
		return ErrNotAccepted
	}
	s.logger.Debug("sms accepted", "to", phoneNumber)
	return nil
}
