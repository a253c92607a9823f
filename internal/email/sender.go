package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para envío de códigos de verificación.
type Sender interface {
	SendVerificationCode(ctx context.Context, toEmail string, code string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationCode(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
