package auth

import (
	"context"
	"log/slog"
)

// CodeSender delivers a reset code to a registered email address.
// Delivery transport is outside the core: production wires an email
// gateway here, development logs the code.
type CodeSender interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// LogCodeSender writes reset codes to the structured log instead of
// delivering them. Development and test use only.
type LogCodeSender struct {
	logger *slog.Logger
}

// NewLogCodeSender creates a sender that logs codes at warn level so the
// leak is visible in any reasonable log configuration.
func NewLogCodeSender(logger *slog.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger}
}

// SendResetCode logs the code instead of emailing it.
func (s *LogCodeSender) SendResetCode(_ context.Context, email, code string) error {
	s.logger.Warn("reset code issued (log delivery, dev only)",
		"email", email,
		"code", code,
	)
	return nil
}
