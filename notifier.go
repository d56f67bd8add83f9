package identity

import (
	"context"
	"fmt"
)

// LogNotifier writes the links that would have been emailed to the logger.
// It stands in for a real mail adapter during development and in tests.
type LogNotifier struct {
	logger      Logger
	frontendURL string
}

// NewLogNotifier creates a LogNotifier. frontendURL is the base the
// verification and recovery links are built on.
func NewLogNotifier(frontendURL string, logger Logger) *LogNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogNotifier{
		logger:      logger,
		frontendURL: frontendURL,
	}
}

// SendVerification implements Notifier.
func (n *LogNotifier) SendVerification(ctx context.Context, email, name, token string) error {
	n.logger.Info("verification email for %s: %s", email, n.link("/verify-email", token))
	return nil
}

// SendRecovery implements Notifier.
func (n *LogNotifier) SendRecovery(ctx context.Context, email, name, token string) error {
	n.logger.Info("recovery email for %s: %s", email, n.link("/reset-password", token))
	return nil
}

func (n *LogNotifier) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", n.frontendURL, path, token)
}

type noopNotifier struct{}

func (noopNotifier) SendVerification(context.Context, string, string, string) error { return nil }
func (noopNotifier) SendRecovery(context.Context, string, string, string) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
