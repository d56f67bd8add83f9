package identity

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the minimal logging surface the package depends on. Plug in
// your own implementation to route output through your logging stack.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Notifier delivers account emails. Implementations are expected to be
// best-effort; the service never lets a delivery failure reach the caller.
type Notifier interface {
	SendVerification(ctx context.Context, email, name, token string) error
	SendRecovery(ctx context.Context, email, name, token string) error
}

// TokenIssuer mints bearer tokens for authenticated accounts. Verification
// of issued tokens happens elsewhere.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(format string) string {
	if strings.HasSuffix(format, "\n") {
		return format
	}
	return format + "\n"
}
