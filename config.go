package identity

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// Config carries everything the service needs at construction time. It is
// validated once, up front; nothing reads ad-hoc configuration mid-request.
type Config struct {
	// SigningKey signs issued bearer tokens.
	SigningKey string
	// TokenExpiration is the bearer token lifetime in hours.
	TokenExpiration int
	// Issuer and Audience are stamped into issued tokens.
	Issuer   string
	Audience []string

	// BcryptCost tunes the hasher work factor. Zero uses DefaultBcryptCost.
	BcryptCost int
	// RecoveryTTL is the recovery token validity window. Zero uses
	// DefaultRecoveryTTL (one hour).
	RecoveryTTL time.Duration

	// AllowUnverifiedLogin controls whether accounts may authenticate
	// before verifying their email address.
	AllowUnverifiedLogin bool

	// AdminEmail, AdminPassword, and AdminName describe the bootstrap
	// administrator seeded by EnsureAdminAccount. Seeding is skipped when
	// AdminEmail or AdminPassword is empty.
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// SenderEmail is the mail sender identity handed to notifier adapters.
	SenderEmail string
	// FrontendURL is the base for verification and recovery links.
	FrontendURL string

	// QueueSize and QueueWorkers bound the side-effect dispatcher.
	QueueSize    int
	QueueWorkers int
}

// Validate checks the configuration. Construction fails on an invalid one.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.AdminEmail, is.Email),
		validation.Field(&c.AdminPassword, validation.Length(8, 100)),
		validation.Field(&c.SenderEmail, is.Email),
		validation.Field(&c.FrontendURL, is.URL),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid service configuration").
			WithTextCode(TextCodeInvalidArgument)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.RecoveryTTL <= 0 {
		c.RecoveryTTL = DefaultRecoveryTTL
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.QueueWorkers <= 0 {
		c.QueueWorkers = DefaultQueueWorkers
	}
	return c
}
