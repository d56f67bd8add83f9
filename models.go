package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account roles. Registration always produces RoleUser; RoleAdmin is only
// assigned by the bootstrap seeder.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Account is the persisted identity record for one registered user.
//
// PasswordHash is never exposed outside the package; use Scrub before
// returning an Account to a caller. VerificationToken lives from
// registration (or resend) until it is consumed. RecoveryToken and
// RecoveryExpiry are set together while a recovery request is outstanding;
// a new request overwrites both, invalidating the previous token.
type Account struct {
	bun.BaseModel     `bun:"table:accounts,alias:acc"`
	ID                int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Name              string     `bun:"name,notnull" json:"name,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string     `bun:"password_hash,notnull" json:"-"`
	Role              string     `bun:"role,notnull,default:'USER'" json:"role,omitempty"`
	EmailVerified     bool       `bun:"email_verified,notnull,default:false" json:"email_verified"`
	VerificationToken string     `bun:"verification_token,nullzero" json:"-"`
	RecoveryToken     string     `bun:"recovery_token,nullzero" json:"-"`
	RecoveryExpiry    *time.Time `bun:"recovery_expiry,nullzero" json:"-"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Scrub returns a copy of the account with all credential material removed.
func (a *Account) Scrub() *Account {
	if a == nil {
		return nil
	}

	clean := *a
	clean.PasswordHash = ""
	clean.VerificationToken = ""
	clean.RecoveryToken = ""
	clean.RecoveryExpiry = nil
	return &clean
}

// IsAdmin reports whether the account carries the administrator role.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// HasPendingRecovery reports whether a recovery request is outstanding.
// It does not check the expiry window; the state machine does that on
// consumption.
func (a *Account) HasPendingRecovery() bool {
	return a != nil && a.RecoveryToken != ""
}

// HasPendingVerification reports whether an email verification is pending.
func (a *Account) HasPendingVerification() bool {
	return a != nil && a.VerificationToken != ""
}

// ActivityLog is one emitted domain event, persisted so downstream
// consumers get at-least-once delivery with stable record ids.
type ActivityLog struct {
	bun.BaseModel `bun:"table:account_activity,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EventName     string         `bun:"event_name,notnull" json:"event_name,omitempty"`
	AccountID     int64          `bun:"account_id" json:"account_id,omitempty"`
	Payload       map[string]any `bun:"payload" json:"payload,omitempty"`
	OccurredAt    *time.Time     `bun:"occurred_at,nullzero,default:current_timestamp" json:"occurred_at,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
