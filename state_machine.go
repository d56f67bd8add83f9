package identity

import (
	"time"
)

// AccountFlow owns the legal transitions of an account's security status:
// unverified to verified, and no-recovery-pending to recovery-pending and
// back. It mutates the Account in memory only; persisting the result is
// the caller's job, inside whatever transaction it runs.
//
// Verification and recovery are independent: an account can hold a pending
// verification token and a pending recovery token at the same time.
type AccountFlow struct {
	tokens      TokenSource
	now         func() time.Time
	recoveryTTL time.Duration
}

// AccountFlowOption customizes flow construction.
type AccountFlowOption func(*AccountFlow)

// WithFlowClock injects a custom clock (useful for tests).
func WithFlowClock(clock func() time.Time) AccountFlowOption {
	return func(f *AccountFlow) {
		if clock != nil {
			f.now = clock
		}
	}
}

// WithFlowTokenSource overrides the token source.
func WithFlowTokenSource(source TokenSource) AccountFlowOption {
	return func(f *AccountFlow) {
		if source != nil {
			f.tokens = source
		}
	}
}

// WithRecoveryTTL overrides the recovery token validity window.
func WithRecoveryTTL(ttl time.Duration) AccountFlowOption {
	return func(f *AccountFlow) {
		if ttl > 0 {
			f.recoveryTTL = ttl
		}
	}
}

// NewAccountFlow returns a flow with the default token source, clock, and
// one hour recovery window.
func NewAccountFlow(opts ...AccountFlowOption) *AccountFlow {
	f := &AccountFlow{
		tokens:      NewTokenSource(),
		now:         time.Now,
		recoveryTTL: DefaultRecoveryTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// RecoveryTTL reports the configured validity window.
func (f *AccountFlow) RecoveryTTL() time.Duration {
	return f.recoveryTTL
}

// BeginVerification mints a fresh verification token and stores it on the
// account, invalidating any previous one. On an already verified account
// this is a no-op returning an empty token.
func (f *AccountFlow) BeginVerification(account *Account) (string, error) {
	if account == nil {
		return "", invalidArgumentWith("account is nil")
	}

	if account.EmailVerified {
		return "", nil
	}

	token, err := f.tokens.NewToken()
	if err != nil {
		return "", err
	}

	account.VerificationToken = token
	return token, nil
}

// ConsumeVerification validates the supplied token against the stored one
// and, on an exact match, marks the account verified and clears the token.
// Verified is terminal: once the token is cleared, the same value can never
// be consumed again.
func (f *AccountFlow) ConsumeVerification(account *Account, token string) error {
	if account == nil || !TokensEqual(account.VerificationToken, token) {
		return ErrInvalidToken
	}

	account.EmailVerified = true
	account.VerificationToken = ""
	return nil
}

// BeginRecovery mints a recovery token with the configured validity window
// and stores it on the account. Any previously issued recovery token is
// overwritten and therefore invalidated.
func (f *AccountFlow) BeginRecovery(account *Account) (string, time.Time, error) {
	if account == nil {
		return "", time.Time{}, invalidArgumentWith("account is nil")
	}

	token, err := f.tokens.NewToken()
	if err != nil {
		return "", time.Time{}, err
	}

	expiry := f.now().Add(f.recoveryTTL)
	account.RecoveryToken = token
	account.RecoveryExpiry = &expiry
	return token, expiry, nil
}

// ConsumeRecovery validates the supplied token and, while still inside the
// expiry window, replaces the credential hash and clears the pending
// recovery state. A mismatched or absent token fails with ErrInvalidToken;
// a matching token past its window fails with ErrTokenExpired and the
// caller has to request a new link.
func (f *AccountFlow) ConsumeRecovery(account *Account, token, newPasswordHash string) error {
	if account == nil || !TokensEqual(account.RecoveryToken, token) {
		return ErrInvalidToken
	}

	if account.RecoveryExpiry == nil || f.now().After(*account.RecoveryExpiry) {
		return ErrTokenExpired
	}

	account.PasswordHash = newPasswordHash
	account.RecoveryToken = ""
	account.RecoveryExpiry = nil
	return nil
}
