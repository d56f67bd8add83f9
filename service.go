package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// GenericRecoveryMessage is what request-password-reset reports no matter
// whether the email exists. Keeping the two paths indistinguishable
// prevents email enumeration.
const GenericRecoveryMessage = "If the email exists, you will receive a link to reset your password"

// CredentialService orchestrates the credential and token lifecycle:
// registration, authentication, email verification, and password recovery.
// Mutations go through the Store; emails and domain events leave through
// the bounded dispatcher after the mutation committed.
type CredentialService struct {
	repo       RepositoryManager
	hasher     Hasher
	flow       *AccountFlow
	issuer     TokenIssuer
	notifier   Notifier
	sink       ActivitySink
	dispatcher *Dispatcher
	logger     Logger
	cfg        Config
	now        func() time.Time
}

// CredentialServiceOption customizes service construction.
type CredentialServiceOption func(*CredentialService)

// WithNotifier sets the email notifier.
func WithNotifier(n Notifier) CredentialServiceOption {
	return func(s *CredentialService) {
		s.notifier = normalizeNotifier(n)
	}
}

// WithActivitySink sets the sink receiving domain events.
func WithActivitySink(sink ActivitySink) CredentialServiceOption {
	return func(s *CredentialService) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the logger.
func WithLogger(logger Logger) CredentialServiceOption {
	return func(s *CredentialService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenIssuer overrides the bearer token issuer.
func WithTokenIssuer(issuer TokenIssuer) CredentialServiceOption {
	return func(s *CredentialService) {
		if issuer != nil {
			s.issuer = issuer
		}
	}
}

// WithAccountFlow overrides the account state machine, mostly so tests can
// inject a fixed clock and token source.
func WithAccountFlow(flow *AccountFlow) CredentialServiceOption {
	return func(s *CredentialService) {
		if flow != nil {
			s.flow = flow
		}
	}
}

// WithClock injects a custom clock for event timestamps.
func WithClock(clock func() time.Time) CredentialServiceOption {
	return func(s *CredentialService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewCredentialService validates cfg and builds the service. The returned
// service owns a running dispatcher; call Close when shutting down.
func NewCredentialService(repo RepositoryManager, cfg Config, opts ...CredentialServiceOption) (*CredentialService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := Logger(defLogger{})

	s := &CredentialService{
		repo:   repo,
		hasher: NewHasher(cfg.BcryptCost),
		flow:   NewAccountFlow(WithRecoveryTTL(cfg.RecoveryTTL)),
		issuer: NewTokenService(
			[]byte(cfg.SigningKey),
			cfg.TokenExpiration,
			cfg.Issuer,
			cfg.Audience,
			logger,
		),
		notifier: NewLogNotifier(cfg.FrontendURL, logger),
		sink:     noopActivitySink{},
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.dispatcher = NewDispatcher(cfg.QueueSize, cfg.QueueWorkers, s.logger)

	return s, nil
}

// Close drains the side-effect queue and stops the workers.
func (s *CredentialService) Close() {
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements the input shape rules for registration.
func (r RegisterInput) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

// Register creates a new unverified account, dispatches the verification
// email, and publishes an account.registered event. The returned account is
// scrubbed of credential material.
func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	input.Email = strings.TrimSpace(input.Email)

	if err := input.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	if _, err := s.repo.Accounts().GetByEmail(ctx, input.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !IsNotFound(err) {
		return nil, internal(err, "failed to check for existing email")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, internal(err, "failed to hash password")
	}

	account := &Account{
		Name:          input.Name,
		Email:         input.Email,
		PasswordHash:  hash,
		Role:          RoleUser,
		EmailVerified: false,
	}

	token, err := s.flow.BeginVerification(account)
	if err != nil {
		return nil, internal(err, "failed to mint verification token")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = s.repo.Accounts().CreateTx(ctx, tx, account)
		return err
	})
	if err != nil {
		// the unique index is the authority; the earlier lookup only
		// narrows the window
		if ErrorKind(err) == TextCodeDuplicateEmail {
			return nil, ErrDuplicateEmail
		}
		return nil, internal(err, "failed to persist account")
	}

	s.dispatchVerificationEmail(account.Email, account.Name, token)
	s.publish(ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		AccountID: account.ID,
		Email:     account.Email,
		Metadata:  map[string]any{"name": account.Name},
	})

	return account.Scrub(), nil
}

// Authenticate verifies the email and password and issues a bearer token
// with the account email as subject. Depending on configuration, accounts
// with an unverified email may be rejected.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (string, *Account, error) {
	email = strings.TrimSpace(email)

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return "", nil, ErrAccountNotFound
		}
		return "", nil, internal(err, "failed to retrieve account for login")
	}

	if err := s.hasher.Compare(password, account.PasswordHash); err != nil {
		s.publish(ActivityEvent{
			EventType: ActivityEventLoginFailure,
			AccountID: account.ID,
			Email:     account.Email,
		})
		return "", nil, ErrInvalidCredentials
	}

	if !s.cfg.AllowUnverifiedLogin && !account.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.issuer.Issue(account.Email)
	if err != nil {
		return "", nil, internal(err, "failed to issue bearer token")
	}

	s.publish(ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return token, account.Scrub(), nil
}

// GetByID returns the scrubbed account with the given id.
func (s *CredentialService) GetByID(ctx context.Context, id int64) (*Account, error) {
	if id <= 0 {
		return nil, invalidArgumentWith("id must be greater than zero")
	}

	account, err := s.repo.Accounts().GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internal(err, "failed to retrieve account")
	}

	return account.Scrub(), nil
}

// UpdateInput carries the mutable account fields. Empty fields are left
// unchanged.
type UpdateInput struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate bounds the optional fields.
func (u UpdateInput) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Name, validation.Length(1, 200)),
		validation.Field(&u.Password, validation.Length(8, 100)),
	)
}

// Update mutates name and/or password of the account addressed by email.
// A provided password is re-hashed; the stored hash is replaced, never
// appended.
func (s *CredentialService) Update(ctx context.Context, email string, input UpdateInput) (*Account, error) {
	email = strings.TrimSpace(email)

	if err := input.Validate(); err != nil {
		return nil, invalidArgument(err)
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, internal(err, "failed to retrieve account for update")
	}

	changed := []string{}

	if input.Name != "" {
		account.Name = input.Name
		changed = append(changed, "name")
	}

	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, internal(err, "failed to hash new password")
		}
		account.PasswordHash = hash
		changed = append(changed, "password")
	}

	if len(changed) > 0 {
		err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			account, err = s.repo.Accounts().UpdateTx(ctx, tx, account)
			return err
		})
		if err != nil {
			return nil, internal(err, "failed to persist account update")
		}

		s.publish(ActivityEvent{
			EventType: ActivityEventAccountUpdated,
			AccountID: account.ID,
			Email:     account.Email,
			Metadata:  map[string]any{"updated_fields": changed},
		})
	}

	return account.Scrub(), nil
}

// Delete removes the account permanently. The result reports whether the
// account existed.
func (s *CredentialService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return invalidArgumentWith("id must be greater than zero")
	}

	existed, err := s.repo.Accounts().DeleteByID(ctx, id)
	if err != nil {
		return internal(err, "failed to delete account")
	}

	if !existed {
		return ErrAccountNotFound
	}

	s.publish(ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		AccountID: id,
	})

	return nil
}

// List returns every account, scrubbed.
func (s *CredentialService) List(ctx context.Context) ([]*Account, error) {
	records, err := s.repo.Accounts().List(ctx)
	if err != nil {
		return nil, internal(err, "failed to list accounts")
	}

	out := make([]*Account, 0, len(records))
	for _, record := range records {
		out = append(out, record.Scrub())
	}
	return out, nil
}

// VerifyEmail consumes a verification token. The write is guarded by the
// token pre-image, so the token can be consumed exactly once even when
// concurrent transactions read the same row.
func (s *CredentialService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}

	var account *Account

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = s.repo.Accounts().GetByVerificationTokenTx(ctx, tx, token)
		if err != nil {
			if IsNotFound(err) {
				return ErrInvalidToken
			}
			return internal(err, "failed to look up verification token")
		}

		if err := s.flow.ConsumeVerification(account, token); err != nil {
			return err
		}

		// guarded by the token pre-image so a concurrent consumer of the
		// same token loses instead of double-applying
		if err := s.repo.Accounts().ConsumeVerificationTokenTx(ctx, tx, account, token); err != nil {
			if ErrorKind(err) == TextCodeInvalidToken {
				return ErrInvalidToken
			}
			return internal(err, "failed to persist verified account")
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ActivityEvent{
		EventType: ActivityEventEmailVerified,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return nil
}

// RequestPasswordReset starts a recovery. It reports generic success for
// unknown emails; when the account exists, a fresh token with a one hour
// window replaces any outstanding one and the recovery email is
// dispatched out-of-band.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			// indistinguishable from the success path
			return nil
		}
		return internal(err, "failed to retrieve account for recovery")
	}

	token, _, err := s.flow.BeginRecovery(account)
	if err != nil {
		return internal(err, "failed to mint recovery token")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.Accounts().UpdateTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return internal(err, "failed to persist recovery token")
	}

	s.dispatchRecoveryEmail(account.Email, account.Name, token)

	return nil
}

// ApplyPasswordReset consumes a recovery token and replaces the
// credential. The write is guarded by the token pre-image, so of two
// concurrent calls with the same token exactly one can succeed; the
// other reports ErrInvalidToken.
func (s *CredentialService) ApplyPasswordReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if newPassword == "" {
		return invalidArgumentWith("new password is required")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal(err, "failed to hash new password")
	}

	var account *Account

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = s.repo.Accounts().GetByRecoveryTokenTx(ctx, tx, token)
		if err != nil {
			if IsNotFound(err) {
				return ErrInvalidToken
			}
			return internal(err, "failed to look up recovery token")
		}

		if err := s.flow.ConsumeRecovery(account, token, hash); err != nil {
			return err
		}

		if err := s.repo.Accounts().ConsumeRecoveryTokenTx(ctx, tx, account, token); err != nil {
			if ErrorKind(err) == TextCodeInvalidToken {
				return ErrInvalidToken
			}
			return internal(err, "failed to persist credential change")
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ActivityEvent{
		EventType: ActivityEventPasswordReset,
		AccountID: account.ID,
		Email:     account.Email,
	})

	return nil
}

// EnsureAdminAccount seeds the configured bootstrap administrator. It is
// meant to run once at startup: with no admin email configured it does
// nothing; a missing password skips seeding with a warning; an existing
// account under the admin email is promoted and marked verified; otherwise
// a pre-verified admin account is created. Safe to call repeatedly.
func (s *CredentialService) EnsureAdminAccount(ctx context.Context) (*Account, error) {
	if s.cfg.AdminEmail == "" {
		return nil, nil
	}
	if s.cfg.AdminPassword == "" {
		s.logger.Warn("admin password not configured, skipping admin seed")
		return nil, nil
	}

	account, err := s.repo.Accounts().GetByEmail(ctx, s.cfg.AdminEmail)
	if err == nil {
		if account.IsAdmin() {
			return account.Scrub(), nil
		}

		account.Role = RoleAdmin
		account.EmailVerified = true
		account.VerificationToken = ""

		err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			account, err = s.repo.Accounts().UpdateTx(ctx, tx, account)
			return err
		})
		if err != nil {
			return nil, internal(err, "failed to promote admin account")
		}

		s.logger.Info("existing account promoted to admin: %s", account.Email)
		return account.Scrub(), nil
	}
	if !IsNotFound(err) {
		return nil, internal(err, "failed to check for existing admin")
	}

	hash, err := s.hasher.Hash(s.cfg.AdminPassword)
	if err != nil {
		return nil, internal(err, "failed to hash admin password")
	}

	name := s.cfg.AdminName
	if name == "" {
		name = "Administrator"
	}

	account = &Account{
		Name:          name,
		Email:         s.cfg.AdminEmail,
		PasswordHash:  hash,
		Role:          RoleAdmin,
		EmailVerified: true,
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = s.repo.Accounts().CreateTx(ctx, tx, account)
		return err
	})
	if err != nil {
		// another instance seeded first; adopt its record
		if ErrorKind(err) == TextCodeDuplicateEmail {
			existing, getErr := s.repo.Accounts().GetByEmail(ctx, s.cfg.AdminEmail)
			if getErr != nil {
				return nil, internal(getErr, "failed to load seeded admin")
			}
			return existing.Scrub(), nil
		}
		return nil, internal(err, "failed to seed admin account")
	}

	s.logger.Info("admin account created: %s", account.Email)
	return account.Scrub(), nil
}

// ResendVerification re-issues the verification email. On an already
// verified account it is a no-op success and the stored token state is
// left untouched.
func (s *CredentialService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountNotFound
		}
		return internal(err, "failed to retrieve account for resend")
	}

	if account.EmailVerified {
		return nil
	}

	token, err := s.flow.BeginVerification(account)
	if err != nil {
		return internal(err, "failed to mint verification token")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := s.repo.Accounts().UpdateTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return internal(err, "failed to persist verification token")
	}

	s.dispatchVerificationEmail(account.Email, account.Name, token)

	return nil
}

func (s *CredentialService) dispatchVerificationEmail(email, name, token string) {
	notifier := normalizeNotifier(s.notifier)
	s.dispatcher.Enqueue("send-verification-email", func(ctx context.Context) error {
		return notifier.SendVerification(ctx, email, name, token)
	})
}

func (s *CredentialService) dispatchRecoveryEmail(email, name, token string) {
	notifier := normalizeNotifier(s.notifier)
	s.dispatcher.Enqueue("send-recovery-email", func(ctx context.Context) error {
		return notifier.SendRecovery(ctx, email, name, token)
	})
}

func (s *CredentialService) publish(event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	sink := normalizeActivitySink(s.sink)
	s.dispatcher.Enqueue("publish-"+string(event.EventType), func(ctx context.Context) error {
		return sink.Record(ctx, event)
	})
}

func invalidArgument(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid input").
		WithTextCode(TextCodeInvalidArgument).
		WithCode(goerrors.CodeBadRequest)
}

func internal(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" && richErr.TextCode != TextCodeInternal {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal)
}
