package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

// Machine readable error kinds. Every error the service returns carries one
// of these text codes so callers can branch without string matching.
const (
	TextCodeInvalidArgument    = "INVALID_ARGUMENT"
	TextCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	TextCodeNotFound           = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeInternal           = "INTERNAL_ERROR"
)

// ErrInvalidArgument is returned for malformed or missing input.
var ErrInvalidArgument = goerrors.New("invalid argument", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidArgument).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateEmail is returned when registering an email that already exists.
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrAccountNotFound is returned when no account matches the given id or email.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is returned when password verification fails.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken is returned when a verification or recovery token is
// absent, mismatched, or already consumed.
var ErrInvalidToken = goerrors.New("invalid or unknown token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when a recovery token is past its window.
// The caller has to request a new recovery link.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailNotVerified is returned on login when the service is configured
// to require a verified email address.
var ErrEmailNotVerified = goerrors.New("email address not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrNoEmptyString is the error for empty values handed to the hasher.
var ErrNoEmptyString = goerrors.New("value should not be an empty string", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidArgument).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the hasher's mismatch result. The service
// translates it to ErrInvalidCredentials before it reaches a caller.
var ErrMismatchedHashAndPassword = goerrors.New("mismatched hash and password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// invalidArgumentWith returns a fresh ErrInvalidArgument carrying the
// reason. The sentinel is cloned first; attaching metadata to the shared
// instance would race and leak the reason across requests.
func invalidArgumentWith(reason string) error {
	clone := ErrInvalidArgument.Clone()
	if clone == nil {
		return ErrInvalidArgument
	}
	clone.Source = ErrInvalidArgument
	return clone.WithMetadata(map[string]any{"reason": reason})
}

// ErrorKind extracts the machine readable kind from an error. Errors that
// did not originate here report TextCodeInternal.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		return richErr.TextCode
	}

	return TextCodeInternal
}

// IsNotFound reports whether err represents a missing account.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return ErrorKind(err) == TextCodeNotFound || goerrors.IsNotFound(err)
}
