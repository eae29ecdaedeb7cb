// Package identity signs users in against an email/password identity
// provider. Rejections carry the provider's error code.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// Code is a provider error code as returned by the hosted identity service.
type Code string

const (
	CodeEmailNotFound      Code = "EMAIL_NOT_FOUND"
	CodeInvalidPassword    Code = "INVALID_PASSWORD"
	CodeInvalidCredentials Code = "INVALID_LOGIN_CREDENTIALS"
	CodeEmailExists        Code = "EMAIL_EXISTS"
	CodeInvalidEmail       Code = "INVALID_EMAIL"
	CodeWeakPassword       Code = "WEAK_PASSWORD"
	CodeMissingPassword    Code = "MISSING_PASSWORD"
	CodeTooManyAttempts    Code = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeInvalidOOBCode     Code = "INVALID_OOB_CODE"
)

// Error is a provider rejection.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("identity provider: %s: %s", e.Code, e.Detail)
	}
	return "identity provider: " + string(e.Code)
}

func reject(code Code) error {
	return &Error{Code: code}
}

// CodeOf returns the provider code carried by err, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Handle identifies a signed-in user: the provider-assigned id plus an
// opaque provider token.
type Handle struct {
	UserID string
	Token  string
}

// Verifier is implemented by providers that can check their own tokens.
type Verifier interface {
	VerifyToken(token string) (userID string, err error)
}

// Provider is an email/password identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Handle, error)
	SignUp(ctx context.Context, email, password string) (Handle, error)
	SendPasswordReset(ctx context.Context, email string) error
}
