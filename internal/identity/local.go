package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cohortlab/weeklysurvey/internal/store"
)

const (
	tokenIssuer       = "weeklysurvey"
	tokenTTL          = store.AuthSessionTTL
	minPasswordLength = 6
)

// CredentialStore is the persistence the local provider needs.
type CredentialStore interface {
	CreateCredential(ctx context.Context, c store.Credential) error
	GetCredentialByEmail(ctx context.Context, email string) (*store.Credential, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	CreatePasswordReset(ctx context.Context, userID string) (string, error)
	PasswordResetUser(ctx context.Context, token string) (string, error)
	DeletePasswordReset(ctx context.Context, token string) error
}

// Local is a self-hosted provider: bcrypt password hashes in the app's own
// store and HS256 JWTs as provider tokens.
type Local struct {
	store    CredentialStore
	secret   []byte
	resetURL func(token string) string
}

// NewLocal creates a local provider. resetURL builds the link written to the
// log when a password reset is requested.
func NewLocal(s CredentialStore, secret string, resetURL func(token string) string) (*Local, error) {
	if secret == "" {
		return nil, errors.New("token secret is required for the local identity provider")
	}
	if resetURL == nil {
		resetURL = func(token string) string { return "/reset/" + token }
	}
	return &Local{store: s, secret: []byte(secret), resetURL: resetURL}, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// SignUp registers a new email/password login.
func (p *Local) SignUp(ctx context.Context, email, password string) (Handle, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return Handle{}, reject(CodeInvalidEmail)
	}
	if password == "" {
		return Handle{}, reject(CodeMissingPassword)
	}
	if len(password) < minPasswordLength {
		return Handle{}, &Error{Code: CodeWeakPassword, Detail: "Password should be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Handle{}, fmt.Errorf("hash password: %w", err)
	}
	uid := strings.ReplaceAll(uuid.NewString(), "-", "")
	err = p.store.CreateCredential(ctx, store.Credential{UserID: uid, Email: email, PasswordHash: string(hash)})
	if errors.Is(err, store.ErrEmailTaken) {
		return Handle{}, reject(CodeEmailExists)
	}
	if err != nil {
		return Handle{}, fmt.Errorf("store credential: %w", err)
	}
	return p.handle(uid)
}

// SignIn checks an email/password pair.
func (p *Local) SignIn(ctx context.Context, email, password string) (Handle, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return Handle{}, reject(CodeInvalidEmail)
	}
	cred, err := p.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		return Handle{}, fmt.Errorf("get credential: %w", err)
	}
	if cred == nil {
		return Handle{}, reject(CodeEmailNotFound)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return Handle{}, reject(CodeInvalidPassword)
	}
	return p.handle(cred.UserID)
}

// SendPasswordReset issues a reset token. There is no mailer: the link is
// written to the log for course staff to forward.
func (p *Local) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return reject(CodeInvalidEmail)
	}
	cred, err := p.store.GetCredentialByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get credential: %w", err)
	}
	if cred == nil {
		return reject(CodeEmailNotFound)
	}
	token, err := p.store.CreatePasswordReset(ctx, cred.UserID)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	slog.Info("password reset requested", "email", cred.Email, "link", p.resetURL(token))
	return nil
}

// ValidResetToken reports whether a reset token is live.
func (p *Local) ValidResetToken(ctx context.Context, token string) (bool, error) {
	uid, err := p.store.PasswordResetUser(ctx, token)
	return uid != "", err
}

// ResetPassword consumes a reset token and sets a new password.
func (p *Local) ResetPassword(ctx context.Context, token, password string) error {
	uid, err := p.store.PasswordResetUser(ctx, token)
	if err != nil {
		return fmt.Errorf("look up reset token: %w", err)
	}
	if uid == "" {
		return reject(CodeInvalidOOBCode)
	}
	if len(password) < minPasswordLength {
		return &Error{Code: CodeWeakPassword, Detail: "Password should be at least 6 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.store.UpdatePasswordHash(ctx, uid, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return p.store.DeletePasswordReset(ctx, token)
}

func (p *Local) handle(uid string) (Handle, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Handle{}, fmt.Errorf("sign token: %w", err)
	}
	return Handle{UserID: uid, Token: token}, nil
}

// VerifyToken checks a provider token and returns the user id it was issued to.
func (p *Local) VerifyToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}
	return claims.Subject, nil
}
