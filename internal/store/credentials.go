package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrEmailTaken is returned when a credential already exists for an email.
var ErrEmailTaken = errors.New("email already registered")

const passwordResetTTL = time.Hour

// Credential is a locally managed email/password login.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
}

// CreateCredential stores a login for a new user id.
func (s *Store) CreateCredential(ctx context.Context, c Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.Email, c.PasswordHash, time.Now(),
	)
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return ErrEmailTaken
	}
	return err
}

// GetCredentialByEmail returns the login for an email (case-insensitive), or nil.
func (s *Store) GetCredentialByEmail(ctx context.Context, email string) (*Credential, error) {
	var c Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, password_hash FROM credentials WHERE email = ?`, email,
	).Scan(&c.UserID, &c.Email, &c.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdatePasswordHash replaces a user's password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET password_hash = ? WHERE user_id = ?`, hash, userID,
	)
	return err
}

// CreatePasswordReset issues a one-time reset token for a user.
func (s *Store) CreatePasswordReset(ctx context.Context, userID string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().Add(passwordResetTTL),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// PasswordResetUser returns the user id a live reset token belongs to, or "".
func (s *Store) PasswordResetUser(ctx context.Context, token string) (string, error) {
	var userID string
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM password_resets WHERE token = ?`, token,
	).Scan(&userID, &expires)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if time.Now().After(expires) {
		return "", nil
	}
	return userID, nil
}

// DeletePasswordReset consumes a reset token.
func (s *Store) DeletePasswordReset(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM password_resets WHERE token = ?`, token)
	return err
}
