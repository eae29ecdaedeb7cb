package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

// AuthSessionTTL is how long a sign-in lasts.
const AuthSessionTTL = 24 * time.Hour

// CreateAuthSession creates a new auth session token for a signed-in user.
// Both selected results weeks start at week.
func (s *Store) CreateAuthSession(ctx context.Context, userID, providerToken string, week int) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, provider_token, pre_week, post_week, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token, userID, providerToken, week, week, now, now.Add(AuthSessionTTL),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// GetAuthSession returns the auth session for the given token, or nil if not found/expired.
func (s *Store) GetAuthSession(ctx context.Context, token string) (*model.AuthSession, error) {
	var sess model.AuthSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider_token, pre_week, post_week, created_at, expires_at
		 FROM auth_sessions WHERE id = ?`, token,
	).Scan(&sess.ID, &sess.UserID, &sess.ProviderToken, &sess.PreWeek, &sess.PostWeek, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteAuthSession(ctx, token)
		return nil, nil
	}
	return &sess, nil
}

// SaveSelectedWeeks persists the results weeks last viewed in a session.
func (s *Store) SaveSelectedWeeks(ctx context.Context, token string, preWeek, postWeek int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE auth_sessions SET pre_week = ?, post_week = ? WHERE id = ?`,
		preWeek, postWeek, token,
	)
	return err
}

// DeleteAuthSession removes a session token.
func (s *Store) DeleteAuthSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// CleanupExpiredSessions removes all expired auth sessions and reset tokens.
func (s *Store) CleanupExpiredSessions(ctx context.Context) error {
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at < ?`, now); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at < ?`, now)
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
