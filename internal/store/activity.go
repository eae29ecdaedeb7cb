package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

// PushActivity appends to activities/{push-id} and returns the new id.
func (s *Store) PushActivity(ctx context.Context, a model.Activity) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, timestamp, activity, user_id) VALUES (?, ?, ?, ?)`,
		a.ID, a.Timestamp, a.Action, a.UserID,
	)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// ListActivities returns activity records oldest first, limited to userID
// unless it is empty.
func (s *Store) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	query := `SELECT id, timestamp, activity, user_id FROM activities`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY timestamp, rowid`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Action, &a.UserID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
