package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

// PutSubmission writes {type}-survey/{uid_week}. A later write for the same
// key replaces the earlier one entirely.
func (s *Store) PutSubmission(ctx context.Context, sub model.Submission) error {
	if sub.Key == "" {
		sub.Key = model.SubmissionKey(sub.UserID, sub.Week)
	}
	resp, err := json.Marshal(sub.Response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (survey, key, user_id, week, timestamp, response)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(survey, key) DO UPDATE SET
		   user_id = excluded.user_id, week = excluded.week,
		   timestamp = excluded.timestamp, response = excluded.response`,
		sub.Type, sub.Key, sub.UserID, sub.Week, sub.Timestamp, string(resp),
	)
	return err
}

// GetSubmission returns the submission stored under key, or nil.
func (s *Store) GetSubmission(ctx context.Context, t model.SurveyType, key string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT survey, key, user_id, week, timestamp, response
		 FROM submissions WHERE survey = ? AND key = ?`, t, key,
	)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns every submission of a survey type.
func (s *Store) ListSubmissions(ctx context.Context, t model.SurveyType) ([]model.Submission, error) {
	return s.querySubmissions(ctx,
		`SELECT survey, key, user_id, week, timestamp, response
		 FROM submissions WHERE survey = ? ORDER BY timestamp, key`, t)
}

// ListUserSubmissions returns one user's submissions of a survey type.
func (s *Store) ListUserSubmissions(ctx context.Context, t model.SurveyType, userID string) ([]model.Submission, error) {
	return s.querySubmissions(ctx,
		`SELECT survey, key, user_id, week, timestamp, response
		 FROM submissions WHERE survey = ? AND user_id = ? ORDER BY timestamp, key`, t, userID)
}

func (s *Store) querySubmissions(ctx context.Context, query string, args ...any) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(sc scanner) (model.Submission, error) {
	var sub model.Submission
	var resp string
	if err := sc.Scan(&sub.Type, &sub.Key, &sub.UserID, &sub.Week, &sub.Timestamp, &resp); err != nil {
		return sub, err
	}
	if err := json.Unmarshal([]byte(resp), &sub.Response); err != nil {
		return sub, fmt.Errorf("decode response %s/%s: %w", sub.Type, sub.Key, err)
	}
	return sub, nil
}
