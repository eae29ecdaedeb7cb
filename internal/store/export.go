package store

import (
	"context"
	"fmt"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

// ExportSubmissions joins every submission of a survey type with its author.
func (s *Store) ExportSubmissions(ctx context.Context, t model.SurveyType) ([]model.SubmissionRecord, error) {
	subs, err := s.ListSubmissions(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	byID := make(map[string]model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	records := make([]model.SubmissionRecord, 0, len(subs))
	for _, sub := range subs {
		u := byID[sub.UserID]
		records = append(records, model.SubmissionRecord{
			Key:         sub.Key,
			UserID:      sub.UserID,
			Name:        u.Name,
			Group:       u.Group,
			Week:        sub.Week,
			SubmittedAt: sub.Time().UTC(),
			Response:    sub.Response,
		})
	}
	return records, nil
}
