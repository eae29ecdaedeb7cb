package model

import "time"

// SurveyExport is the top-level JSON structure for submission export.
type SurveyExport struct {
	Survey      SurveyType         `json:"survey"`
	CourseStart string             `json:"course_start"`
	ExportedAt  time.Time          `json:"exported_at"`
	Count       int                `json:"count"`
	Submissions []SubmissionRecord `json:"submissions"`
}

// SubmissionRecord holds one stored submission joined with its author.
type SubmissionRecord struct {
	Key         string    `json:"key"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Group       string    `json:"group"`
	Week        int       `json:"week"`
	SubmittedAt time.Time `json:"submitted_at"`
	Response    Response  `json:"response"`
}

// ActivityExport is the top-level JSON structure for activity log export.
// UserID is empty when every user's activities are included.
type ActivityExport struct {
	UserID     string     `json:"user_id,omitempty"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Activities []Activity `json:"activities"`
}
