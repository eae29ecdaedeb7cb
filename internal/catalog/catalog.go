// Package catalog loads the static survey question tables.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

// Sheet names shared by the spreadsheet and YAML sources.
const (
	SheetPre        = "pre_survey"
	SheetPost       = "post_survey"
	SheetObjectives = "learning_objectives"
)

// Catalog holds the question tables for both surveys and the learning
// objectives offered per week. It is never mutated after loading.
type Catalog struct {
	pre        []model.Question
	post       []model.Question
	objectives [][]string
}

// row is a raw catalog row before validation.
type row struct {
	No            string `yaml:"no"`
	Category      string `yaml:"category"`
	Question      string `yaml:"question"`
	ShortQuestion string `yaml:"short_question"`
	ChoiceType    string `yaml:"choice_type"`
	Choice        string `yaml:"choice"`
	Chart         string `yaml:"chart"`
}

// Load reads a catalog file, choosing the decoder by extension.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	var c *Catalog
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		c, err = ReadXLSX(f)
	case ".yaml", ".yml":
		c, err = ReadYAML(f)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	slog.Info("loaded question catalog", "path", path,
		"pre", len(c.pre), "post", len(c.post), "weeks", len(c.objectives))
	return c, nil
}

func build(pre, post []row, objectives []string) (*Catalog, error) {
	c := &Catalog{}
	var err error
	if c.pre, err = parseRows(SheetPre, pre); err != nil {
		return nil, err
	}
	if c.post, err = parseRows(SheetPost, post); err != nil {
		return nil, err
	}
	for _, cell := range objectives {
		c.objectives = append(c.objectives, model.SplitChoices(cell))
	}
	return c, nil
}

func parseRows(sheet string, rows []row) ([]model.Question, error) {
	seen := make(map[int]bool, len(rows))
	questions := make([]model.Question, 0, len(rows))
	for i, r := range rows {
		q, err := parseRow(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
		if seen[q.No] {
			return nil, fmt.Errorf("%s row %d: duplicate question number %d", sheet, i+1, q.No)
		}
		seen[q.No] = true
		questions = append(questions, q)
	}
	return questions, nil
}

func parseRow(r row) (model.Question, error) {
	var q model.Question
	if _, err := fmt.Sscanf(strings.TrimSpace(r.No), "%d", &q.No); err != nil {
		return q, fmt.Errorf("invalid question number %q", r.No)
	}
	widget, err := model.ParseWidgetKind(r.ChoiceType)
	if err != nil {
		return q, err
	}
	chart, err := model.ParseChartKind(r.Chart)
	if err != nil {
		return q, err
	}
	q.Category = strings.TrimSpace(r.Category)
	q.Prompt = strings.TrimSpace(r.Question)
	q.ShortLabel = strings.TrimSpace(r.ShortQuestion)
	q.Widget = widget
	q.Chart = chart
	q.Choices = model.SplitChoices(r.Choice)

	switch widget {
	case model.WidgetSlider, model.WidgetMultiSelect:
		if len(q.Choices) == 0 {
			return q, fmt.Errorf("question %d: %s needs choices", q.No, widget)
		}
	case model.WidgetText, model.WidgetObjective:
	}
	if chart == model.ChartBar && len(q.Choices) == 0 {
		return q, fmt.Errorf("question %d: bar chart needs declared choices", q.No)
	}
	return q, nil
}

// Questions returns the catalog rows for a survey type in catalog order.
func (c *Catalog) Questions(t model.SurveyType) []model.Question {
	if t == model.SurveyPost {
		return c.post
	}
	return c.pre
}

// Objectives returns the learning objectives offered in the given week, or
// nil when the table has no row for it.
func (c *Catalog) Objectives(week int) []string {
	if week < 1 || week > len(c.objectives) {
		return nil
	}
	return c.objectives[week-1]
}

// Weeks returns the number of weeks with learning objectives.
func (c *Catalog) Weeks() int {
	return len(c.objectives)
}
