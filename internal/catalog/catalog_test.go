package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

const testYAML = `
pre_survey:
  - no: 1
    category: Motivation
    question: How motivated are you this week?
    short_question: Motivation
    choice_type: select_slider
    choice: Low;Medium;High
    chart: bar
  - no: 2
    category: Motivation
    question: Which objective will you focus on?
    short_question: Focus
    choice_type: selectbox
    chart: pie
  - no: 3
    category: Planning
    question: Which strategies will you use?
    short_question: Strategies
    choice_type: multiselect
    choice: Notes; Videos ;Peers
    chart: bar-h
  - no: 5
    category: Planning
    question: What are your goals?
    short_question: Goals
    choice_type: text_input
    chart: wordcloud
post_survey:
  - no: 19
    category: Reflection
    question: What will you do next week?
    short_question: Follow-up
    choice_type: text_input
learning_objectives:
  - Variables;Loops
  - Functions
`

func TestReadYAML(t *testing.T) {
	c, err := ReadYAML(strings.NewReader(testYAML))
	if err != nil {
		t.Fatalf("ReadYAML: %v", err)
	}

	pre := c.Questions(model.SurveyPre)
	if len(pre) != 4 {
		t.Fatalf("expected 4 pre questions, got %d", len(pre))
	}
	if pre[0].ID() != "q1" || pre[0].Widget != model.WidgetSlider || pre[0].Chart != model.ChartBar {
		t.Errorf("unexpected first question: %+v", pre[0])
	}
	if got := pre[2].Choices; len(got) != 3 || got[1] != "Videos" {
		t.Errorf("choices not split and trimmed: %q", got)
	}
	if pre[3].ID() != "q5" {
		t.Errorf("expected id q5, got %s", pre[3].ID())
	}

	post := c.Questions(model.SurveyPost)
	if len(post) != 1 || post[0].Chart != model.ChartNone {
		t.Errorf("unexpected post questions: %+v", post)
	}

	if got := c.Objectives(1); len(got) != 2 || got[0] != "Variables" {
		t.Errorf("Objectives(1) = %q", got)
	}
	if got := c.Objectives(3); got != nil {
		t.Errorf("Objectives(3) = %q, want nil", got)
	}
	if c.Weeks() != 2 {
		t.Errorf("Weeks() = %d, want 2", c.Weeks())
	}
}

func TestReadYAMLValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown widget", "pre_survey:\n  - {no: 1, question: Q, choice_type: radio}\n", "unknown choice type"},
		{"unknown chart", "pre_survey:\n  - {no: 1, question: Q, choice_type: text_input, chart: scatter}\n", "unknown chart"},
		{"slider without choices", "pre_survey:\n  - {no: 1, question: Q, choice_type: select_slider}\n", "needs choices"},
		{"duplicate number", "post_survey:\n  - {no: 1, question: Q, choice_type: text_input}\n  - {no: 1, question: R, choice_type: text_input}\n", "duplicate"},
		{"bad number", "pre_survey:\n  - {no: x, question: Q, choice_type: text_input}\n", "invalid question number"},
		{"unknown field", "pre_survey:\n  - {no: 1, colour: red, choice_type: text_input}\n", "colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadYAML(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func writeWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	header := []any{"No", "Category", "Question", "ShortQuestion", "ChoiceType", "Choice", "Chart"}
	sheets := map[string][][]any{
		SheetPre: {
			header,
			{1, "Motivation", "How motivated are you?", "Motivation", "select_slider", "Low;Medium;High", "bar"},
			{2, "Planning", "Pick strategies", "Strategies", "multiselect", "Notes;Videos", "bar-h"},
		},
		SheetPost: {
			header,
			{19, "Reflection", "Next steps?", "Follow-up", "text_input", "", "wordcloud"},
		},
		SheetObjectives: {
			{"Week", "LearningObjective"},
			{1, "Variables;Loops"},
		},
	}
	for name, rows := range sheets {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for i, r := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	c, err := ReadXLSX(bytes.NewReader(writeWorkbook(t)))
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	pre := c.Questions(model.SurveyPre)
	if len(pre) != 2 {
		t.Fatalf("expected 2 pre questions, got %d", len(pre))
	}
	if pre[1].Widget != model.WidgetMultiSelect || pre[1].Chart != model.ChartHorizontalBar {
		t.Errorf("unexpected second question: %+v", pre[1])
	}
	post := c.Questions(model.SurveyPost)
	if len(post) != 1 || post[0].ID() != "q19" {
		t.Errorf("unexpected post questions: %+v", post)
	}
	if got := c.Objectives(1); len(got) != 2 || got[1] != "Loops" {
		t.Errorf("Objectives(1) = %q", got)
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "questions.yaml")
	if err := os.WriteFile(yamlPath, []byte(testYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(yamlPath); err != nil {
		t.Errorf("Load yaml: %v", err)
	}

	xlsxPath := filepath.Join(dir, "questions.xlsx")
	if err := os.WriteFile(xlsxPath, writeWorkbook(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(xlsxPath); err != nil {
		t.Errorf("Load xlsx: %v", err)
	}

	csvPath := filepath.Join(dir, "questions.csv")
	if err := os.WriteFile(csvPath, []byte("No\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(csvPath); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
