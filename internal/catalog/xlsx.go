package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads a workbook with pre_survey, post_survey and
// learning_objectives sheets. Question sheets are located by header names:
// No, Category, Question, ShortQuestion, ChoiceType, Choice, Chart.
func ReadXLSX(r io.Reader) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	pre, err := readQuestionSheet(f, SheetPre)
	if err != nil {
		return nil, err
	}
	post, err := readQuestionSheet(f, SheetPost)
	if err != nil {
		return nil, err
	}
	objectives, err := readObjectivesSheet(f)
	if err != nil {
		return nil, err
	}
	return build(pre, post, objectives)
}

func readQuestionSheet(f *excelize.File, sheet string) ([]row, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	col := headerIndex(rows[0])
	for _, name := range []string{"No", "Question", "ChoiceType"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("sheet %s: missing column %s", sheet, name)
		}
	}

	var out []row
	for _, cells := range rows[1:] {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(cells) {
				return ""
			}
			return cells[i]
		}
		if strings.TrimSpace(get("No")) == "" {
			continue
		}
		out = append(out, row{
			No:            get("No"),
			Category:      get("Category"),
			Question:      get("Question"),
			ShortQuestion: get("ShortQuestion"),
			ChoiceType:    get("ChoiceType"),
			Choice:        get("Choice"),
			Chart:         get("Chart"),
		})
	}
	return out, nil
}

// readObjectivesSheet returns the LearningObjective column; row n (after the
// header) belongs to week n.
func readObjectivesSheet(f *excelize.File) ([]string, error) {
	rows, err := f.GetRows(SheetObjectives)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetObjectives, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	i, ok := headerIndex(rows[0])["LearningObjective"]
	if !ok {
		return nil, fmt.Errorf("sheet %s: missing column LearningObjective", SheetObjectives)
	}
	out := make([]string, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if i < len(cells) {
			out = append(out, cells[i])
		} else {
			out = append(out, "")
		}
	}
	return out, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}
