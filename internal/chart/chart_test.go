package chart

import (
	"strings"
	"testing"

	"github.com/cohortlab/weeklysurvey/internal/model"
	"github.com/cohortlab/weeklysurvey/internal/results"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		sec      results.Section
		wantHTML bool
		contains string
	}{
		{
			name:     "bar",
			sec:      results.Section{Question: model.Question{No: 1, ShortLabel: "Motivation", Chart: model.ChartBar}, Counts: []results.Count{{Rank: 1, Label: "Low", Count: 2}}},
			wantHTML: true,
			contains: "Low",
		},
		{
			name:     "horizontal bar",
			sec:      results.Section{Question: model.Question{No: 3, ShortLabel: "Strategies", Chart: model.ChartHorizontalBar}, Counts: []results.Count{{Rank: 1, Label: "Peers", Count: 4}, {Rank: 2, Label: "Notes", Count: 1}}},
			wantHTML: true,
			contains: "Peers",
		},
		{
			name:     "pie",
			sec:      results.Section{Question: model.Question{No: 2, ShortLabel: "Focus", Chart: model.ChartPie}, Counts: []results.Count{{Rank: 1, Label: "Loops", Count: 1}}},
			wantHTML: true,
			contains: "Loops",
		},
		{
			name:     "word cloud",
			sec:      results.Section{Question: model.Question{No: 5, ShortLabel: "Goals", Chart: model.ChartWordCloud}, Answers: []string{"recursion"}, Words: []results.Count{{Rank: 1, Label: "recursion", Count: 1}}},
			wantHTML: true,
			contains: "recursion",
		},
		{
			name: "word cloud without usable words",
			sec:  results.Section{Question: model.Question{No: 5, Chart: model.ChartWordCloud}, Answers: []string{"it is"}},
		},
		{
			name: "no counts",
			sec:  results.Section{Question: model.Question{No: 1, Chart: model.ChartPie}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.sec)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if (got != nil) != tt.wantHTML {
				t.Fatalf("Render returned %d bytes, want html=%v", len(got), tt.wantHTML)
			}
			if tt.wantHTML && !strings.Contains(string(got), tt.contains) {
				t.Errorf("output does not mention %q", tt.contains)
			}
		})
	}
}
