package model

import (
	"fmt"
	"strconv"
	"strings"
)

// WidgetKind is the input widget a question is answered with.
type WidgetKind string

const (
	// WidgetSlider is a slider over a discrete list of choices.
	WidgetSlider WidgetKind = "select_slider"
	// WidgetText is a free-text input.
	WidgetText WidgetKind = "text_input"
	// WidgetMultiSelect allows any subset of the choices.
	WidgetMultiSelect WidgetKind = "multiselect"
	// WidgetObjective is a single select over the week's learning objectives.
	WidgetObjective WidgetKind = "selectbox"
)

// ParseWidgetKind validates a catalog ChoiceType cell.
func ParseWidgetKind(s string) (WidgetKind, error) {
	switch k := WidgetKind(strings.TrimSpace(s)); k {
	case WidgetSlider, WidgetText, WidgetMultiSelect, WidgetObjective:
		return k, nil
	}
	return "", fmt.Errorf("unknown choice type %q", s)
}

// ChartKind is the visualization used for a question's aggregated answers.
type ChartKind string

const (
	// ChartNone means the question is not shown on the results page.
	ChartNone ChartKind = ""
	// ChartBar counts the declared choices in declared order.
	ChartBar ChartKind = "bar"
	// ChartPie counts the observed values.
	ChartPie ChartKind = "pie"
	// ChartHorizontalBar counts the items of multi-select answers.
	ChartHorizontalBar ChartKind = "bar-h"
	// ChartWordCloud treats answers as free text.
	ChartWordCloud ChartKind = "wordcloud"
)

// ParseChartKind validates a catalog Chart cell.
func ParseChartKind(s string) (ChartKind, error) {
	switch k := ChartKind(strings.TrimSpace(s)); k {
	case ChartNone, ChartBar, ChartPie, ChartHorizontalBar, ChartWordCloud:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart %q", s)
}

// Question is one row of a survey catalog.
type Question struct {
	No         int        `json:"no"`
	Category   string     `json:"category"`
	Prompt     string     `json:"question"`
	ShortLabel string     `json:"short_question"`
	Widget     WidgetKind `json:"choice_type"`
	Choices    []string   `json:"choices,omitempty"`
	Chart      ChartKind  `json:"chart,omitempty"`
}

// ID returns the response key the question's answer is stored under.
func (q Question) ID() string {
	return "q" + strconv.Itoa(q.No)
}

// SplitChoices parses a semicolon-delimited choice cell.
func SplitChoices(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
