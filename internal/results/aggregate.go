package results

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cohortlab/weeklysurvey/internal/model"
)

// Count is one ranked category of a chart.
type Count struct {
	Rank  int
	Label string
	Count int
}

// Column is the answers given to one question, one cell per submission that
// answered it.
type Column []model.Answer

// column extracts a question's cells. Submissions without the question are
// skipped.
func column(subs []model.Submission, id string) Column {
	col := make(Column, 0, len(subs))
	for _, s := range subs {
		if a, ok := s.Response[id]; ok {
			col = append(col, a)
		}
	}
	return col
}

// tally counts values in first-seen order.
type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally { return &tally{counts: map[string]int{}} }

func (t *tally) add(v string) {
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
	}
	t.counts[v]++
}

// descending returns the values by count, ties in first-seen order.
func (t *tally) descending() []Count {
	out := make([]Count, 0, len(t.order))
	for _, v := range t.order {
		out = append(out, Count{Label: v, Count: t.counts[v]})
	}
	slices.SortStableFunc(out, func(a, b Count) int { return b.Count - a.Count })
	return rank(out)
}

func rank(cs []Count) []Count {
	for i := range cs {
		cs[i].Rank = i + 1
	}
	return cs
}

// Bar counts the declared choices in declared order. Choices nobody picked
// are kept with a zero count; values outside the choices are dropped.
func Bar(choices []string, col Column) []Count {
	t := newTally()
	for _, a := range col {
		for _, v := range a.Values() {
			t.add(v)
		}
	}
	out := make([]Count, 0, len(choices))
	for _, c := range choices {
		out = append(out, Count{Label: c, Count: t.counts[c]})
	}
	return rank(out)
}

// Pie counts the distinct values observed, most frequent first.
func Pie(col Column) []Count {
	t := newTally()
	for _, a := range col {
		t.add(a.String())
	}
	return t.descending()
}

// HorizontalBar flattens list answers into their items and counts them, most
// frequent first. A scalar cell counts as itself, so an empty post-survey
// selection stored as "" is counted under the empty label.
func HorizontalBar(col Column) []Count {
	t := newTally()
	for _, a := range col {
		for _, v := range a.Values() {
			t.add(v)
		}
	}
	return t.descending()
}

// maxWords caps the word cloud size.
const maxWords = 200

// tokenPattern matches words of two or more letters, digits, underscores or
// apostrophes in any script.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_][\p{L}\p{N}_']+`)

// Answers returns the non-empty free-text answers in submission order.
func Answers(col Column) []string {
	var out []string
	for _, a := range col {
		if !a.IsEmpty() {
			out = append(out, a.String())
		}
	}
	return out
}

// WordFrequencies counts the words of text, case-insensitively, after
// dropping stop words, numbers and a trailing "'s". Each word is labelled
// with its most common spelling.
func WordFrequencies(text string) []Count {
	type spelling struct {
		order  []string
		counts map[string]int
	}
	t := newTally()
	forms := map[string]*spelling{}
	for _, w := range tokenPattern.FindAllString(text, -1) {
		if strings.HasSuffix(strings.ToLower(w), "'s") {
			w = w[:len(w)-2]
		}
		key := strings.ToLower(w)
		if utf8.RuneCountInString(key) < 2 || stopWords[key] || isNumber(key) {
			continue
		}
		t.add(key)
		sp := forms[key]
		if sp == nil {
			sp = &spelling{counts: map[string]int{}}
			forms[key] = sp
		}
		if _, ok := sp.counts[w]; !ok {
			sp.order = append(sp.order, w)
		}
		sp.counts[w]++
	}
	out := t.descending()
	if len(out) > maxWords {
		out = out[:maxWords]
	}
	for i := range out {
		sp := forms[out[i].Label]
		best := sp.order[0]
		for _, f := range sp.order[1:] {
			if sp.counts[f] > sp.counts[best] {
				best = f
			}
		}
		out[i].Label = best
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
