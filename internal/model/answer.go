package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Answer is a single response value: either a scalar string or a list of
// strings. A list may be empty.
type Answer struct {
	text  string
	items []string
	list  bool
}

// TextAnswer returns a scalar answer.
func TextAnswer(s string) Answer {
	return Answer{text: s}
}

// ListAnswer returns a list answer. A nil slice is stored as an empty list.
func ListAnswer(items []string) Answer {
	if items == nil {
		items = []string{}
	}
	return Answer{items: items, list: true}
}

// Values flattens the answer: a list yields its items, a scalar yields
// itself, including the empty string.
func (a Answer) Values() []string {
	if a.list {
		return a.items
	}
	return []string{a.text}
}

// String renders the answer for display.
func (a Answer) String() string {
	if a.list {
		return strings.Join(a.items, ", ")
	}
	return a.text
}

// IsEmpty reports whether the answer carries no text and no items.
func (a Answer) IsEmpty() bool {
	if a.list {
		return len(a.items) == 0
	}
	return a.text == ""
}

// MarshalJSON encodes a scalar as a JSON string and a list as an array.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.list {
		return json.Marshal(a.items)
	}
	return json.Marshal(a.text)
}

// UnmarshalJSON accepts a string, an array of strings, or null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = TextAnswer("")
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode list answer: %w", err)
		}
		*a = ListAnswer(items)
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		*a = TextAnswer(s)
		return nil
	}
}

// Response maps question ids to answers.
type Response map[string]Answer
